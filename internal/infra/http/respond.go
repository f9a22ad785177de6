package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"xpost-studio/internal/domain"
)

// GenericErrorMessage отдаётся, когда конкретного текста нет.
const GenericErrorMessage = "Something went wrong"

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON отправляет v как JSON.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteDomainError переводит ошибку домена в HTTP статус и текст.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var (
		ve *domain.ValidationError
		re *domain.RemoteError
	)
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "An account with this email already exists")
	case errors.As(err, &re):
		logger.Warn().Err(err).Str("request_id", RequestID(r)).Msg("удалённый вызов не удался")
		WriteError(w, http.StatusBadGateway, re.Err.Error())
	default:
		logger.Error().Err(err).Str("request_id", RequestID(r)).Msg("необработанная ошибка")
		WriteError(w, http.StatusInternalServerError, GenericErrorMessage)
	}
}
