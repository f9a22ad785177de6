package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"xpost-studio/internal/domain"
)

// SessionCookie — имя cookie с токеном сессии.
const SessionCookie = "xpost_session"

type ctxKey int

const (
	sessionKey ctxKey = iota
	tokenKey
)

// SessionResolver возвращает состояние сессии по токену.
type SessionResolver interface {
	State(ctx context.Context, token string) domain.SessionState
}

// TokenFromRequest достаёт токен из Authorization: Bearer или из cookie.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// SessionMiddleware кладёт в контекст токен и состояние сессии запроса.
func SessionMiddleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			state := resolver.State(r.Context(), token)
			ctx := context.WithValue(r.Context(), tokenKey, token)
			ctx = context.WithValue(ctx, sessionKey, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser отвечает 401, если в запросе нет пользователя.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).Authenticated() {
			WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFrom возвращает состояние сессии из контекста.
func SessionFrom(ctx context.Context) domain.SessionState {
	state, _ := ctx.Value(sessionKey).(domain.SessionState)
	return state
}

// TokenFrom возвращает токен запроса из контекста.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// SetSessionCookie выставляет cookie с токеном.
func SetSessionCookie(w http.ResponseWriter, s domain.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}
