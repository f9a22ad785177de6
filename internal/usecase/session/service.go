package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"xpost-studio/internal/domain"
)

// LogoutHook вызывается после выхода пользователя.
type LogoutHook func(ctx context.Context, userID string)

// Service управляет входом, выходом и состоянием сессии.
type Service struct {
	auth     domain.AuthService
	oauth    domain.OAuthProvider
	onLogout []LogoutHook
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService создаёт сервис сессий. oauth может быть nil, если провайдер не настроен.
func NewService(auth domain.AuthService, oauth domain.OAuthProvider, logger zerolog.Logger, onLogout ...LogoutHook) *Service {
	return &Service{
		auth:     auth,
		oauth:    oauth,
		onLogout: onLogout,
		logger:   logger.With().Str("component", "session").Logger(),
		now:      time.Now,
	}
}

// State возвращает явное состояние сессии для токена. Любая ошибка даёт гостя.
func (s *Service) State(ctx context.Context, token string) domain.SessionState {
	if token == "" {
		return domain.SessionState{}
	}
	user, err := s.auth.CurrentUser(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthenticated) {
			s.logger.Warn().Err(err).Msg("не удалось получить пользователя")
		}
		return domain.SessionState{}
	}
	return domain.SessionState{User: &user}
}

// Signup создаёт аккаунт и сразу открывает сессию.
func (s *Service) Signup(ctx context.Context, name, email, password string) (domain.Session, domain.User, error) {
	if _, err := s.auth.CreateAccount(ctx, name, email, password); err != nil {
		return domain.Session{}, domain.User{}, err
	}
	return s.auth.CreateSession(ctx, email, password)
}

// Login закрывает текущую сессию, если она есть, и открывает новую.
func (s *Service) Login(ctx context.Context, currentToken, email, password string) (domain.Session, domain.User, error) {
	if currentToken != "" {
		s.Logout(ctx, currentToken)
	}
	return s.auth.CreateSession(ctx, email, password)
}

// Logout отзывает сессию и сбрасывает сессионное состояние пользователя.
// Отсутствие сессии и сбои отзыва не считаются ошибкой.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	state := s.State(ctx, token)
	if err := s.auth.DeleteSession(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("не удалось удалить сессию")
	}
	if !state.Authenticated() {
		return
	}
	for _, hook := range s.onLogout {
		hook(ctx, state.User.ID)
	}
	s.logger.Info().Str("user_id", state.User.ID).Msg("пользователь вышел")
}

// BeginOAuth возвращает адрес страницы согласия провайдера.
func (s *Service) BeginOAuth(ctx context.Context) (string, error) {
	if s.oauth == nil {
		return "", domain.Invalid("provider", "OAuth login is not configured")
	}
	return s.oauth.BeginOAuth(ctx)
}

// CompleteOAuth завершает вход через провайдера. isNew означает, что пользователь только что зарегистрирован.
func (s *Service) CompleteOAuth(ctx context.Context, state, code string) (sess domain.Session, user domain.User, isNew bool, err error) {
	if s.oauth == nil {
		return domain.Session{}, domain.User{}, false, domain.Invalid("provider", "OAuth login is not configured")
	}
	sess, user, err = s.oauth.CompleteOAuth(ctx, state, code)
	if err != nil {
		return domain.Session{}, domain.User{}, false, err
	}
	return sess, user, user.IsNewUser(s.now()), nil
}
