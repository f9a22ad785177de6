package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"xpost-studio/internal/domain"
)

var _ domain.AuthService = (*Service)(nil)

const minPasswordLen = 8

// Service хранит аккаунты в коллекции accounts (id документа равен email) и
// выдаёт сессии в виде JWT. Выход отзывает jti через кэш.
type Service struct {
	store  domain.DocumentStore
	tokens *Tokens
	revoke domain.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewService создаёт сервис аккаунтов.
func NewService(store domain.DocumentStore, tokens *Tokens, revoke domain.Cache, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		revoke: revoke,
		logger: logger.With().Str("component", "account").Logger(),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func revokedKey(jti string) string {
	return "session:revoked:" + jti
}

// CreateAccount регистрирует пользователя по email и паролю.
func (s *Service) CreateAccount(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, domain.Invalid("name", "Name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return domain.User{}, domain.Invalid("email", "Please enter a valid email address")
	}
	if len(password) < minPasswordLen {
		return domain.User{}, domain.Invalid("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("хэш пароля: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        normalizeEmail(addr.Address),
		LoginMethod:  domain.LoginMethodEmail,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.insert(ctx, user, string(hash)); err != nil {
		return domain.User{}, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("аккаунт создан")
	return user, nil
}

func (s *Service) insert(ctx context.Context, user domain.User, passwordHash string) error {
	_, err := s.store.CreateDocument(ctx, domain.CollectionAccounts, user.Email, map[string]any{
		"userId":       user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"passwordHash": passwordHash,
		"loginMethod":  string(user.LoginMethod),
		"registeredAt": domain.FormatTimestamp(user.RegisteredAt),
	})
	if errors.Is(err, domain.ErrConflict) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("создание аккаунта: %w", err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, email string) (domain.User, string, error) {
	doc, err := s.store.GetDocument(ctx, domain.CollectionAccounts, normalizeEmail(email))
	if err != nil {
		return domain.User{}, "", err
	}
	registeredAt, _ := domain.ParseTimestamp(stringField(doc.Fields, "registeredAt"))
	user := domain.User{
		ID:           stringField(doc.Fields, "userId"),
		Name:         stringField(doc.Fields, "name"),
		Email:        stringField(doc.Fields, "email"),
		LoginMethod:  domain.LoginMethod(stringField(doc.Fields, "loginMethod")),
		RegisteredAt: registeredAt,
	}
	return user, stringField(doc.Fields, "passwordHash"), nil
}

// CreateSession проверяет пароль и выдаёт новую сессию.
func (s *Service) CreateSession(ctx context.Context, email, password string) (domain.Session, domain.User, error) {
	user, hash, err := s.find(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("поиск аккаунта: %w", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return domain.Session{}, domain.User{}, domain.ErrInvalidCredentials
	}
	session, err := s.tokens.Issue(user)
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}
	return session, user, nil
}

// CurrentUser возвращает владельца действующего токена.
func (s *Service) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := s.revoke.Get(ctx, revokedKey(claims.ID)); err == nil {
		return domain.User{}, domain.ErrUnauthenticated
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		return domain.User{}, domain.Remote("check session", err)
	}
	user, _, err := s.find(ctx, claims.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("получение пользователя: %w", err)
	}
	return user, nil
}

// DeleteSession отзывает токен. Невалидный или пустой токен ошибкой не считается.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.tokens.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoke.Set(ctx, revokedKey(claims.ID), []byte("1"), ttl); err != nil {
		return domain.Remote("revoke session", err)
	}
	return nil
}

// SignInExternal находит или создаёт аккаунт внешнего провайдера и выдаёт сессию.
func (s *Service) SignInExternal(ctx context.Context, name, email string, method domain.LoginMethod) (domain.Session, domain.User, error) {
	user, _, err := s.find(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user = domain.User{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        normalizeEmail(email),
			LoginMethod:  method,
			RegisteredAt: s.now().UTC(),
		}
		if err := s.insert(ctx, user, ""); errors.Is(err, domain.ErrEmailTaken) {
			if user, _, err = s.find(ctx, email); err != nil {
				return domain.Session{}, domain.User{}, fmt.Errorf("чтение аккаунта после конфликта: %w", err)
			}
		} else if err != nil {
			return domain.Session{}, domain.User{}, err
		}
	case err != nil:
		return domain.Session{}, domain.User{}, fmt.Errorf("поиск аккаунта: %w", err)
	}
	session, err := s.tokens.Issue(user)
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}
	return session, user, nil
}

// ResetPassword меняет пароль аккаунта. Используется из studioctl.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	if len(password) < minPasswordLen {
		return domain.Invalid("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("хэш пароля: %w", err)
	}
	if _, err := s.store.UpdateDocument(ctx, domain.CollectionAccounts, normalizeEmail(email), map[string]any{"passwordHash": string(hash)}); err != nil {
		return fmt.Errorf("обновление пароля: %w", err)
	}
	return nil
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}
