package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

var _ domain.OAuthProvider = (*Google)(nil)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	stateTTL          = 10 * time.Minute
)

// Google выполняет вход через Google OAuth 2.0.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
	states      domain.Cache
	accounts    *Service
}

// GoogleOption настраивает провайдера.
type GoogleOption func(*Google)

// WithEndpoint подменяет адреса провайдера.
func WithEndpoint(authURL, tokenURL, userInfoURL string) GoogleOption {
	return func(g *Google) {
		g.cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		g.userInfoURL = userInfoURL
	}
}

// NewGoogle создаёт провайдера Google.
func NewGoogle(clientID, clientSecret, redirectURL string, states domain.Cache, accounts *Service, opts ...GoogleOption) *Google {
	g := &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
		states:      states,
		accounts:    accounts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func stateKey(state string) string {
	return "oauth:state:" + state
}

// BeginOAuth запоминает state и возвращает адрес страницы согласия.
func (g *Google) BeginOAuth(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := g.states.Set(ctx, stateKey(state), []byte("1"), stateTTL); err != nil {
		return "", domain.Remote("store oauth state", err)
	}
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUser struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// CompleteOAuth проверяет state, меняет code на токен и выдаёт сессию.
func (g *Google) CompleteOAuth(ctx context.Context, state, code string) (domain.Session, domain.User, error) {
	if state == "" || code == "" {
		return domain.Session{}, domain.User{}, domain.ErrUnauthenticated
	}
	if _, err := g.states.Take(ctx, stateKey(state)); err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return domain.Session{}, domain.User{}, domain.ErrUnauthenticated
		}
		return domain.Session{}, domain.User{}, domain.Remote("load oauth state", err)
	}

	start := time.Now()
	token, err := g.cfg.Exchange(ctx, code)
	metrics.ObserveNetworkRequest("oauth", "exchange", "google", start, err)
	if err != nil {
		return domain.Session{}, domain.User{}, domain.Remote("oauth exchange", err)
	}

	profile, err := g.fetchUser(ctx, token)
	if err != nil {
		return domain.Session{}, domain.User{}, domain.Remote("oauth userinfo", err)
	}
	if profile.Email == "" {
		return domain.Session{}, domain.User{}, domain.Remote("oauth userinfo", errors.New("provider returned no email"))
	}
	// Аккаунты ищутся по email, поэтому неподтверждённый адрес не даёт входа.
	if !profile.EmailVerified {
		return domain.Session{}, domain.User{}, fmt.Errorf("email %s не подтверждён провайдером: %w", profile.Email, domain.ErrUnauthenticated)
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.SplitN(profile.Email, "@", 2)[0]
	}
	return g.accounts.SignInExternal(ctx, name, profile.Email, domain.LoginMethodOAuthGoogle)
}

func (g *Google) fetchUser(ctx context.Context, token *oauth2.Token) (googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return googleUser{}, fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	resp, err := g.cfg.Client(ctx, token).Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("oauth", "userinfo", "google", start, err)
		return googleUser{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	metrics.ObserveNetworkRequest("oauth", "userinfo", "google", start, err)
	if err != nil {
		return googleUser{}, err
	}
	var user googleUser
	if err := json.Unmarshal(body, &user); err != nil {
		return googleUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return user, nil
}
