package domain

import (
	"context"
	"time"
)

// Document — запись документного хранилища.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter — условие равенства поля при выборке.
type Filter struct {
	Field string
	Value any
}

// Equal строит Filter.
func Equal(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// DocumentStore — удалённое коллекционное хранилище. Все ошибки оборачиваются в RemoteError.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	ListDocuments(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

// PostRepo управляет постами пользователя.
type PostRepo interface {
	CreatePost(ctx context.Context, post Post) (Post, error)
	ListByUser(ctx context.Context, userID string) ([]Post, error)
	DeletePost(ctx context.Context, postID string) error
}

// ProfileRepo управляет профилями пользователей.
type ProfileRepo interface {
	FindByEmail(ctx context.Context, email string) (UserProfile, bool, error)
	FindByUserID(ctx context.Context, userID string) (UserProfile, bool, error)
	// CreateOrGet создаёт профиль, а при конфликте ключа читает существующий.
	CreateOrGet(ctx context.Context, profile UserProfile) (UserProfile, error)
	SetHasSeenWelcome(ctx context.Context, userID string, seen bool) error
}

// AuthService — сервис аккаунтов и сессий.
type AuthService interface {
	CreateAccount(ctx context.Context, name, email, password string) (User, error)
	CreateSession(ctx context.Context, email, password string) (Session, User, error)
	CurrentUser(ctx context.Context, token string) (User, error)
	DeleteSession(ctx context.Context, token string) error
}

// OAuthProvider выполняет вход через внешнего провайдера.
type OAuthProvider interface {
	BeginOAuth(ctx context.Context) (redirectURL string, err error)
	CompleteOAuth(ctx context.Context, state, code string) (Session, User, error)
}

// Generator — удалённое API генерации постов.
type Generator interface {
	GeneratePosts(ctx context.Context, req GenerateRequest) ([]Draft, error)
	Health(ctx context.Context) (BackendHealth, error)
	TestKey(ctx context.Context) (KeyCheck, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	// Take атомарно читает и удаляет ключ.
	Take(ctx context.Context, key string) ([]byte, error)
}
