package domain

import (
	"strings"
	"time"
)

// Коллекции документного хранилища.
const (
	CollectionPosts    = "posts"
	CollectionProfiles = "profiles"
	CollectionAccounts = "accounts"
)

// DraftSoftLimit — рекомендованная длина поста в рунах. Хранилище её не проверяет.
const DraftSoftLimit = 280

// Post описывает сохранённый пост пользователя.
type Post struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
	ThreadID string `json:"threadId,omitempty"`
	// CreatedAt хранится как строка ISO-8601, в том виде, в каком её вернуло хранилище.
	CreatedAt string `json:"createdAt"`
}

// Timestamp разбирает CreatedAt.
func (p Post) Timestamp() (time.Time, error) {
	return ParseTimestamp(p.CreatedAt)
}

// ParseTimestamp разбирает ISO-8601 метку времени с дробными секундами и без них.
func ParseTimestamp(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
}

// FormatTimestamp форматирует время так, как его сохраняет хранилище.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Thread — производная группировка постов с общим ThreadID.
// Posts никогда не пуст.
type Thread struct {
	ThreadID    string    `json:"threadId"`
	Posts       []Post    `json:"posts"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// LoginMethod описывает способ входа пользователя.
type LoginMethod string

const (
	LoginMethodEmail       LoginMethod = "email"
	LoginMethodOAuthGoogle LoginMethod = "oauth-google"
)

// UserProfile — документ профиля в отдельной коллекции.
type UserProfile struct {
	UserID         string      `json:"userId"`
	UserName       string      `json:"userName"`
	UserEmail      string      `json:"userEmail"`
	CreatedAt      string      `json:"createdAt"`
	LoginMethod    LoginMethod `json:"loginMethod"`
	HasSeenWelcome bool        `json:"hasSeenWelcome"`
	IsNewUser      bool        `json:"isNewUser"`
}

// newUserWindow — пользователь считается новым в течение минуты после регистрации.
const newUserWindow = time.Minute

// User описывает аутентифицированного пользователя.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	LoginMethod  LoginMethod `json:"loginMethod"`
	RegisteredAt time.Time   `json:"registeredAt"`
}

// IsNewUser сообщает, зарегистрирован ли пользователь только что.
func (u User) IsNewUser(now time.Time) bool {
	if u.RegisteredAt.IsZero() {
		return false
	}
	return now.Sub(u.RegisteredAt) < newUserWindow
}

// Session описывает выданную сессию.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionState — явное состояние аутентификации, передаваемое потребителям.
type SessionState struct {
	User    *User `json:"user"`
	Loading bool  `json:"loading"`
}

// Authenticated сообщает, есть ли пользователь в состоянии.
func (s SessionState) Authenticated() bool {
	return s.User != nil
}
