package repo

import (
	"context"
	"errors"
	"fmt"

	"xpost-studio/internal/domain"
)

var _ domain.ProfileRepo = (*Profiles)(nil)

// Profiles хранит профили в коллекции profiles. Id документа равен userId,
// поэтому повторное создание упирается в конфликт ключа.
type Profiles struct {
	store domain.DocumentStore
}

// NewProfiles создаёт репозиторий профилей.
func NewProfiles(store domain.DocumentStore) *Profiles {
	return &Profiles{store: store}
}

// FindByEmail ищет профиль по email.
func (r *Profiles) FindByEmail(ctx context.Context, email string) (domain.UserProfile, bool, error) {
	return r.findOne(ctx, domain.Equal("userEmail", email))
}

// FindByUserID ищет профиль по userId.
func (r *Profiles) FindByUserID(ctx context.Context, userID string) (domain.UserProfile, bool, error) {
	return r.findOne(ctx, domain.Equal("userId", userID))
}

func (r *Profiles) findOne(ctx context.Context, filter domain.Filter) (domain.UserProfile, bool, error) {
	docs, err := r.store.ListDocuments(ctx, domain.CollectionProfiles, filter)
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("поиск профиля по %s: %w", filter.Field, err)
	}
	if len(docs) == 0 {
		return domain.UserProfile{}, false, nil
	}
	return profileFromDocument(docs[0]), true, nil
}

// CreateOrGet создаёт профиль, а при конфликте ключа читает уже созданный.
func (r *Profiles) CreateOrGet(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	doc, err := r.store.CreateDocument(ctx, domain.CollectionProfiles, profile.UserID, profileFields(profile))
	if err == nil {
		return profileFromDocument(doc), nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return domain.UserProfile{}, fmt.Errorf("создание профиля: %w", err)
	}
	existing, err := r.store.GetDocument(ctx, domain.CollectionProfiles, profile.UserID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("чтение профиля после конфликта: %w", err)
	}
	return profileFromDocument(existing), nil
}

// SetHasSeenWelcome обновляет флаг приветствия. Без профиля возвращает ErrNotFound.
func (r *Profiles) SetHasSeenWelcome(ctx context.Context, userID string, seen bool) error {
	docs, err := r.store.ListDocuments(ctx, domain.CollectionProfiles, domain.Equal("userId", userID))
	if err != nil {
		return fmt.Errorf("поиск профиля: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("профиль %s: %w", userID, domain.ErrNotFound)
	}
	if _, err := r.store.UpdateDocument(ctx, domain.CollectionProfiles, docs[0].ID, map[string]any{"hasSeenWelcome": seen}); err != nil {
		return fmt.Errorf("обновление профиля: %w", err)
	}
	return nil
}

func profileFields(p domain.UserProfile) map[string]any {
	return map[string]any{
		"userId":         p.UserID,
		"userName":       p.UserName,
		"userEmail":      p.UserEmail,
		"createdAt":      p.CreatedAt,
		"loginMethod":    string(p.LoginMethod),
		"hasSeenWelcome": p.HasSeenWelcome,
		"isNewUser":      p.IsNewUser,
	}
}

func profileFromDocument(doc domain.Document) domain.UserProfile {
	return domain.UserProfile{
		UserID:         stringField(doc.Fields, "userId"),
		UserName:       stringField(doc.Fields, "userName"),
		UserEmail:      stringField(doc.Fields, "userEmail"),
		CreatedAt:      stringField(doc.Fields, "createdAt"),
		LoginMethod:    domain.LoginMethod(stringField(doc.Fields, "loginMethod")),
		HasSeenWelcome: boolField(doc.Fields, "hasSeenWelcome"),
		IsNewUser:      boolField(doc.Fields, "isNewUser"),
	}
}
