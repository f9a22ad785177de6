package repo

import (
	"context"
	"fmt"

	"xpost-studio/internal/domain"
)

var _ domain.PostRepo = (*Posts)(nil)

// Posts хранит посты в коллекции posts документного хранилища.
type Posts struct {
	store domain.DocumentStore
}

// NewPosts создаёт репозиторий постов.
func NewPosts(store domain.DocumentStore) *Posts {
	return &Posts{store: store}
}

// CreatePost сохраняет пост. Пустой ID назначает хранилище.
func (r *Posts) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	fields := map[string]any{
		"userId":    post.UserID,
		"content":   post.Content,
		"createdAt": post.CreatedAt,
	}
	if post.ThreadID != "" {
		fields["threadId"] = post.ThreadID
	}
	doc, err := r.store.CreateDocument(ctx, domain.CollectionPosts, post.ID, fields)
	if err != nil {
		return domain.Post{}, fmt.Errorf("сохранение поста: %w", err)
	}
	return postFromDocument(doc), nil
}

// ListByUser возвращает посты пользователя в порядке хранилища.
func (r *Posts) ListByUser(ctx context.Context, userID string) ([]domain.Post, error) {
	docs, err := r.store.ListDocuments(ctx, domain.CollectionPosts, domain.Equal("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("получение постов: %w", err)
	}
	posts := make([]domain.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, postFromDocument(doc))
	}
	return posts, nil
}

// DeletePost удаляет один документ поста.
func (r *Posts) DeletePost(ctx context.Context, postID string) error {
	if err := r.store.DeleteDocument(ctx, domain.CollectionPosts, postID); err != nil {
		return fmt.Errorf("удаление поста %s: %w", postID, err)
	}
	return nil
}

func postFromDocument(doc domain.Document) domain.Post {
	return domain.Post{
		ID:        doc.ID,
		UserID:    stringField(doc.Fields, "userId"),
		Content:   stringField(doc.Fields, "content"),
		ThreadID:  stringField(doc.Fields, "threadId"),
		CreatedAt: stringField(doc.Fields, "createdAt"),
	}
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}
