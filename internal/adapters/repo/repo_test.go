package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpost-studio/internal/adapters/docstore"
	"xpost-studio/internal/domain"
)

// conflictStore отдаёт конфликт на создание, как при гонке двух вкладок.
type conflictStore struct {
	*docstore.Memory
	createErr error
}

func (s *conflictStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	if s.createErr != nil {
		return domain.Document{}, s.createErr
	}
	return s.Memory.CreateDocument(ctx, collection, id, fields)
}

func TestPostsRoundTrip(t *testing.T) {
	ctx := context.Background()
	posts := NewPosts(docstore.NewMemory())

	created, err := posts.CreatePost(ctx, domain.Post{UserID: "u1", Content: "hello", ThreadID: "T1", CreatedAt: "2024-01-01T10:00:00Z"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	_, err = posts.CreatePost(ctx, domain.Post{UserID: "u1", Content: "loose", CreatedAt: "2024-01-01T11:00:00Z"})
	require.NoError(t, err)
	_, err = posts.CreatePost(ctx, domain.Post{UserID: "u2", Content: "other", ThreadID: "T9", CreatedAt: "2024-01-01T12:00:00Z"})
	require.NoError(t, err)

	list, err := posts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created, list[0])
	assert.Empty(t, list[1].ThreadID)

	require.NoError(t, posts.DeletePost(ctx, created.ID))
	err = posts.DeletePost(ctx, created.ID)
	assert.True(t, domain.IsRemote(err))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfilesCreateOrGetFallsBackToRead(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{Memory: docstore.NewMemory()}
	profiles := NewProfiles(store)

	first, err := profiles.CreateOrGet(ctx, domain.UserProfile{UserID: "u1", UserEmail: "a@b.c", HasSeenWelcome: true})
	require.NoError(t, err)
	assert.True(t, first.HasSeenWelcome)

	second, err := profiles.CreateOrGet(ctx, domain.UserProfile{UserID: "u1", UserEmail: "a@b.c"})
	require.NoError(t, err)
	assert.True(t, second.HasSeenWelcome, "existing profile wins over the new one")

	store.createErr = domain.Remote("create document", errors.New("network down"))
	_, err = profiles.CreateOrGet(ctx, domain.UserProfile{UserID: "u2"})
	require.Error(t, err)
	assert.True(t, domain.IsRemote(err))
}

func TestProfilesFindAndSetWelcome(t *testing.T) {
	ctx := context.Background()
	profiles := NewProfiles(docstore.NewMemory())

	_, found, err := profiles.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = profiles.CreateOrGet(ctx, domain.UserProfile{
		UserID: "u1", UserName: "Ann", UserEmail: "a@b.c",
		LoginMethod: domain.LoginMethodOAuthGoogle, IsNewUser: true,
	})
	require.NoError(t, err)

	p, found, err := profiles.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.LoginMethodOAuthGoogle, p.LoginMethod)
	assert.False(t, p.HasSeenWelcome)

	require.NoError(t, profiles.SetHasSeenWelcome(ctx, "u1", true))
	require.NoError(t, profiles.SetHasSeenWelcome(ctx, "u1", true))
	p, _, err = profiles.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.HasSeenWelcome)

	err = profiles.SetHasSeenWelcome(ctx, "ghost", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
