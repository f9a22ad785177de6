package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpost-studio/internal/adapters/account"
	"xpost-studio/internal/adapters/docstore"
	"xpost-studio/internal/adapters/repo"
	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/cache"
	"xpost-studio/internal/usecase/drafts"
	"xpost-studio/internal/usecase/session"
	"xpost-studio/internal/usecase/threads"
	"xpost-studio/internal/usecase/welcome"
)

type stubGenerator struct{}

func (stubGenerator) GeneratePosts(_ context.Context, req domain.GenerateRequest) ([]domain.Draft, error) {
	return []domain.Draft{{Content: "about " + req.Prompt}}, nil
}

func (stubGenerator) Health(context.Context) (domain.BackendHealth, error) {
	return domain.BackendHealth{Status: "OK"}, nil
}

func (stubGenerator) TestKey(context.Context) (domain.KeyCheck, error) {
	return domain.KeyCheck{Success: true}, nil
}

type testEnv struct {
	router  chi.Router
	store   *docstore.Memory
	threads *threads.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := docstore.NewMemory()
	memo := cache.NewMemory(128, 24*time.Hour)

	tokens, err := account.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	accounts := account.NewService(store, tokens, memo, logger)

	posts := repo.NewPosts(store)
	threadsUC := threads.NewService(posts, logger, threads.Options{})
	welcomeUC := welcome.NewService(repo.NewProfiles(store), memo, logger, welcome.Options{})
	draftsUC := drafts.NewService(stubGenerator{}, posts, logger, time.Second)
	sessionUC := session.NewService(accounts, nil, logger,
		func(_ context.Context, userID string) { threadsUC.Drop(userID) },
		welcomeUC.Forget,
	)

	h := NewHandler(logger, Config{SuccessRedirect: "http://app/dashboard", FailureRedirect: "http://app/login"},
		sessionUC, welcomeUC, draftsUC, threadsUC)
	r := chi.NewRouter()
	h.Routes(r)
	return &testEnv{router: r, store: store, threads: threadsUC}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "ann@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[domain.SessionState](t, rec)
	require.NotNil(t, state.User)
	assert.Equal(t, "ann@example.com", state.User.Email)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	state = decodeBody[domain.SessionState](t, rec)
	assert.Nil(t, state.User)

	rec = env.do(t, http.MethodGet, "/api/v1/threads", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOAuthUnconfiguredRedirectsToFailure(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/auth/oauth/google", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app/login", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/api/v1/auth/oauth/google/callback?state=x&code=y", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app/login", rec.Header().Get("Location"))
}

func TestWelcomeShownOnce(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "ann@example.com")

	rec := env.do(t, http.MethodGet, "/api/v1/welcome", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["showWelcome"])

	rec = env.do(t, http.MethodPost, "/api/v1/welcome/complete", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/welcome", token, nil)
	assert.False(t, decodeBody[map[string]bool](t, rec)["showWelcome"])
}

func TestDrafts(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "ann@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/drafts/generate", token, map[string]string{
		"prompt": " go ", "tone": "casual", "postType": "single",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decodeBody[map[string][]domain.Draft](t, rec)
	require.Len(t, gen["posts"], 1)
	assert.Equal(t, "about go", gen["posts"][0].Content)
	assert.Equal(t, 8, gen["posts"][0].CharacterCount)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/generate", token, map[string]string{"prompt": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/generate", "", map[string]string{"prompt": "go"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/edit", "", map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/split", "", map[string]string{
		"content": strings.Repeat("word ", 100),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	split := decodeBody[map[string][]domain.Draft](t, rec)
	assert.Len(t, split["posts"], 2)

	rec = env.do(t, http.MethodGet, "/api/v1/drafts/health", "", nil)
	assert.Equal(t, "OK", decodeBody[domain.BackendHealth](t, rec).Status)
}

func TestDraftsShareModes(t *testing.T) {
	env := newTestEnv(t)
	posts := []string{"first", "second"}

	rec := env.do(t, http.MethodPost, "/api/v1/drafts/share", "", shareRequest{Posts: posts, Mode: "composed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decodeBody[map[string]string](t, rec)["url"], "https://x.com/intent/tweet?"))

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/share", "", shareRequest{Posts: posts, Mode: "sequential"})
	assert.Len(t, decodeBody[map[string][]string](t, rec)["urls"], 2)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/share", "", shareRequest{Posts: posts, Mode: "text"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "twitter-thread-")
	assert.Contains(t, rec.Body.String(), "Post 1/2:")

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/share", "", shareRequest{Posts: posts, Mode: "fax"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/drafts/share", "", shareRequest{Mode: "copy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThreadsSaveLoadShareDelete(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "ann@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/threads", token, saveThreadRequest{ThreadID: "t1", Posts: []string{"one", " ", "two"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/threads/state", token, nil)
	assert.Empty(t, decodeBody[threads.PageState](t, rec).Threads)

	rec = env.do(t, http.MethodGet, "/api/v1/threads", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[threads.PageState](t, rec)
	require.Len(t, state.Threads, 1)
	require.Len(t, state.Threads[0].Posts, 2)
	assert.Equal(t, "one", state.Threads[0].Posts[0].Content)

	rec = env.do(t, http.MethodGet, "/api/v1/threads/t1/share?mode=copy", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["text"], "one")

	rec = env.do(t, http.MethodGet, "/api/v1/threads/missing/share", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/threads/t1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	del := decodeBody[deleteResponse](t, rec)
	assert.Equal(t, threads.OutcomeCommitted, del.Outcome.Status)
	assert.Empty(t, del.State.Threads)

	docs, err := env.store.ListDocuments(context.Background(), domain.CollectionPosts)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestThreadsAreScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "ann@example.com")
	bob := env.signup(t, "bob@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/threads", ann, saveThreadRequest{ThreadID: "t1", Posts: []string{"one"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/threads", bob, nil)
	assert.Empty(t, decodeBody[threads.PageState](t, rec).Threads)

	rec = env.do(t, http.MethodDelete, "/api/v1/threads/t1", bob, nil)
	assert.Equal(t, threads.OutcomeIgnored, decodeBody[deleteResponse](t, rec).Outcome.Status)
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "http://app/dashboard?new=1", withQuery("http://app/dashboard", "new", "1"))
	assert.Equal(t, "http://app/d?a=b&new=1", withQuery("http://app/d?a=b", "new", "1"))
}
