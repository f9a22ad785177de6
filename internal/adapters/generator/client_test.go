package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpost-studio/internal/domain"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL+"/", WithTimeout(2*time.Second))
	require.NoError(t, err)
	return client
}

func TestGeneratePostsSendsExpectedBody(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate-post", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"prompt": "go tips", "tone": "casual", "PostType": "thread"}, body)

		_, _ = w.Write([]byte(`{"success":true,"posts":[{"content":"one","characterCount":3,"withinLimit":true},{"content":"two","characterCount":3,"withinLimit":true}]}`))
	})

	drafts, err := client.GeneratePosts(context.Background(), domain.GenerateRequest{Prompt: "go tips", Tone: domain.ToneCasual, PostType: domain.PostTypeThread})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "one", drafts[0].Content)
}

func TestGeneratePostsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "error field", status: http.StatusBadRequest, body: `{"error":"Prompt is required"}`, wantMsg: "Prompt is required"},
		{name: "details field", status: http.StatusInternalServerError, body: `{"details":"quota"}`, wantMsg: "quota"},
		{name: "bare status", status: http.StatusBadGateway, body: `oops`, wantMsg: "HTTP error! status: 502"},
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false}`, wantMsg: "Failed to generate post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.GeneratePosts(context.Background(), domain.GenerateRequest{Prompt: "x"})
			require.Error(t, err)
			assert.True(t, domain.IsRemote(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestHealthAndTestKey(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			_, _ = w.Write([]byte(`{"status":"OK"}`))
		case "/api/test-key":
			_, _ = w.Write([]byte(`{"success":false,"error":"invalid key"}`))
		default:
			http.NotFound(w, r)
		}
	})

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", health.Status)

	check, err := client.TestKey(context.Background())
	require.NoError(t, err)
	assert.False(t, check.Success)
	assert.Equal(t, "invalid key", check.Error)
}

func TestTimeoutIsRemote(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Health(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsRemote(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}
