package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

var _ domain.Generator = (*Client)(nil)

// Client обращается к удалённому API генерации постов.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option настраивает клиента.
type Option func(*Client)

// WithHTTPClient подменяет http-клиент.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт общий таймаут запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New создаёт клиента API генерации.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("generator: baseURL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("generator: parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type generateResponse struct {
	Success bool           `json:"success"`
	Posts   []domain.Draft `json:"posts"`
	Error   string         `json:"error"`
	Details string         `json:"details"`
}

// GeneratePosts вызывает POST /api/generate-post.
func (c *Client) GeneratePosts(ctx context.Context, req domain.GenerateRequest) ([]domain.Draft, error) {
	var resp generateResponse
	start := time.Now()
	err := c.do(ctx, http.MethodPost, "/api/generate-post", req, &resp)
	if err == nil && (!resp.Success || resp.Posts == nil) {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to generate post"
		}
		err = errors.New(msg)
	}
	metrics.ObserveNetworkRequest("generator", "generate_post", string(req.PostType), start, err)
	if err != nil {
		return nil, domain.Remote("generate post", err)
	}
	return resp.Posts, nil
}

// Health вызывает GET /api/health.
func (c *Client) Health(ctx context.Context) (domain.BackendHealth, error) {
	var health domain.BackendHealth
	start := time.Now()
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &health)
	metrics.ObserveNetworkRequest("generator", "health", "api", start, err)
	if err != nil {
		return domain.BackendHealth{}, domain.Remote("generator health", err)
	}
	return health, nil
}

// TestKey вызывает GET /api/test-key.
func (c *Client) TestKey(ctx context.Context) (domain.KeyCheck, error) {
	var check domain.KeyCheck
	start := time.Now()
	err := c.do(ctx, http.MethodGet, "/api/test-key", nil, &check)
	metrics.ObserveNetworkRequest("generator", "test_key", "api", start, err)
	if err != nil {
		return domain.KeyCheck{}, domain.Remote("generator test key", err)
	}
	return check, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	resolved := *c.baseURL
	resolved.Path = path.Clean(strings.TrimSuffix(c.baseURL.Path, "/") + endpoint)

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generator request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, data []byte) error {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	_ = json.Unmarshal(data, &body)
	switch {
	case body.Error != "":
		return errors.New(body.Error)
	case body.Details != "":
		return errors.New(body.Details)
	default:
		return fmt.Errorf("HTTP error! status: %d", status)
	}
}
