package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deploy-chat/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
	maxBody        = 1 << 20
)

// ChatCompletionRequest is the minimal request shape for the Chat Completions endpoint.
type ChatCompletionRequest struct {
	Model       string                 `json:"model"`
	Messages    []domain.PromptMessage `json:"messages"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature"`
}

// Response is the raw upstream answer. Interpreting it is left to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

// NewHTTPStatusError builds an HTTPStatusError, truncating the body for logs.
func NewHTTPStatusError(status int, body []byte) *HTTPStatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPStatusError{StatusCode: status, Body: string(body)}
}

func (e *HTTPStatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every upstream call. Zero keeps the default. It
// applies to a client given by WithHTTPClient too, in either order, without
// modifying the caller's client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a Client. The API key is supplied per call so the
// caller decides where credentials come from.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.resolvedHTTPClient()
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// CreateChatCompletion performs one POST with no retries. A non-2xx status
// is not an error here; it is returned in Response for the caller to map.
// Errors are transport, encoding, or body read failures.
func (c *Client) CreateChatCompletion(ctx context.Context, apiKey string, in ChatCompletionRequest) (Response, error) {
	if in.Model == "" {
		return Response{}, errors.New("openai: model must not be empty")
	}
	if apiKey == "" {
		return Response{}, errors.New("openai: api key must not be empty")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return Response{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	limit := int64(maxBody)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		limit = maxErrorBody
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return Response{}, fmt.Errorf("openai: read response body: %w", err)
	}
	return Response{StatusCode: res.StatusCode, Body: buf}, nil
}
