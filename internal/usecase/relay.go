package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/semaphore"

	"deploy-chat/internal/credentials"
	"deploy-chat/internal/domain"
	"deploy-chat/internal/integrations/openai"
	"deploy-chat/internal/logging"
)

const (
	defaultModel       = "gpt-4o"
	defaultMaxTokens   = 800
	defaultTemperature = 0.7
	defaultMaxInFlight = 8
)

type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

type Upstream interface {
	CreateChatCompletion(ctx context.Context, apiKey string, req openai.ChatCompletionRequest) (openai.Response, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Settings are fixed for the process lifetime; nothing is tuned per request.
// A nil Temperature means the default 0.7; a pointer to 0 sends 0.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	MaxInFlight int64
	HistoryMode HistoryMode
}

type Option func(*RelayService)

// WithLimiter enables per-client rate limiting.
func WithLimiter(l Limiter) Option {
	return func(s *RelayService) {
		s.limiter = l
	}
}

// RelayService forwards one chat turn upstream per call and keeps no
// state between calls apart from the in-flight semaphore.
type RelayService struct {
	creds       CredentialProvider
	instruction string
	upstream    Upstream
	limiter     Limiter
	settings    Settings
	inFlight    *semaphore.Weighted
}

type RelayInput struct {
	Request  domain.ChatRequest
	ClientID string
}

type RelayOutput struct {
	Reply string
}

func NewRelayService(creds CredentialProvider, instruction string, upstream Upstream, settings Settings, opts ...Option) (*RelayService, error) {
	if creds == nil {
		return nil, errors.New("usecase: credential provider must not be nil")
	}
	if upstream == nil {
		return nil, errors.New("usecase: upstream client must not be nil")
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, errors.New("usecase: system instruction must not be empty")
	}
	if settings.Model == "" {
		settings.Model = defaultModel
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultMaxTokens
	}
	if settings.Temperature == nil {
		t := defaultTemperature
		settings.Temperature = &t
	}
	if settings.MaxInFlight <= 0 {
		settings.MaxInFlight = defaultMaxInFlight
	}
	if settings.HistoryMode == "" {
		settings.HistoryMode = HistoryStrict
	}
	s := &RelayService{
		creds:       creds,
		instruction: instruction,
		upstream:    upstream,
		settings:    settings,
		inFlight:    semaphore.NewWeighted(settings.MaxInFlight),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Relay runs one validated request through rate limiting, credential
// lookup, prompt assembly and a single upstream call.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	logger := logging.FromContext(ctx)

	if s.limiter != nil && in.ClientID != "" {
		allowed, err := s.limiter.Allow(ctx, in.ClientID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "err", err)
		case !allowed:
			return RelayOutput{}, newError(ErrorRateLimited, "client_rate_limited", MsgTooManyRequests, nil)
		}
	}

	apiKey, err := s.creds.APIKey(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrNotConfigured) {
			return RelayOutput{}, newError(ErrorConfiguration, "api_key_missing", MsgKeyNotConfigured, err)
		}
		return RelayOutput{}, Internal("api_key_lookup", err)
	}

	messages := AssemblePrompt(s.instruction, in.Request.History, in.Request.Message)

	if err := s.inFlight.Acquire(ctx, 1); err != nil {
		return RelayOutput{}, newError(ErrorUpstream, "in_flight_wait", MsgUpstreamFailed, err)
	}
	defer s.inFlight.Release(1)

	res, err := s.upstream.CreateChatCompletion(ctx, apiKey, openai.ChatCompletionRequest{
		Model:       s.settings.Model,
		Messages:    messages,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: *s.settings.Temperature,
	})
	if err != nil {
		return RelayOutput{}, Internal("upstream_transport", err)
	}

	reply, err := MapUpstreamResult(res.StatusCode, res.Body)
	if err != nil {
		return RelayOutput{}, err
	}
	return RelayOutput{Reply: reply}, nil
}

// ChatCall is one transport-neutral request as seen by an adapter.
type ChatCall struct {
	Method   string
	Body     []byte
	ClientID string
}

// ChatResult is the status and JSON body an adapter writes back.
type ChatResult struct {
	Status int
	Body   []byte
	Err    error
}

// HandleChat is the whole request lifecycle shared by every hosting
// adapter: method gate, decode, relay, error translation. It never panics.
func (s *RelayService) HandleChat(ctx context.Context, call ChatCall) (result ChatResult) {
	logger := logging.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			err := Internal("panic", fmt.Errorf("usecase: panic: %v", r))
			logger.ErrorContext(ctx, "chat request panicked", "err", err)
			result = errorResult(err)
		}
	}()

	if call.Method != http.MethodPost {
		err := MethodNotAllowed(call.Method)
		logger.WarnContext(ctx, "chat request rejected", "reason", err.Reason)
		return errorResult(err)
	}

	req, err := DecodeChatRequest(call.Body, s.settings.HistoryMode)
	if err != nil {
		logger.WarnContext(ctx, "chat request rejected", "reason", ReasonOf(err), "err", err)
		return errorResult(err)
	}

	out, err := s.Relay(ctx, RelayInput{Request: req, ClientID: call.ClientID})
	if err != nil {
		status, _ := Describe(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "chat request failed", "reason", ReasonOf(err), "err", err)
		} else {
			logger.WarnContext(ctx, "chat request rejected", "reason", ReasonOf(err))
		}
		return errorResult(err)
	}

	logger.InfoContext(ctx, "chat request served", "history_turns", len(req.History), "reply_chars", len(out.Reply))
	return jsonResult(http.StatusOK, domain.ChatReply{Reply: out.Reply}, nil)
}

func errorResult(err error) ChatResult {
	status, msg := Describe(err)
	return jsonResult(status, domain.ErrorReply{Error: msg}, err)
}

func jsonResult(status int, v any, err error) ChatResult {
	body, mErr := json.Marshal(v)
	if mErr != nil {
		return ChatResult{
			Status: http.StatusInternalServerError,
			Body:   []byte(`{"error":"` + MsgInternalError + `"}`),
			Err:    mErr,
		}
	}
	return ChatResult{Status: status, Body: body, Err: err}
}

// ErrorBody renders the JSON error body for err, for adapters that fail
// before HandleChat runs.
func ErrorBody(err error) (int, []byte) {
	r := errorResult(err)
	return r.Status, r.Body
}
