package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"deploy-chat/internal/logging"
	"deploy-chat/internal/usecase"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config holds all configuration for both entry points. It is read once at
// startup and passed to constructors; nothing else reads the environment.
type Config struct {
	OpenAIAPIKey    string
	OpenAIKeyParam  string
	OpenAIBaseURL   string
	Model           string
	MaxTokens       int
	Temperature     float64
	UpstreamTimeout time.Duration
	MaxInFlight     int64

	SystemPromptFile  string
	SystemPromptParam string
	HistoryMode       usecase.HistoryMode

	RateLimit        int
	RateLimitWindow  time.Duration
	RateLimitBackend string
	RedisURL         string
	RateLimitTable   string

	Port         string
	StaticDir    string
	CORSOrigins  []string
	MaxBodyBytes int64
	// TrustProxyHeaders keys clients on X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	LogLevel  slog.Level
	LogFormat string
}

// Load reads a .env file from the working directory if one exists, then
// the process environment. Variables already set win over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		OpenAIAPIKey:      env("OPENAI_API_KEY", ""),
		OpenAIKeyParam:    env("OPENAI_KEY_PARAM", ""),
		OpenAIBaseURL:     env("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:             env("OPENAI_MODEL", "gpt-4o"),
		SystemPromptFile:  env("SYSTEM_PROMPT_FILE", ""),
		SystemPromptParam: env("SYSTEM_PROMPT_PARAM", ""),
		RateLimitBackend:  strings.ToLower(env("RATE_LIMIT_BACKEND", BackendMemory)),
		RedisURL:          env("REDIS_URL", ""),
		RateLimitTable:    env("RATE_LIMIT_TABLE", ""),
		Port:              env("PORT", "3001"),
		StaticDir:         env("STATIC_DIR", "dist"),
		CORSOrigins:       splitList(env("CORS_ALLOWED_ORIGINS", "*")),
		LogFormat:         strings.ToLower(env("LOG_FORMAT", "json")),
	}

	var err error
	if cfg.MaxTokens, err = intVar(env, "OPENAI_MAX_TOKENS", 800, 1); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = strconv.ParseFloat(env("OPENAI_TEMPERATURE", "0.7"), 64); err != nil || cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("config: OPENAI_TEMPERATURE must be a number between 0 and 2")
	}
	if cfg.UpstreamTimeout, err = durationVar(env, "UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	maxInFlight, err := intVar(env, "MAX_IN_FLIGHT", 8, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxInFlight = int64(maxInFlight)
	if cfg.HistoryMode, err = usecase.ParseHistoryMode(env("HISTORY_MODE", "strict")); err != nil {
		return nil, fmt.Errorf("config: HISTORY_MODE: %w", err)
	}
	if cfg.RateLimit, err = intVar(env, "RATE_LIMIT", 0, 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = durationVar(env, "RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	maxBody, err := intVar(env, "MAX_BODY_BYTES", 1<<20, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.TrustProxyHeaders, err = boolVar(env, "TRUST_PROXY_HEADERS", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logging.ParseLevel(env("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("config: LOG_FORMAT must be json or text")
	}
	if c.RateLimit == 0 {
		return nil
	}
	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the redis rate limit backend")
		}
	case BackendDynamoDB:
		if c.RateLimitTable == "" {
			return fmt.Errorf("config: RATE_LIMIT_TABLE is required for the dynamodb rate limit backend")
		}
	default:
		return fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.OpenAIKeyParam != "" ||
		c.SystemPromptParam != "" ||
		(c.RateLimit > 0 && c.RateLimitBackend == BackendDynamoDB)
}

func intVar(env func(string, string) string, key string, def, min int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a valid integer: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("config: %s must be at least %d", key, min)
	}
	return n, nil
}

func boolVar(env func(string, string) string, key string, def bool) (bool, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean: %w", key, err)
	}
	return b, nil
}

func durationVar(env func(string, string) string, key string, def time.Duration) (time.Duration, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
