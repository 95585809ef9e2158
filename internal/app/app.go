// Package app wires configuration into a ready RelayService. Both entry
// points share it so the Lambda and the server run the same core.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"deploy-chat/internal/config"
	"deploy-chat/internal/credentials"
	"deploy-chat/internal/instruction"
	"deploy-chat/internal/integrations/openai"
	"deploy-chat/internal/integrations/paramstore"
	"deploy-chat/internal/ratelimit"
	"deploy-chat/internal/usecase"
)

// App holds the wired relay and whatever must be closed on shutdown.
type App struct {
	Relay       *usecase.RelayService
	Instruction instruction.Instruction
	closers     []func() error
}

type builder struct {
	loadAWS func(ctx context.Context) (aws.Config, error)
}

func defaultLoadAWS(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// Build constructs the relay from cfg. AWS configuration is loaded only
// when SSM or DynamoDB is actually in use.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	return builder{loadAWS: defaultLoadAWS}.build(ctx, cfg)
}

func (b builder) build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{}

	var awsCfg aws.Config
	var params *paramstore.Client
	if cfg.NeedsAWS() {
		var err error
		awsCfg, err = b.loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		if cfg.OpenAIKeyParam != "" || cfg.SystemPromptParam != "" {
			params, err = paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("app: create parameter store client: %w", err)
			}
		}
	}

	creds, err := buildCredentials(cfg, params)
	if err != nil {
		return nil, err
	}

	opts := instruction.Options{File: cfg.SystemPromptFile, Param: cfg.SystemPromptParam}
	if params != nil {
		opts.Store = params
	}
	instr, err := instruction.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("app: load system instruction: %w", err)
	}
	a.Instruction = instr
	slog.InfoContext(ctx, "system instruction loaded", "source", instr.Source, "version", instr.Version)

	var relayOpts []usecase.Option
	limiter, err := a.buildLimiter(ctx, cfg, awsCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if limiter != nil {
		relayOpts = append(relayOpts, usecase.WithLimiter(limiter))
	}

	upstream := openai.NewClient(
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithTimeout(cfg.UpstreamTimeout),
	)

	relay, err := usecase.NewRelayService(creds, instr.Text, upstream, usecase.Settings{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		MaxInFlight: cfg.MaxInFlight,
		HistoryMode: cfg.HistoryMode,
	}, relayOpts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: create relay service: %w", err)
	}
	a.Relay = relay
	return a, nil
}

func buildCredentials(cfg *config.Config, params *paramstore.Client) (usecase.CredentialProvider, error) {
	if cfg.OpenAIKeyParam != "" {
		p, err := credentials.NewParamStore(params, cfg.OpenAIKeyParam)
		if err != nil {
			return nil, fmt.Errorf("app: create credential provider: %w", err)
		}
		return p, nil
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; chat requests will fail until it is configured")
	}
	return credentials.Static(cfg.OpenAIAPIKey), nil
}

func (a *App) buildLimiter(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (usecase.Limiter, error) {
	if cfg.RateLimit <= 0 {
		return nil, nil
	}
	var (
		limiter usecase.Limiter
		err     error
	)
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		client, dialErr := ratelimit.DialRedis(ctx, cfg.RedisURL)
		if dialErr != nil {
			return nil, fmt.Errorf("app: connect rate limit store: %w", dialErr)
		}
		a.closers = append(a.closers, client.Close)
		limiter, err = ratelimit.NewRedis(client, cfg.RateLimit, cfg.RateLimitWindow, "")
	case config.BackendDynamoDB:
		limiter, err = ratelimit.NewDynamoDB(awsdynamodb.NewFromConfig(awsCfg), cfg.RateLimitTable, cfg.RateLimit, cfg.RateLimitWindow)
	default:
		limiter, err = ratelimit.NewMemory(cfg.RateLimit, cfg.RateLimitWindow)
	}
	if err != nil {
		return nil, fmt.Errorf("app: create rate limiter: %w", err)
	}
	slog.InfoContext(ctx, "rate limiting enabled",
		"backend", cfg.RateLimitBackend,
		"limit", cfg.RateLimit,
		"window", cfg.RateLimitWindow.String(),
	)
	return limiter, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
