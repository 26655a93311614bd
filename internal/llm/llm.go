package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/pharmabrief/internal/logger"
)

// DefaultBaseURLs maps provider names to their OpenAI-compatible endpoints.
var DefaultBaseURLs = map[string]string{
	"groq":   "https://api.groq.com/openai/v1",
	"openai": "https://api.openai.com/v1",
}

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("no choices in completion response")

// Request is a single text-completion call: an instruction and the content it governs.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Provider is the interface for LLM providers.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	Name   string
	Model  string
	client openai.Client
}

// OpenAIConfig holds the connection settings for an OpenAIProvider.
type OpenAIConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIProvider creates a new provider. SDK retries are disabled.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key not configured", cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		Name:   cfg.Name,
		Model:  cfg.Model,
		client: openai.NewClient(opts...),
	}, nil
}

// Complete sends the instruction as the system message and the text as the user message.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", p.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// RateLimited throttles calls to an inner provider. It is safe for concurrent use.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps a provider with a token bucket of perMinute requests.
// A non-positive perMinute disables throttling.
func NewRateLimited(inner Provider, perMinute, burst int) *RateLimited {
	return &RateLimited{inner: inner, limiter: NewLimiter(perMinute, burst)}
}

// Complete waits for a token and then delegates.
func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return r.inner.Complete(ctx, req)
}

// NewLimiter builds a limiter allowing perMinute events with the given burst.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

// CreateProvider creates an LLM provider based on configuration.
// The API key is read from the environment variable named by apiKeyEnv.
func CreateProvider(provider, baseURL, model, apiKeyEnv string) (Provider, error) {
	name := strings.ToLower(provider)
	if baseURL == "" {
		baseURL = DefaultBaseURLs[name]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base URL known for provider %q", provider)
	}

	p, err := NewOpenAIProvider(OpenAIConfig{
		Name:    name,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s)", err, apiKeyEnv)
	}

	logger.Log.WithField("provider", name).Infof("Using %s with model: %s", name, model)
	return p, nil
}
