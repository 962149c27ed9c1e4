package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-digest/internal/core/errors"
)

const (
	// DefaultModel is used when no chat model is configured.
	DefaultModel = "gpt-5-mini"

	defaultTemperature  = 1.0
	defaultMaxTokens    = 1200
	defaultTimeout      = 60 * time.Second
	rateLimiterBurst    = 5
	errOpenAIChatFormat = "openai chat completion: %w"
)

// OpenAIConfig holds configuration for the OpenAI chat provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // Requests per second
}

// OpenAIProvider implements Provider for OpenAI-compatible chat APIs.
type OpenAIProvider struct {
	client      *openai.Client
	cfg         OpenAIConfig
	rateLimiter *rate.Limiter
}

// NewOpenAIProvider creates a chat provider. Without an API key the provider
// reports itself unavailable.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(limit, rateLimiterBurst),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// Model returns the chat model.
func (p *OpenAIProvider) Model() string {
	return p.cfg.Model
}

// IsAvailable returns true if an API key is configured.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.cfg.APIKey != ""
}

// Priority returns the provider priority.
func (p *OpenAIProvider) Priority() int {
	return PriorityPrimary
}

// Chat sends one completion request and returns the trimmed first choice.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if !p.IsAvailable() {
		return "", errors.ErrClientNotInitialized
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:               p.cfg.Model,
		Messages:            toOpenAIMessages(messages),
		Temperature:         p.cfg.Temperature,
		MaxCompletionTokens: p.cfg.MaxTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf(errOpenAIChatFormat, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf(errOpenAIChatFormat, errors.ErrEmptyResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return out
}
