package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-digest/internal/core/errors"
)

// OpenAI model constants.
const (
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// Default rate limiter burst.
	openaiRateLimiterBurst = 5

	// maxBatchInputs caps the inputs sent in one embeddings request.
	maxBatchInputs = 256
)

// OpenAIProvider implements the embedding Provider interface for OpenAI-compatible APIs.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	rateLimiter *rate.Limiter
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string  // "text-embedding-3-small" by default
	RateLimit float64 // Requests per second
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
		available:   cfg.APIKey != "",
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// Model returns the embedding model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Priority returns the provider priority.
func (p *OpenAIProvider) Priority() int {
	return PriorityPrimary
}

// IsAvailable returns true if an API key is configured.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.available
}

// Embed requests embeddings in batches and restores input order from the
// response indexes.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	for start := 0; start < len(texts); start += maxBatchInputs {
		end := min(start+maxBatchInputs, len(texts))

		if err := p.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string, out [][]float64) error {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf(errRateLimiterFmt, err)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return fmt.Errorf("%w: got %d embeddings for %d inputs", errors.ErrEmptyResponse, len(resp.Data), len(texts))
	}

	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}

		vec := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float64(v)
		}

		out[idx] = vec
	}

	for i, v := range out {
		if v == nil {
			return fmt.Errorf("%w: missing embedding for input %d", errors.ErrEmptyResponse, i)
		}
	}

	return nil
}
