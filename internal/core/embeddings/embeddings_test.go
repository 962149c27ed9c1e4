package embeddings

import (
	"context"
	"crypto/sha1" //nolint:gosec // test mirrors the bucket function
	"encoding/json"
	stderrors "errors"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-digest/internal/core/errors"
)

var errProviderDown = stderrors.New("provider down")

type fakeProvider struct {
	name     ProviderName
	priority int
	err      error
	calls    int
}

func (f *fakeProvider) Name() ProviderName { return f.name }
func (f *fakeProvider) Model() string      { return "fake" }
func (f *fakeProvider) IsAvailable() bool  { return true }
func (f *fakeProvider) Priority() int      { return f.priority }

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}

	return out, nil
}

func l2(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}

	return math.Sqrt(s)
}

func TestHashedEmbedder_Deterministic(t *testing.T) {
	h := NewHashedEmbedder(0)
	require.Equal(t, DefaultHashedDimensions, h.Dimensions())

	a, err := h.Embed(context.Background(), []string{"Agents Plan Tools", "agents plan tools"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, a[0], a[1], "embedding is case-insensitive")
	assert.InDelta(t, 1.0, l2(a[0]), 1e-12)

	b, err := h.Embed(context.Background(), []string{"Agents Plan Tools"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestHashedEmbedder_EmptyText(t *testing.T) {
	vecs, err := NewHashedEmbedder(8).Embed(context.Background(), []string{"   "})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 8), vecs[0])
}

func TestHashedEmbedder_BucketMatchesFullDigestModulo(t *testing.T) {
	for _, dim := range []int{32, 10, 7} {
		h := NewHashedEmbedder(dim)

		for _, tok := range []string{"agent", "eval", "long", "context", "vlm"} {
			sum := sha1.Sum([]byte(tok)) //nolint:gosec // see import
			n := new(big.Int).SetBytes(sum[:])
			want := int(n.Mod(n, big.NewInt(int64(dim))).Int64())

			assert.Equal(t, want, h.bucket(tok), "dim=%d tok=%s", dim, tok)
		}
	}
}

func TestHashedEmbedder_RepeatedTokens(t *testing.T) {
	vecs, err := NewHashedEmbedder(32).Embed(context.Background(), []string{"x x x"})
	require.NoError(t, err)

	nonZero := 0

	for _, v := range vecs[0] {
		if v != 0 {
			nonZero++

			assert.InDelta(t, 1.0, v, 1e-12)
		}
	}

	assert.Equal(t, 1, nonZero)
}

func TestRegistry_FallsBackToLowerPriority(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, priority: PriorityPrimary, err: errProviderDown}

	r := NewRegistry(nil)
	r.Register(NewHashedEmbedder(16), DefaultCircuitBreakerConfig())
	r.Register(primary, DefaultCircuitBreakerConfig())

	assert.Equal(t, []ProviderName{ProviderOpenAI, ProviderHashed}, r.ProviderNames())

	vecs, err := r.Embed(context.Background(), []string{"a b"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 16)
	assert.Equal(t, 1, primary.calls)
}

func TestRegistry_AllFail(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeProvider{name: "a", priority: 2, err: errProviderDown}, DefaultCircuitBreakerConfig())
	r.Register(&fakeProvider{name: "b", priority: 1, err: errProviderDown}, DefaultCircuitBreakerConfig())

	_, err := r.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.ErrorIs(t, err, errProviderDown)
}

func TestRegistry_Empty(t *testing.T) {
	_, err := NewRegistry(nil).Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrNoProvidersAvailable)

	vecs, err := NewRegistry(nil).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestRegistry_CircuitOpensAfterThreshold(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, priority: PriorityPrimary, err: errProviderDown}

	r := NewRegistry(nil)
	r.Register(primary, CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Hour})
	r.Register(NewHashedEmbedder(4), DefaultCircuitBreakerConfig())

	for range 4 {
		_, err := r.Embed(context.Background(), []string{"x"})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, primary.calls, "open circuit skips the primary")
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b := NewBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute}, nil)
	b.now = func() time.Time { return now }

	b.Failure(string(ProviderOpenAI))
	require.Equal(t, BreakerClosed, b.State())
	require.NoError(t, b.Allow())

	b.Failure(string(ProviderOpenAI))
	require.Equal(t, BreakerOpen, b.State())
	require.ErrorIs(t, b.Allow(), errors.ErrCircuitBreakerOpen)

	now = now.Add(time.Minute)
	require.Equal(t, BreakerHalfOpen, b.State())
	require.NoError(t, b.Allow(), "one trial call")
	require.ErrorIs(t, b.Allow(), errors.ErrCircuitBreakerOpen, "second call waits for the trial")

	b.Failure(string(ProviderOpenAI))
	require.Equal(t, BreakerOpen, b.State(), "failed trial reopens at once")

	now = now.Add(time.Minute)
	require.NoError(t, b.Allow())
	b.Success()

	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestRegistry_RejectsShortResult(t *testing.T) {
	short := &shortProvider{}

	r := NewRegistry(nil)
	r.Register(short, DefaultCircuitBreakerConfig())
	r.Register(NewHashedEmbedder(4), DefaultCircuitBreakerConfig())

	vecs, err := r.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

type shortProvider struct{ fakeProvider }

func (s *shortProvider) Name() ProviderName { return "short" }
func (s *shortProvider) Priority() int      { return PriorityPrimary }

func (s *shortProvider) Embed(context.Context, []string) ([][]float64, error) {
	return [][]float64{{1}}, nil
}

func TestOpenAIProvider_EmbedRestoresOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, ModelTextEmbedding3Small, req.Model)
		require.Len(t, req.Input, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL, RateLimit: 100})
	require.True(t, p.IsAvailable())

	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL, RateLimit: 100})

	_, err := p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
}

func TestOpenAIProvider_UnavailableWithoutKey(t *testing.T) {
	assert.False(t, NewOpenAIProvider(OpenAIConfig{}).IsAvailable())
}
