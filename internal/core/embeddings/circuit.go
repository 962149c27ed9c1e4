package embeddings

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// BreakerState is the position of a Breaker.
type BreakerState int

// Breaker states.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker stops calls to a failing provider for a cool-down period. Once it
// has elapsed a single trial call is let through and its outcome closes or
// reopens the breaker. The LLM registry shares this type.
type Breaker struct {
	mu        sync.Mutex
	cfg       CircuitBreakerConfig
	failures  int
	openUntil time.Time
	trial     bool
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewBreaker creates a closed breaker. A non-positive threshold uses the default.
func NewBreaker(cfg CircuitBreakerConfig, logger *zerolog.Logger) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultCircuitThreshold
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Breaker{cfg: cfg, now: time.Now, logger: logger}
}

// Allow returns ErrCircuitBreakerOpen while the breaker is open or while the
// half-open trial call is still outstanding.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state() {
	case BreakerOpen:
		return fmt.Errorf("%w until %s", errors.ErrCircuitBreakerOpen, b.openUntil.Format(time.RFC3339))
	case BreakerHalfOpen:
		if b.trial {
			return fmt.Errorf("%w: trial call in flight", errors.ErrCircuitBreakerOpen)
		}

		b.trial = true
	}

	return nil
}

// State reports the current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state()
}

// Success closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trial = false
	b.openUntil = time.Time{}
}

// Failure counts a failed call for provider. The breaker opens when the
// threshold is reached, and a failed trial reopens it at once.
func (b *Breaker) Failure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	if !b.trial && b.failures < b.cfg.Threshold {
		return
	}

	b.trial = false
	b.openUntil = b.now().Add(b.cfg.ResetAfter)

	observability.CircuitBreakerOpens.WithLabelValues(provider).Inc()

	b.logger.Warn().
		Str(logKeyProvider, provider).
		Int("consecutive_failures", b.failures).
		Time("open_until", b.openUntil).
		Msg("circuit breaker opened")
}

func (b *Breaker) state() BreakerState {
	switch {
	case b.openUntil.IsZero():
		return BreakerClosed
	case b.now().Before(b.openUntil):
		return BreakerOpen
	default:
		return BreakerHalfOpen
	}
}
