// Package errors holds the sentinel errors callers test with errors.Is.
// Package-local failures stay unexported in their packages; anything that
// crosses a package boundary or decides an exit path lives here and is
// wrapped with fmt.Errorf("...: %w").
package errors

import "errors"

// Provider errors.
var (
	ErrCircuitBreakerOpen   = errors.New("circuit breaker is open")
	ErrClientNotInitialized = errors.New("client not initialized")
	// ErrEmptyResponse covers blank completions and short embedding batches.
	ErrEmptyResponse = errors.New("empty response")
)

// Input errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownFeedType = errors.New("unknown feed type")
)

// Ranking model errors. The two training log errors make train mode exit 1.
var (
	ErrTrainingLogMissing = errors.New("interaction log not found")
	ErrTrainingLogEmpty   = errors.New("no data available for training")
	ErrMalformedModel     = errors.New("malformed ranking model")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join wraps errs into one error.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
