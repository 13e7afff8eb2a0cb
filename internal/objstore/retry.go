package objstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/xufeisofly/bff/internal/bfferr"
)

// Retry constants mirror the source implementation's get_object_with_retry:
// base 100ms doubled per attempt, capped at 2000ms, plus uniform 0-1000ms
// jitter so concurrent workers don't retry in lockstep.
const (
	DefaultMaxRetries = 5
	baseDelay         = 100 * time.Millisecond
	maxDelay          = 2000 * time.Millisecond
	jitterCeiling     = 1000 * time.Millisecond
)

// stopRetrying wraps a terminal error (object not found, precondition
// failed) that withRetry should surface immediately instead of burning its
// retry budget on a deterministic failure.
type stopRetrying struct{ err error }

func (s stopRetrying) Error() string { return s.err.Error() }
func (s stopRetrying) Unwrap() error { return s.err }

// withRetry runs op up to maxRetries+1 times, sleeping with jittered
// exponential backoff between attempts. The final failure is wrapped in
// bfferr.ErrIO, unless op returned a stopRetrying error, which is unwrapped
// and returned immediately.
func withRetry(ctx context.Context, maxRetries int, op func() error) error {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var stop stopRetrying
		if errors.As(lastErr, &stop) {
			return stop.err
		}
		if attempt == maxRetries {
			break
		}

		delay := baseDelay << attempt
		if delay > maxDelay {
			delay = maxDelay
		}
		delay += randomJitter()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %w", bfferr.ErrIO, lastErr)
}

// randomJitter returns a uniformly distributed duration in [0, jitterCeiling).
func randomJitter() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(jitterCeiling)))
	if err != nil {
		return jitterCeiling / 2
	}
	return time.Duration(n.Int64())
}
