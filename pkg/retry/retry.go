// Package retry re-runs failed remote calls. The session and the upload
// negotiator never retry on their own; callers that want resilience wrap
// calls with Do or Value.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/go115/cloud115/pkg/protocol"
)

// Policy controls how failed calls are retried.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	// MaxRetryAfter caps a Retry-After hint from the remote. Zero means
	// DefaultMaxHint.
	MaxRetryAfter time.Duration
	// RetryIf overrides Retryable.
	RetryIf func(err error) bool
}

// DefaultPolicy implements a conservative retry strategy.
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// Retryable reports whether err is a transient transport failure: a
// timeout, or an HTTP 408, 429 or 5xx status. Remote rejections and usage
// errors are final.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var transportErr *protocol.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable()
	}
	return false
}

// Do calls fn until it succeeds, fails with a final error, runs out of
// retries or ctx is done.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls returning a result.
func Value[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryIf := policy.RetryIf
	if retryIf == nil {
		retryIf = Retryable
	}
	backoff := NewBackoff(policy)

	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if attempt >= policy.MaxRetries || !retryIf(err) {
			return out, err
		}
		if err := sleep(ctx, backoff.Delay(attempt, err)); err != nil {
			return out, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
