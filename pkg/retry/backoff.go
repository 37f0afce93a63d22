package retry

import (
	"errors"
	"math/rand/v2"
	"time"
)

// DefaultMaxHint bounds how long a Retry-After hint may delay a retry when
// the policy sets no bound.
const DefaultMaxHint = 30 * time.Second

// Backoff computes the wait before a retry. A failure carrying a Retry-After
// hint from the remote waits as asked, up to MaxHint; anything else doubles
// from Base up to Max and is spread by Jitter.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	Jitter  float64
	MaxHint time.Duration
}

// hinted is implemented by protocol.TransportError.
type hinted interface {
	RetryAfter() time.Duration
}

// NewBackoff derives a Backoff from policy, filling unset bounds.
func NewBackoff(policy Policy) Backoff {
	b := Backoff{
		Base:    policy.BaseDelay,
		Max:     policy.MaxDelay,
		Jitter:  min(max(policy.Jitter, 0), 1),
		MaxHint: policy.MaxRetryAfter,
	}
	if b.Base <= 0 {
		b.Base = 50 * time.Millisecond
	}
	if b.Max < b.Base {
		b.Max = max(time.Second, b.Base)
	}
	if b.MaxHint <= 0 {
		b.MaxHint = DefaultMaxHint
	}
	return b
}

// Delay returns the wait before retry number attempt (0-indexed) after err.
func (b Backoff) Delay(attempt int, err error) time.Duration {
	var h hinted
	if errors.As(err, &h) {
		if d := h.RetryAfter(); d > 0 {
			return min(d, b.MaxHint)
		}
	}
	return b.spread(b.exponential(attempt))
}

func (b Backoff) exponential(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

func (b Backoff) spread(d time.Duration) time.Duration {
	if b.Jitter == 0 {
		return d
	}
	factor := 1 + (rand.Float64()*2-1)*b.Jitter
	return time.Duration(float64(d) * factor)
}
