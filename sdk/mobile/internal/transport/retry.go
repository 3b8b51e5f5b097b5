// Package transport is the SDK's HTTP client for the ad backend. It sends
// JSON requests with retry, Retry-After handling and a client-side rate limit,
// and delivers queued analytics events.
package transport

import (
	"math"
	"math/rand"
	"time"
)

// RetryStrategy schedules retries of a single request after transient
// failures. Long-term redelivery is the batch layer's job.
type RetryStrategy interface {
	// NextDelay returns the wait before retry number attempt (0-indexed),
	// or 0 when no retry should be made.
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the number of retries allowed.
	MaxAttempts() int
}

// ExponentialBackoff doubles the delay on every attempt up to MaxDelay and
// spreads it by +/- Jitter.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Jitter     float64 // 0.0 to 1.0
}

// NextDelay returns BaseDelay*2^attempt, capped and jittered.
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt >= e.MaxRetries {
		return 0
	}

	delay := float64(e.BaseDelay) * math.Pow(2, float64(attempt))
	delay = math.Min(delay, float64(e.MaxDelay))

	if e.Jitter > 0 {
		//nolint:gosec // jitter needs no cryptographic randomness
		delay += delay * e.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(delay, 0))
}

// MaxAttempts returns MaxRetries.
func (e *ExponentialBackoff) MaxAttempts() int {
	return e.MaxRetries
}

// DefaultRetry suits foreground ad requests: a handful of quick retries so a
// load neither fails on a blip nor stalls the host screen.
var DefaultRetry = &ExponentialBackoff{
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
	MaxRetries: 3,
	Jitter:     0.2,
}

// NoRetry makes a single attempt.
var NoRetry = &ExponentialBackoff{}
