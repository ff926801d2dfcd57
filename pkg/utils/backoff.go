package utils

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy yields the wait before a retry.
type BackoffStrategy interface {
	// NextDelay returns the delay before retry number attempt (0-indexed).
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every retry.
type ConstantBackoff struct {
	Delay time.Duration
}

func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Delay: delay}
}

func (cb *ConstantBackoff) NextDelay(int) time.Duration {
	return cb.Delay
}

// ExponentialBackoff multiplies the delay by Multiplier on every retry,
// capped at MaxDelay. With Jitter the delay is scaled by a random factor
// in [0.5, 1.5).
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NewExponentialBackoff returns an exponential strategy. A non-positive
// multiplier defaults to 2.
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		Jitter:     jitter,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
