// Package backoff provides reconnect delay strategies.
package backoff

import (
	"math"
	"time"
)

// Backoff returns the delay to wait before retry attempt n (n starts at 1).
type Backoff interface {
	Next(attempt int) time.Duration
}

// Func adapts a plain function to Backoff.
type Func func(attempt int) time.Duration

func (f Func) Next(attempt int) time.Duration {
	return f(attempt)
}

func Constant(d time.Duration) Backoff {
	return constantBackoff{delay: d}
}

// Exponential grows as base * factor^(attempt-1), never exceeding maxDelay when maxDelay > 0.
func Exponential(base time.Duration, factor float64, maxDelay time.Duration) Backoff {
	if factor < 1 {
		factor = 1
	}

	return exponentialBackoff{base: base, factor: factor, max: maxDelay}
}

type constantBackoff struct {
	delay time.Duration
}

func (b constantBackoff) Next(int) time.Duration {
	return b.delay
}

type exponentialBackoff struct {
	base   time.Duration
	factor float64
	max    time.Duration
}

func (b exponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.base) * math.Pow(b.factor, float64(attempt-1))
	if b.max > 0 && d > float64(b.max) {
		return b.max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(d)
}
