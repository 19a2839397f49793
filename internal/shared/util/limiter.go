package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces repeated runs at least interval apart. A zero interval
// never limits.
type Limiter struct {
	inner *rate.Limiter
}

func NewIntervalLimiter(interval time.Duration) *Limiter {
	return &Limiter{inner: rate.NewLimiter(intervalLimit(interval), 1)}
}

func intervalLimit(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// SetInterval changes the spacing for later runs.
func (l *Limiter) SetInterval(interval time.Duration) {
	l.inner.SetLimit(intervalLimit(interval))
}

// Allow consumes the slot if a run may start now.
func (l *Limiter) Allow() bool {
	return l.inner.Allow()
}

// Wait blocks until a run may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
