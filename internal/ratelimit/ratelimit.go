// Package ratelimit throttles event processing on top of golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket. A nil *Limiter never throttles.
type Limiter struct {
	limiter *rate.Limiter
}

// New allows perSecond events per second with the given burst. A burst below
// one is raised to one. perSecond <= 0 disables throttling and returns nil.
func New(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until an event may happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// SetRate changes the sustained rate.
func (l *Limiter) SetRate(perSecond float64) {
	if l == nil {
		return
	}
	l.limiter.SetLimit(rate.Limit(perSecond))
}
