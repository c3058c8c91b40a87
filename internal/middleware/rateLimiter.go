package middleware

import (
	"golang.org/x/time/rate"
)

// RateLimiter is a per-connection token bucket. A nil limiter allows everything.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRatelimiter returns nil when perSecond is not positive, which disables limiting.
func NewRatelimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *RateLimiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
