package ratelimit

import "golang.org/x/time/rate"

// NewMessageLimiter returns a limiter admitting perSecond messages per second
// with a burst of the same size. perSecond <= 0 disables limiting.
func NewMessageLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}
