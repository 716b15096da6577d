// Package chat implements the single inbound webhook surface: PII redaction,
// per-session rate limiting, conversation bookkeeping, and dispatch to the
// LLM and skill registry.
package chat

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute bounds how often one session may invoke the
// webhook, independent of any upstream LLM provider's own rate limit.
const DefaultRequestsPerMinute = 20

// Limiter hands out a per-session token bucket, following the same
// golang.org/x/time/rate idiom the domain clients use for their own
// upstream request throttling, applied here per conversation instead of
// per outbound client.
type Limiter struct {
	mu           sync.Mutex
	perSession   map[string]*rate.Limiter
	ratePerMin   int
	burst        int
}

// NewLimiter returns a Limiter allowing ratePerMin requests per minute per
// session, bursting up to burst.
func NewLimiter(ratePerMin, burst int) *Limiter {
	if ratePerMin <= 0 {
		ratePerMin = DefaultRequestsPerMinute
	}
	if burst <= 0 {
		burst = ratePerMin
	}
	return &Limiter{perSession: make(map[string]*rate.Limiter), ratePerMin: ratePerMin, burst: burst}
}

// Allow reports whether sessionID may proceed now, consuming a token if so.
func (l *Limiter) Allow(sessionID string) bool {
	return l.limiterFor(sessionID).Allow()
}

func (l *Limiter) limiterFor(sessionID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perSession[sessionID]
	if !ok {
		perSecond := float64(l.ratePerMin) / 60.0
		lim = rate.NewLimiter(rate.Limit(perSecond), l.burst)
		l.perSession[sessionID] = lim
	}
	return lim
}
