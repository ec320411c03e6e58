package orchestrator

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// millisPerHour is the window the signal budget is expressed in.
const millisPerHour int64 = 3_600_000

type rateKey struct {
	symbol    string
	timeframe string
}

// rateLimiter keeps one token bucket of burst 1 per (symbol, timeframe) pair.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[rateKey]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		mu:       sync.Mutex{},
		limiters: make(map[rateKey]*rate.Limiter),
	}
}

// minInterval returns the minimum spacing in milliseconds. Zero disables limiting.
func minInterval(maxPerHour int) int64 {
	if maxPerHour <= 0 {
		return 0
	}

	return millisPerHour / int64(maxPerHour)
}

// limitFor converts a millisecond spacing into a token rate.
// The period is shortened by one nanosecond so a full token is available exactly
// when the interval has elapsed despite float rounding in the bucket.
func limitFor(intervalMs int64) rate.Limit {
	if intervalMs <= 0 {
		return rate.Inf
	}

	return rate.Every(time.Duration(intervalMs)*time.Millisecond - time.Nanosecond)
}

// reserve takes the key's token at nowMs if one is available.
func (r *rateLimiter) reserve(key rateKey, nowMs int64, intervalMs int64) bool {
	limit := limitFor(intervalMs)
	at := time.UnixMilli(nowMs)

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[key]

	switch {
	case !ok:
		limiter = rate.NewLimiter(limit, 1)
		r.limiters[key] = limiter
	case limiter.Limit() == rate.Inf && limit != rate.Inf:
		// an unlimited bucket carries no usable token state
		limiter = rate.NewLimiter(limit, 1)
		r.limiters[key] = limiter
	case limiter.Limit() != limit:
		limiter.SetLimitAt(at, limit)
	}

	return limiter.AllowN(at, 1)
}
