package ratelimit

import (
	"sync"
	"time"
)

// window counts requests for one bucket key within the current clock
// hour, resetting at the top of each hour, per spec.md §4.13. Unlike the
// teacher's tokenBucket it holds only a counter and its reset time: the
// mutex lives on Limiter, the capacity is passed to each Allow call, and
// the count resets on a fixed hourly boundary instead of a continuous
// refill rate.
type window struct {
	count      int
	resetAt    time.Time
}

// Limiter is the query service's only mutable shared state: the rate-limit
// counter map, guarded by a mutex.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewLimiter builds an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{windows: make(map[string]*window), now: time.Now}
}

// Result reports the outcome of one Allow call, shaped for the
// X-RateLimit-* response headers.
type Result struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetUnix         int64
	RetryAfterSeconds int64
}

func topOfNextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// Allow consumes one request against key's hourly quota limit, resetting
// the counter if the current window has elapsed.
func (l *Limiter) Allow(key string, limit int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: topOfNextHour(now)}
		l.windows[key] = w
	}

	retryAfter := int64(w.resetAt.Sub(now).Seconds())
	if w.count >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetUnix: w.resetAt.Unix(), RetryAfterSeconds: retryAfter}
	}
	w.count++
	return Result{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetUnix: w.resetAt.Unix(), RetryAfterSeconds: retryAfter}
}
