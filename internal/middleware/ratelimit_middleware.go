package middleware

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Invalid admin token attempts allowed per IP within one window.
const (
	maxInvalidAttempts = 5
	attemptWindow      = time.Minute
)

// InvalidAuthRateLimiter throttles only failed authentication attempts.
type InvalidAuthRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	clock    clockz.Clock
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewInvalidAuthRateLimiter creates a limiter. A nil clock means the real clock.
func NewInvalidAuthRateLimiter(clock clockz.Clock) *InvalidAuthRateLimiter {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &InvalidAuthRateLimiter{
		attempts: make(map[string]*attemptInfo),
		clock:    clock,
	}
}

// Allow records a failed attempt from ip and reports whether it is still
// within the limit.
func (r *InvalidAuthRateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	info, exists := r.attempts[ip]
	if !exists || now.Sub(info.firstAt) > attemptWindow {
		r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
		return true
	}

	if info.count >= maxInvalidAttempts {
		return false
	}
	info.count++
	return true
}

// Cleanup drops expired entries. main runs it periodically.
func (r *InvalidAuthRateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for ip, info := range r.attempts {
		if now.Sub(info.firstAt) > attemptWindow {
			delete(r.attempts, ip)
		}
	}
}

func (r *InvalidAuthRateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}
