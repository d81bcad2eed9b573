package bot

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter for outbound API calls. When the
// window fills up it enters a backoff period during which every request is
// refused. State lives on the instance, never in package globals.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	backoff time.Duration

	calls        []time.Time
	backoffUntil time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing max calls per window. Exceeding
// the limit triggers a backoff period before calls are admitted again.
func NewRateLimiter(max int, window, backoff time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		backoff: backoff,
		now:     time.Now,
	}
}

// Allow reports whether one more call may proceed, recording it if so.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Before(r.backoffUntil) {
		return false
	}

	cutoff := now.Add(-r.window)
	kept := r.calls[:0]
	for _, t := range r.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.calls = kept

	if len(r.calls) >= r.max {
		r.backoffUntil = now.Add(r.backoff)
		return false
	}

	r.calls = append(r.calls, now)
	return true
}

// Remaining returns how many calls are left in the current window.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	active := 0
	for _, t := range r.calls {
		if t.After(cutoff) {
			active++
		}
	}
	if active >= r.max {
		return 0
	}
	return r.max - active
}
