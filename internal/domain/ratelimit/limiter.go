// Package ratelimit implements a per-user sliding-window request limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults
const (
	DefaultMaxRequests = 30
	DefaultWindow      = 60 * time.Second
)

// Limiter allows at most maxRequests per user within any rolling window.
// It is safe for concurrent use.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu    sync.Mutex
	users map[int64][]time.Time // ascending request times inside the window
}

// New creates a limiter. now may be nil.
func New(maxRequests int, window time.Duration, now func() time.Time) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         now,
		users:       make(map[int64][]time.Time),
	}
}

// Allow drops the user's requests older than the window, then admits and
// records this request if fewer than maxRequests remain.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.users[userID], now.Add(-l.window))
	if len(recent) >= l.maxRequests {
		l.users[userID] = recent
		return false
	}
	l.users[userID] = append(recent, now)
	return true
}

// Prune forgets users with no requests inside the window and returns how
// many remain tracked.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for userID, times := range l.users {
		if recent := prune(times, cutoff); len(recent) == 0 {
			delete(l.users, userID)
		} else {
			l.users[userID] = recent
		}
	}
	return len(l.users)
}

// prune returns the suffix of times strictly after cutoff.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
