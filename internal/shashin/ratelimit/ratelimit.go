// Package ratelimit bounds how many reports one caller can generate in a
// sliding time window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of reports allowed per sender per window
	// when no explicit limit is configured.
	DefaultLimit = 60

	defaultWindow = time.Minute
)

// Limiter enforces a per-sender sliding-window limit on generated reports.
// It keeps the timestamps of reports inside the window and prunes stale ones
// on every call, so memory stays bounded to O(limit) per active sender.
//
// Limiter is safe for concurrent use from multiple goroutines.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time
}

// New returns a Limiter that allows at most limit reports per sender within
// window. A limit <= 0 defaults to DefaultLimit and a window <= 0 to one
// minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// SetClock overrides the time source.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// AllowN reports whether the sender may generate n more reports and, if so,
// records them. A batch is admitted or refused as a whole.
func (l *Limiter) AllowN(senderID string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := l.prune(senderID, now)
	if len(valid)+n > l.limit {
		l.counters[senderID] = valid
		return false
	}
	for i := 0; i < n; i++ {
		valid = append(valid, now)
	}
	l.counters[senderID] = valid
	return true
}

// Allow is AllowN(senderID, 1).
func (l *Limiter) Allow(senderID string) bool {
	return l.AllowN(senderID, 1)
}

// Remaining returns the number of reports the sender can still generate in
// the current window.
func (l *Limiter) Remaining(senderID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	valid := l.prune(senderID, l.now())
	l.counters[senderID] = valid
	if rem := l.limit - len(valid); rem > 0 {
		return rem
	}
	return 0
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int { return l.limit }

// prune drops timestamps outside the window. Callers hold mu.
func (l *Limiter) prune(senderID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	existing := l.counters[senderID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
