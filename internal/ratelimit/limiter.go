// Package ratelimit bounds how often a single client may issue queue commands.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window commands are counted over
	DefaultWindow = time.Minute
	// idleTimeout is how long an unused client entry is kept
	idleTimeout = 10 * time.Minute
)

// Limiter is a per-key sliding window limiter. Expired entries are pruned during calls to
// Allow, so there is no background goroutine to stop.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastPrune time.Time
}

type entry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a limiter allowing limit calls per window for each key. A limit of zero or
// less disables limiting.
func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Allow records a call for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= idleTimeout {
		l.pruneLocked(now)
	}

	e, ok := l.entries[key]
	if !ok {
		e = &entry{timestamps: make([]time.Time, 0, l.limit+1)}
		l.entries[key] = e
	}
	e.lastSeen = now

	windowStart := now.Add(-l.window)
	valid := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	e.timestamps = valid

	if len(e.timestamps) >= l.limit {
		return false
	}
	e.timestamps = append(e.timestamps, now)
	return true
}

// Clients returns the number of tracked keys.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-idleTimeout)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
	l.lastPrune = now
}
