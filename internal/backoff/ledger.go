// Package backoff tracks per-file cooldowns so a persistently failing input
// is not resubmitted on every scan cycle.
package backoff

import (
	"sync"
	"time"
)

// Ledger is a thread-safe map from file path to the earliest time a retry may
// be attempted.
type Ledger struct {
	mu      sync.Mutex
	delay   time.Duration
	nextTry map[string]time.Time
}

// NewLedger creates a ledger applying a fixed delay after each failure.
func NewLedger(delay time.Duration) *Ledger {
	return &Ledger{
		delay:   delay,
		nextTry: make(map[string]time.Time),
	}
}

// ShouldSkip reports whether path is still inside its cooldown window.
func (l *Ledger) ShouldSkip(path string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.nextTry[path]
	return ok && until.After(now)
}

// RecordFailure starts a cooldown window for path beginning at now.
func (l *Ledger) RecordFailure(path string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTry[path] = now.Add(l.delay)
}

// Forget removes any cooldown entry for path.
func (l *Ledger) Forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nextTry, path)
}

// Sweep removes entries for paths no longer present in the directory.
// Returns the number of entries removed.
func (l *Ledger) Sweep(present map[string]struct{}) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var toRemove []string
	for path := range l.nextTry {
		if _, ok := present[path]; !ok {
			toRemove = append(toRemove, path)
		}
	}
	for _, path := range toRemove {
		delete(l.nextTry, path)
	}
	return len(toRemove)
}

// Len returns the number of active cooldown entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nextTry)
}
