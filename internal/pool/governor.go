// Package pool bounds concurrent job execution and guarantees at most one
// in-flight job per file path.
package pool

import "sync"

// Governor is a bounded worker pool keyed by file path. A path may be claimed
// at most once at any time, and at most max jobs run concurrently.
type Governor struct {
	mu     sync.Mutex
	max    int
	claims map[string]struct{}
	wg     sync.WaitGroup
}

// NewGovernor creates a governor admitting at most max concurrent jobs.
func NewGovernor(max int) *Governor {
	if max < 1 {
		max = 1
	}
	return &Governor{
		max:    max,
		claims: make(map[string]struct{}),
	}
}

// TryAdmit claims path and runs fn in a new goroutine. It never blocks: if
// path is already claimed or no worker slot is free it returns false and the
// caller is expected to retry on a later scan cycle. The claim is released
// exactly once, when fn returns (normally or by panic).
func (g *Governor) TryAdmit(path string, fn func()) bool {
	g.mu.Lock()
	if _, claimed := g.claims[path]; claimed || len(g.claims) >= g.max {
		g.mu.Unlock()
		return false
	}
	g.claims[path] = struct{}{}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.release(path)
		fn()
	}()
	return true
}

// release removes the claim for path unconditionally.
func (g *Governor) release(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, path)
}

// Claimed reports whether path currently has an in-flight job.
func (g *Governor) Claimed(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.claims[path]
	return ok
}

// InFlight returns the number of currently running jobs.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

// Wait blocks until all admitted jobs have finished. Used during shutdown
// after the scan loop has stopped admitting new work.
func (g *Governor) Wait() {
	g.wg.Wait()
}
