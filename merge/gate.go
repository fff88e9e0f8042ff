package merge

import (
	"sync"
	"sync/atomic"
)

// ReadGate serialises row reads across every input of a session. The row
// store may keep process-wide state behind its file handles, so only one
// read is in flight at a time while the rest of each worker runs in
// parallel.
type ReadGate struct {
	mu        sync.Mutex
	inside    atomic.Int32
	maxInside atomic.Int32
	calls     atomic.Int64
}

// Do runs fn while holding the gate.
func (g *ReadGate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.inside.Add(1)
	for {
		m := g.maxInside.Load()
		if n <= m || g.maxInside.CompareAndSwap(m, n) {
			break
		}
	}
	g.calls.Add(1)
	defer g.inside.Add(-1)
	return fn()
}

// MaxConcurrent returns the largest number of callers ever observed inside
// the gate at once.
func (g *ReadGate) MaxConcurrent() int { return int(g.maxInside.Load()) }

// Calls returns the number of completed or running Do calls.
func (g *ReadGate) Calls() int64 { return g.calls.Load() }
