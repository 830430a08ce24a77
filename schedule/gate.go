package schedule

import (
	"sync/atomic"
)

// Gate admits at most one run at a time. Callers that find a run in
// progress are turned away rather than queued.
type Gate struct {
	running atomic.Bool
}

// TryRun runs fn synchronously when no other run holds the gate.
func (g *Gate) TryRun(fn func()) bool {
	if !g.running.CompareAndSwap(false, true) {
		return false
	}
	defer g.running.Store(false)
	fn()
	return true
}

// TryGo is TryRun on a new goroutine. done, when non-nil, is closed after fn returns.
func (g *Gate) TryGo(fn func(), done chan<- struct{}) bool {
	if !g.running.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer func() {
			g.running.Store(false)
			if done != nil {
				close(done)
			}
		}()
		fn()
	}()
	return true
}

// Running reports whether a run holds the gate.
func (g *Gate) Running() bool {
	return g.running.Load()
}
