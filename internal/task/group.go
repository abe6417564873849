// Package task tracks fire-and-forget background work so that nothing
// the gateway spawns is ever orphaned: every task either completes or
// fails before Close returns.
package task

import (
	"sync"
	"sync/atomic"
)

// Group runs background functions with a concurrency bound. When the
// bound is reached new work is dropped rather than queued; callers log
// the drop and rely on the next opportunity (a later request or refresh
// tick) to redo the work.
type Group struct {
	wg     sync.WaitGroup
	sem    chan struct{}
	closed atomic.Bool
}

// NewGroup creates a group allowing at most limit concurrent tasks.
func NewGroup(limit int) *Group {
	if limit <= 0 {
		limit = 32
	}
	return &Group{sem: make(chan struct{}, limit)}
}

// Go runs fn on its own goroutine. It returns false without running fn
// when the group is saturated or already closed.
func (g *Group) Go(fn func()) bool {
	if g.closed.Load() {
		return false
	}
	select {
	case g.sem <- struct{}{}:
	default:
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() { <-g.sem }()
		fn()
	}()
	return true
}

// Close refuses new work and waits for all in-flight tasks.
func (g *Group) Close() {
	g.closed.Store(true)
	g.wg.Wait()
}
