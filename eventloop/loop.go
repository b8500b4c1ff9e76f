// Package eventloop provides a single-goroutine consumer context that runs
// callbacks woken from other goroutines.
//
// An Async handle is the wake primitive: Send may be called from any
// goroutine and is coalescing, so several sends before the loop gets to the
// handle produce one callback run. Referenced handles keep Run alive;
// unreferenced ones are still serviced but do not prevent Run from returning.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loop runs Async callbacks serially on the goroutine that calls Run.
type Loop struct {
	mu      sync.Mutex
	handles map[*Async]struct{}
	ready   []*Async
	refs    int
	closed  bool

	// signal has capacity one; a pending token means "recheck".
	signal chan struct{}
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{
		handles: make(map[*Async]struct{}),
		signal:  make(chan struct{}, 1),
	}
}

// Async is a wake handle owned by a Loop.
type Async struct {
	loop    *Loop
	cb      func()
	pending atomic.Bool

	// Guarded by loop.mu.
	ref         bool
	closed      bool
	onLoopClose func()
}

// NewAsync registers a referenced handle whose callback runs on the loop
// after Send. On a closed loop the handle is returned already closed.
func (l *Loop) NewAsync(cb func()) *Async {
	a := &Async{loop: l, cb: cb}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		a.closed = true
		return a
	}
	a.ref = true
	l.refs++
	l.handles[a] = struct{}{}
	return a
}

// Send schedules the callback. Safe from any goroutine; never blocks.
func (a *Async) Send() {
	if !a.pending.CompareAndSwap(false, true) {
		return
	}
	l := a.loop
	l.mu.Lock()
	if a.closed {
		l.mu.Unlock()
		return
	}
	l.ready = append(l.ready, a)
	l.mu.Unlock()
	l.wake()
}

// Ref makes the handle keep Run alive.
func (a *Async) Ref() {
	l := a.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if a.closed || a.ref {
		return
	}
	a.ref = true
	l.refs++
}

// Unref lets Run return while the handle is still open.
func (a *Async) Unref() {
	l := a.loop
	l.mu.Lock()
	if a.closed || !a.ref {
		l.mu.Unlock()
		return
	}
	a.ref = false
	l.refs--
	l.mu.Unlock()
	l.wake()
}

// HasRef reports whether the handle keeps Run alive.
func (a *Async) HasRef() bool {
	a.loop.mu.Lock()
	defer a.loop.mu.Unlock()
	return a.ref
}

// OnLoopClose registers fn to run when the loop is closed while the handle
// is still open. fn runs instead of the plain close and is expected to close
// the handle itself.
func (a *Async) OnLoopClose(fn func()) {
	a.loop.mu.Lock()
	defer a.loop.mu.Unlock()
	a.onLoopClose = fn
}

// Close removes the handle from the loop. Once Close returns, the callback
// will not be started again. Idempotent.
func (a *Async) Close() {
	l := a.loop
	l.mu.Lock()
	if a.closed {
		l.mu.Unlock()
		return
	}
	a.closed = true
	if a.ref {
		a.ref = false
		l.refs--
	}
	delete(l.handles, a)
	l.mu.Unlock()
	l.wake()
}

// Closed reports whether Close has run.
func (a *Async) Closed() bool {
	a.loop.mu.Lock()
	defer a.loop.mu.Unlock()
	return a.closed
}

func (l *Loop) wake() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Run services handles until no referenced handle remains and nothing is
// pending, or ctx is done. Callbacks run on the calling goroutine. Run must
// not be called concurrently with itself or RunOnce.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.RunOnce()

		l.mu.Lock()
		idle := len(l.ready) == 0
		alive := l.refs > 0
		l.mu.Unlock()

		if !idle {
			continue
		}
		if !alive {
			return nil
		}
		select {
		case <-l.signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce runs the callbacks pending at the time of the call without
// blocking and returns how many ran.
func (l *Loop) RunOnce() int {
	l.mu.Lock()
	batch := l.ready
	l.ready = nil
	l.mu.Unlock()

	n := 0
	for _, a := range batch {
		// Clear before the callback so a Send during it schedules another run.
		a.pending.Store(false)
		if a.Closed() {
			continue
		}
		a.cb()
		n++
	}
	return n
}

// Alive reports whether any referenced handle is open.
func (l *Loop) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs > 0
}

// Close closes every open handle, running OnLoopClose hooks first. Handles
// created afterwards start closed.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	open := make([]*Async, 0, len(l.handles))
	for a := range l.handles {
		open = append(open, a)
	}
	l.mu.Unlock()

	for _, a := range open {
		a.loop.mu.Lock()
		hook := a.onLoopClose
		a.loop.mu.Unlock()
		if hook != nil {
			hook()
		}
		a.Close()
	}
	l.wake()
}
