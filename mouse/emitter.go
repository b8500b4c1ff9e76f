// Package mouse exposes pointer capture as a named-event emitter.
//
// An Emitter captures nothing until the first listener is registered; that
// registration starts a bridge on the emitter's loop. Listeners run on the
// loop goroutine.
package mouse

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/mousebridge/bridge"
	"go.aimuz.me/mousebridge/eventloop"
	"go.aimuz.me/mousebridge/mousecapture"
)

// ErrUnknownEvent is returned by On for a name outside the event vocabulary.
var ErrUnknownEvent = errors.New("mouse: unknown event")

// ErrDestroyed is returned by On after Destroy.
var ErrDestroyed = errors.New("mouse: emitter destroyed")

// Listener receives the coordinates of one event.
type Listener func(x, y float64)

// Option configures an Emitter.
type Option func(*Emitter)

// WithCapacity sets the bridge ring capacity.
func WithCapacity(n int) Option {
	return func(e *Emitter) { e.bridgeOpts = append(e.bridgeOpts, bridge.WithCapacity(n)) }
}

// WithLogger sets the logger used by the emitter and its bridge. nil is
// ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l == nil {
			return
		}
		e.log = l
		e.bridgeOpts = append(e.bridgeOpts, bridge.WithLogger(l))
	}
}

// Emitter fans bridge events out to listeners by name.
type Emitter struct {
	loop       *eventloop.Loop
	mech       mousecapture.Mechanism
	bridgeOpts []bridge.Option
	log        *slog.Logger

	mu        sync.Mutex
	listeners map[string][]Listener
	b         *bridge.Bridge
	destroyed bool
	unref     bool

	errc chan error
	fwd  sync.WaitGroup
}

// New creates an emitter. Nothing is captured until On is called.
func New(loop *eventloop.Loop, mech mousecapture.Mechanism, opts ...Option) *Emitter {
	e := &Emitter{
		loop:      loop,
		mech:      mech,
		log:       slog.Default(),
		listeners: make(map[string][]Listener),
		errc:      make(chan error, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers fn for the named event. The first successful call starts
// capture.
func (e *Emitter) On(name string, fn Listener) error {
	if !bridge.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if fn == nil {
		return fmt.Errorf("mouse: nil listener for %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	e.listeners[name] = append(e.listeners[name], fn)

	if e.b != nil {
		return nil
	}
	b, err := bridge.New(e.loop, e.mech, e.emit, e.bridgeOpts...)
	if err != nil {
		e.listeners[name] = e.listeners[name][:len(e.listeners[name])-1]
		return fmt.Errorf("start capture: %w", err)
	}
	if e.unref {
		b.Unref()
	}
	e.b = b
	e.fwd.Add(1)
	go e.forward(b)

	e.log.Debug("emitter started capture", "event", name, "bridge", b.ID())
	return nil
}

// emit runs on the loop goroutine.
func (e *Emitter) emit(name string, x, y float64) {
	e.mu.Lock()
	ls := e.listeners[name]
	e.mu.Unlock()

	// ls is append-only, so the snapshot stays valid outside the lock.
	for _, fn := range ls {
		fn(x, y)
	}
}

func (e *Emitter) forward(b *bridge.Bridge) {
	defer e.fwd.Done()
	for err := range b.Err() {
		select {
		case e.errc <- err:
		default:
			e.log.Warn("dropped capture error", "error", err)
		}
	}
}

// Ref makes capture keep the loop alive. This is the default.
func (e *Emitter) Ref() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unref = false
	if e.b != nil {
		e.b.Ref()
	}
}

// Unref lets the loop return while capture continues.
func (e *Emitter) Unref() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unref = true
	if e.b != nil {
		e.b.Unref()
	}
}

// Destroy stops capture and drops all listeners. Idempotent. Stats keeps
// reporting the final counters afterwards.
func (e *Emitter) Destroy() {
	e.mu.Lock()
	b := e.b
	e.destroyed = true
	e.listeners = make(map[string][]Listener)
	e.mu.Unlock()

	if b != nil {
		b.Stop()
	}
	e.fwd.Wait()
}

// Err delivers capture errors from the underlying bridge. Once Destroy has
// returned, any error the bridge reported is buffered here.
func (e *Emitter) Err() <-chan error { return e.errc }

// Stats returns the bridge counters, or false before capture started.
func (e *Emitter) Stats() (bridge.Stats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b == nil {
		return bridge.Stats{}, false
	}
	return e.b.Stats(), true
}
