// Package bridge relays pointer events from a capture thread to a single
// consumer context.
//
// A Bridge owns a producer goroutine locked to an OS thread. The producer
// installs a capture mechanism on that thread's native event loop, publishes
// the resulting tap, and blocks in the loop. Each captured event is written
// to a bounded ring buffer and the consumer's wake handle is signalled; the
// consumer drains the ring on its own goroutine and calls the receiver.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"go.aimuz.me/mousebridge/eventloop"
	"go.aimuz.me/mousebridge/mousecapture"
)

// ErrNilLoop is returned by New without a consumer loop.
var ErrNilLoop = errors.New("bridge: nil event loop")

// ErrNilMechanism is returned by New without a capture mechanism.
var ErrNilMechanism = errors.New("bridge: nil capture mechanism")

// ErrNilReceiver is returned by New without a receiver.
var ErrNilReceiver = errors.New("bridge: nil receiver")

// ErrStopped is returned by Ready once the bridge stopped without ever
// publishing its loop handle.
var ErrStopped = errors.New("bridge: stopped")

// State is a bridge lifecycle state. Transitions only move forward.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	ID          string
	Mechanism   string
	State       State
	Delivered   uint64
	Overwritten uint64
	Unknown     uint64
	Pending     int
	Capacity    int
}

// Option configures a Bridge.
type Option func(*options)

type options struct {
	capacity int
	logger   *slog.Logger
}

// WithCapacity sets the ring buffer capacity.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithLogger sets the logger. Defaults to slog.Default(); nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Bridge relays events from a capture mechanism to a receiver.
type Bridge struct {
	id   string
	log  *slog.Logger
	mech mousecapture.Mechanism

	ring       *RingBuffer
	dispatcher *Dispatcher
	async      *eventloop.Async

	// Start handshake: published is closed exactly once, after tap or
	// startErr is set. tap is immutable from then on.
	startMu   sync.Mutex
	published chan struct{}
	tap       mousecapture.Tap
	startErr  error

	state    atomic.Int32
	stopOnce sync.Once
	done     chan struct{}
	errc     chan error
}

// New creates a bridge and starts its producer. It returns before the
// capture mechanism is installed; install failures arrive on Err and from
// Ready.
func New(loop *eventloop.Loop, mech mousecapture.Mechanism, recv Receiver, opts ...Option) (*Bridge, error) {
	if loop == nil {
		return nil, ErrNilLoop
	}
	if mech == nil {
		return nil, ErrNilMechanism
	}
	if recv == nil {
		return nil, ErrNilReceiver
	}

	o := options{capacity: DefaultCapacity, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New().String()
	b := &Bridge{
		id:        id,
		log:       o.logger.With("bridge", id, "mechanism", mech.Name()),
		mech:      mech,
		ring:      NewRingBuffer(o.capacity),
		published: make(chan struct{}),
		done:      make(chan struct{}),
		errc:      make(chan error, 1),
	}
	b.dispatcher = NewDispatcher(b.ring, recv, b.running, b.log)
	b.async = loop.NewAsync(b.dispatch)
	b.async.OnLoopClose(b.Stop)

	b.state.Store(int32(StateRunning))
	go b.produce()

	b.log.Debug("bridge created", "capacity", b.ring.Cap())
	return b, nil
}

// produce is the capture thread body.
func (b *Bridge) produce() {
	defer close(b.done)

	// Native run loops belong to the thread that installed the tap.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tap, err := b.mech.Install(mousecapture.PointerMask, b.capture)
	if err != nil {
		b.fail(fmt.Errorf("install %s capture: %w", b.mech.Name(), err))
		return
	}
	if err := tap.Enable(); err != nil {
		tap.Remove()
		b.fail(fmt.Errorf("enable %s capture: %w", b.mech.Name(), err))
		return
	}

	b.publish(tap)
	b.log.Debug("capture running")
	tap.Run()

	tap.Disable()
	tap.Remove()
	b.log.Debug("capture removed")
}

// capture runs on the capture thread for every qualifying event. Besides the
// ring mutex, the first Send of a batch takes the loop mutex, which Ref,
// Unref, Close and RunOnce hold only for bookkeeping, never across callbacks.
func (b *Bridge) capture(kind mousecapture.Kind, x, y float64) {
	b.ring.Write(Record{X: x, Y: y, Kind: kind})
	b.async.Send()
}

// dispatch runs on the consumer loop after a wake.
func (b *Bridge) dispatch() {
	b.dispatcher.Dispatch()
}

func (b *Bridge) running() bool {
	return State(b.state.Load()) == StateRunning
}

func (b *Bridge) publish(tap mousecapture.Tap) {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	b.tap = tap
	close(b.published)
}

func (b *Bridge) fail(err error) {
	b.startMu.Lock()
	b.startErr = err
	close(b.published)
	b.startMu.Unlock()

	b.log.Error("capture failed", "error", err)
	b.errc <- err

	// Release the wake handle so a failed bridge does not keep the loop alive.
	go b.Stop()
}

// Ready blocks until the capture mechanism is installed and running, or
// returns the install error, ErrStopped, or ctx's error.
func (b *Bridge) Ready(ctx context.Context) error {
	select {
	case <-b.published:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	if b.tap == nil {
		return ErrStopped
	}
	return nil
}

// Stop stops capture, joins the producer and releases the wake handle. It
// blocks until the producer has published its loop handle (or failed), so it
// is safe immediately after New. Records still buffered are dropped. Called
// on the consumer loop, the receiver is not invoked again once Stop has
// begun. Called from another goroutine, at most one receiver call already in
// flight on the loop may still start after Stop returns. Idempotent; safe
// from inside the receiver.
//
// There is no timeout: a native loop that never returns hangs Stop.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.state.Store(int32(StateStopping))

		<-b.published
		b.startMu.Lock()
		tap := b.tap
		b.startMu.Unlock()
		if tap != nil {
			tap.Stop()
		}

		<-b.done
		b.async.Close()
		close(b.errc)

		b.state.Store(int32(StateStopped))
		b.log.Debug("bridge stopped", "delivered", b.dispatcher.Delivered(), "dropped", b.ring.Len())
	})
}

// Close stops the bridge. It implements io.Closer.
func (b *Bridge) Close() error {
	b.Stop()
	return nil
}

// Ref makes the bridge keep its loop's Run alive. This is the default.
func (b *Bridge) Ref() { b.async.Ref() }

// Unref lets the loop's Run return while the bridge keeps capturing.
func (b *Bridge) Unref() { b.async.Unref() }

// Err delivers at most one capture error and is closed once Stop completes.
func (b *Bridge) Err() <-chan error { return b.errc }

// ID returns the bridge's instance id.
func (b *Bridge) ID() string { return b.id }

// State returns the lifecycle state.
func (b *Bridge) State() State { return State(b.state.Load()) }

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		ID:          b.id,
		Mechanism:   b.mech.Name(),
		State:       b.State(),
		Delivered:   b.dispatcher.Delivered(),
		Overwritten: b.ring.Overwritten(),
		Unknown:     b.dispatcher.Unknown(),
		Pending:     b.ring.Len(),
		Capacity:    b.ring.Cap(),
	}
}
