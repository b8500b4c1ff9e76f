package mousecapture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrTapStopped is returned by FakeTap.Inject after the tap stopped.
var ErrTapStopped = errors.New("mousecapture: tap stopped")

// Fake is an in-memory mechanism for tests. Injected events are delivered
// to the handler from Run, i.e. on the thread that installed the tap.
type Fake struct {
	mu         sync.Mutex
	installErr error
	enableErr  error
	taps       []*FakeTap
	installed  chan struct{}
}

// NewFake returns a fake mechanism.
func NewFake() *Fake {
	return &Fake{installed: make(chan struct{})}
}

// FailInstall makes the next Install calls fail with err.
func (f *Fake) FailInstall(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installErr = err
}

// FailEnable makes Enable on future taps fail with err.
func (f *Fake) FailEnable(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableErr = err
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Install(mask Mask, h Handler) (Tap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.installErr != nil {
		return nil, f.installErr
	}
	t := &FakeTap{
		mask:      mask,
		handler:   h,
		enableErr: f.enableErr,
		inject:    make(chan fakeEvent),
		stop:      make(chan struct{}),
		running:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	f.taps = append(f.taps, t)
	if len(f.taps) == 1 {
		close(f.installed)
	}
	return t, nil
}

// Tap waits for the first installed tap.
func (f *Fake) Tap(ctx context.Context) (*FakeTap, error) {
	select {
	case <-f.installed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taps[0], nil
}

// Taps returns every tap installed so far.
func (f *Fake) Taps() []*FakeTap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeTap(nil), f.taps...)
}

type fakeEvent struct {
	kind Kind
	x, y float64
	done chan struct{}
}

// FakeTap is the tap returned by Fake.
type FakeTap struct {
	mask      Mask
	handler   Handler
	enableErr error

	enabled  atomic.Bool
	removed  atomic.Bool
	disabled atomic.Bool

	inject      chan fakeEvent
	stop        chan struct{}
	stopOnce    sync.Once
	running     chan struct{}
	runningOnce sync.Once
	done        chan struct{}
}

func (t *FakeTap) Enable() error {
	if t.enableErr != nil {
		return t.enableErr
	}
	t.enabled.Store(true)
	return nil
}

func (t *FakeTap) Run() {
	defer close(t.done)
	t.runningOnce.Do(func() { close(t.running) })
	for {
		select {
		case <-t.stop:
			return
		case ev := <-t.inject:
			if t.enabled.Load() && t.mask.Has(ev.kind) {
				t.handler(ev.kind, ev.x, ev.y)
			}
			close(ev.done)
		}
	}
}

func (t *FakeTap) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *FakeTap) Disable() {
	t.enabled.Store(false)
	t.disabled.Store(true)
}

func (t *FakeTap) Remove() {
	t.removed.Store(true)
}

// Inject delivers one event through Run and waits until the handler has
// returned. Kinds outside the tap's mask are filtered like a native tap
// would. It fails if ctx ends or the tap stops first.
func (t *FakeTap) Inject(ctx context.Context, kind Kind, x, y float64) error {
	ev := fakeEvent{kind: kind, x: x, y: y, done: make(chan struct{})}
	select {
	case t.inject <- ev:
	case <-t.stop:
		return ErrTapStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ev.done
	return nil
}

// Running is closed once Run has been entered.
func (t *FakeTap) Running() <-chan struct{} { return t.running }

// Done is closed once Run has returned.
func (t *FakeTap) Done() <-chan struct{} { return t.done }

// Disabled reports whether Disable was called.
func (t *FakeTap) Disabled() bool { return t.disabled.Load() }

// Removed reports whether Remove was called.
func (t *FakeTap) Removed() bool { return t.removed.Load() }
