//go:build (linux || windows) && cgo

package mousecapture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	hook "github.com/robotn/gohook"
)

// libuiohook button masks carried on drag events.
const (
	hookMaskButton1 = 1 << 8
	hookMaskButton2 = 1 << 9
)

// libuiohook button numbers.
const (
	hookButtonLeft  = 1
	hookButtonRight = 2
)

// gohook owns a single process-wide hook.
var (
	hookMu     sync.Mutex
	hookActive bool
)

type hookMechanism struct {
	timeout time.Duration
}

// Native returns the gohook (libuiohook) mechanism.
func Native(opts Options) (Mechanism, error) {
	return &hookMechanism{timeout: opts.installTimeout()}, nil
}

func (m *hookMechanism) Name() string { return "gohook" }

func (m *hookMechanism) Install(mask Mask, h Handler) (Tap, error) {
	hookMu.Lock()
	defer hookMu.Unlock()

	if hookActive {
		return nil, ErrInUse
	}

	events := hook.Start()

	// libuiohook reports HookEnabled once its native loop is running. A
	// missing display or permission never gets that far.
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	for ready := false; !ready; {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, ErrInstall
			}
			ready = ev.Kind == hook.HookEnabled
		case <-timer.C:
			hook.End()
			return nil, fmt.Errorf("%w: no hook-enabled event after %s", ErrInstall, m.timeout)
		}
	}

	hookActive = true
	return &hookTap{
		mask:    mask,
		handler: h,
		events:  events,
		stop:    make(chan struct{}),
	}, nil
}

type hookTap struct {
	mask    Mask
	handler Handler
	events  chan hook.Event
	enabled atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
}

func (t *hookTap) Enable() error {
	t.enabled.Store(true)
	return nil
}

func (t *hookTap) Run() {
	for {
		select {
		case <-t.stop:
			return
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			kind, ok := hookKind(ev)
			if !ok || !t.enabled.Load() || !t.mask.Has(kind) {
				continue
			}
			t.handler(kind, float64(ev.X), float64(ev.Y))
		}
	}
}

func (t *hookTap) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *hookTap) Disable() {
	t.enabled.Store(false)
}

func (t *hookTap) Remove() {
	hookMu.Lock()
	defer hookMu.Unlock()

	hook.End()
	hookActive = false
}

// hookKind maps a gohook event to a kind. Event.Kind carries libuiohook's
// raw event type, so MouseDown (EVENT_MOUSE_PRESSED) is the press and
// MouseHold (EVENT_MOUSE_RELEASED) the release. MouseUp is the click that
// follows a release and is ignored.
func hookKind(ev hook.Event) (Kind, bool) {
	switch ev.Kind {
	case hook.MouseDown:
		switch ev.Button {
		case hookButtonLeft:
			return LeftDown, true
		case hookButtonRight:
			return RightDown, true
		}
	case hook.MouseHold:
		switch ev.Button {
		case hookButtonLeft:
			return LeftUp, true
		case hookButtonRight:
			return RightUp, true
		}
	case hook.MouseMove:
		return Move, true
	case hook.MouseDrag:
		switch {
		case ev.Mask&hookMaskButton1 != 0:
			return LeftDrag, true
		case ev.Mask&hookMaskButton2 != 0:
			return RightDrag, true
		}
	}
	return 0, false
}
