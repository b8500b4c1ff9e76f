package bridge

import (
	"log/slog"
	"sync/atomic"

	"go.aimuz.me/mousebridge/mousecapture"
)

// Event names delivered to receivers.
const (
	NameLeftDown  = "left-down"
	NameLeftUp    = "left-up"
	NameRightDown = "right-down"
	NameRightUp   = "right-up"
	NameMove      = "move"
	NameLeftDrag  = "left-drag"
	NameRightDrag = "right-drag"
)

var names = map[mousecapture.Kind]string{
	mousecapture.LeftDown:  NameLeftDown,
	mousecapture.LeftUp:    NameLeftUp,
	mousecapture.RightDown: NameRightDown,
	mousecapture.RightUp:   NameRightUp,
	mousecapture.Move:      NameMove,
	mousecapture.LeftDrag:  NameLeftDrag,
	mousecapture.RightDrag: NameRightDrag,
}

// Name returns the event name for a kind.
func Name(k mousecapture.Kind) (string, bool) {
	name, ok := names[k]
	return name, ok
}

// Names lists every event name in kind order.
func Names() []string {
	out := make([]string, 0, len(mousecapture.Kinds))
	for _, k := range mousecapture.Kinds {
		out = append(out, names[k])
	}
	return out
}

// ValidName reports whether name is one of the event names.
func ValidName(name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Receiver is called on the consumer context for each delivered event.
type Receiver func(name string, x, y float64)

// Dispatcher drains a ring buffer into a receiver, translating kinds to
// names. It must not run concurrently with itself.
type Dispatcher struct {
	ring   *RingBuffer
	recv   Receiver
	active func() bool
	log    *slog.Logger

	delivered atomic.Uint64
	unknown   atomic.Uint64
}

// NewDispatcher creates a dispatcher. active gates delivery: records drained
// while it reports false are dropped. A nil active always delivers.
//
// The gate is read immediately before each receiver call. A gate closed from
// another goroutine can still race with the one call already past the check.
func NewDispatcher(ring *RingBuffer, recv Receiver, active func() bool, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{ring: ring, recv: recv, active: active, log: log}
}

// Dispatch delivers everything currently buffered, in capture order, and
// returns how many records reached the receiver.
func (d *Dispatcher) Dispatch() int {
	n := 0
	d.ring.Drain(func(r Record) {
		name, ok := Name(r.Kind)
		if !ok {
			// The capture mask should make this unreachable.
			d.unknown.Add(1)
			d.log.Warn("drop event of unknown kind", "kind", r.Kind, "x", r.X, "y", r.Y)
			return
		}
		if d.active != nil && !d.active() {
			return
		}
		d.recv(name, r.X, r.Y)
		d.delivered.Add(1)
		n++
	})
	return n
}

// Delivered returns the number of events handed to the receiver.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Unknown returns the number of records dropped for an unknown kind.
func (d *Dispatcher) Unknown() uint64 { return d.unknown.Load() }
