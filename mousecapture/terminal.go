package mousecapture

import (
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
)

const wheelMask = tcell.WheelUp | tcell.WheelDown | tcell.WheelLeft | tcell.WheelRight

// TerminalOptions configures the terminal mechanism.
type TerminalOptions struct {
	// Screen is the tcell screen to read. Nil opens the controlling terminal.
	Screen tcell.Screen

	// Interrupt, if set, runs on the capture thread when Ctrl+C is pressed.
	// Raw mode swallows SIGINT, so this is the only way out.
	Interrupt func()
}

// Terminal captures mouse reporting from a terminal through tcell.
// Coordinates are in cells.
type Terminal struct {
	opts TerminalOptions
}

// NewTerminal returns a terminal mechanism.
func NewTerminal(opts TerminalOptions) *Terminal {
	return &Terminal{opts: opts}
}

func (m *Terminal) Name() string { return "terminal" }

func (m *Terminal) Install(mask Mask, h Handler) (Tap, error) {
	screen := m.opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return &terminalTap{
		screen:    screen,
		mask:      mask,
		handler:   h,
		interrupt: m.opts.Interrupt,
	}, nil
}

type terminalTap struct {
	screen    tcell.Screen
	mask      Mask
	handler   Handler
	interrupt func()
	enabled   atomic.Bool
	stopped   atomic.Bool

	// buttons is the last reported primary/secondary state; only Run touches it.
	buttons tcell.ButtonMask
}

func (t *terminalTap) Enable() error {
	t.screen.EnableMouse(tcell.MouseMotionEvents)
	t.enabled.Store(true)
	return nil
}

func (t *terminalTap) Run() {
	for !t.stopped.Load() {
		switch ev := t.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventMouse:
			t.handleMouse(ev)
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC && t.interrupt != nil {
				t.interrupt()
			}
		}
	}
}

func (t *terminalTap) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	// Wake PollEvent; Run rechecks the flag before polling again.
	_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (t *terminalTap) Disable() {
	t.enabled.Store(false)
	t.screen.DisableMouse()
}

func (t *terminalTap) Remove() {
	t.screen.Fini()
}

func (t *terminalTap) handleMouse(ev *tcell.EventMouse) {
	buttons := ev.Buttons()
	if buttons&wheelMask != 0 {
		return
	}
	kinds, n := t.transitions(buttons & (tcell.Button1 | tcell.Button2))
	if !t.enabled.Load() {
		return
	}
	x, y := ev.Position()
	for _, k := range kinds[:n] {
		if t.mask.Has(k) {
			t.handler(k, float64(x), float64(y))
		}
	}
}

// transitions diffs the reported button state against the previous one.
// Terminals report state, not edges, so one report can release one button
// and press the other.
func (t *terminalTap) transitions(buttons tcell.ButtonMask) ([2]Kind, int) {
	var kinds [2]Kind
	n := 0
	prev := t.buttons
	t.buttons = buttons

	pressed := buttons &^ prev
	released := prev &^ buttons
	if released&tcell.Button1 != 0 {
		kinds[n] = LeftUp
		n++
	}
	if released&tcell.Button2 != 0 {
		kinds[n] = RightUp
		n++
	}
	if pressed&tcell.Button1 != 0 && n < len(kinds) {
		kinds[n] = LeftDown
		n++
	}
	if pressed&tcell.Button2 != 0 && n < len(kinds) {
		kinds[n] = RightDown
		n++
	}
	if n > 0 {
		return kinds, n
	}

	switch {
	case buttons&tcell.Button1 != 0:
		kinds[0] = LeftDrag
	case buttons&tcell.Button2 != 0:
		kinds[0] = RightDrag
	default:
		kinds[0] = Move
	}
	return kinds, 1
}
