// Package app provides the capture service behind the mousebridge command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"go.aimuz.me/mousebridge/config"
	"go.aimuz.me/mousebridge/eventloop"
	"go.aimuz.me/mousebridge/internal/types"
	"go.aimuz.me/mousebridge/mouse"
	"go.aimuz.me/mousebridge/mousecapture"
)

// ErrNotTerminal is returned when the terminal backend is selected without
// a terminal on stdin.
var ErrNotTerminal = errors.New("app: terminal backend requires a terminal on stdin")

// Options configures a Service.
type Options struct {
	Output  io.Writer
	Logger  *slog.Logger
	Version string

	// Mechanism overrides the backend named in the config.
	Mechanism mousecapture.Mechanism

	// Screen is used by the terminal backend instead of the controlling
	// terminal.
	Screen tcell.Screen
}

// Service runs one capture session and writes events to its output.
type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	out     io.Writer
	mech    mousecapture.Mechanism
	screen  tcell.Screen
	version string

	mu      sync.Mutex
	emitter *mouse.Emitter
	writer  *EventWriter
}

// New creates a Service. cfg must be valid.
func New(cfg *config.Config, opts Options) *Service {
	s := &Service{
		cfg:     cfg,
		log:     opts.Logger,
		out:     opts.Output,
		mech:    opts.Mechanism,
		screen:  opts.Screen,
		version: opts.Version,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	return s
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Run captures until ctx is done or capture fails. Cancellation is a clean
// exit and returns nil.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mech, err := s.mechanism(cancel)
	if err != nil {
		return fmt.Errorf("select %s backend: %w", s.cfg.Backend, err)
	}
	w, err := NewEventWriter(s.out, s.cfg.OutputFormat)
	if err != nil {
		return err
	}

	loop := eventloop.New()
	defer loop.Close()

	em := mouse.New(loop, mech,
		mouse.WithCapacity(s.cfg.BufferCapacity),
		mouse.WithLogger(s.log),
	)
	s.mu.Lock()
	s.emitter = em
	s.writer = w
	s.mu.Unlock()

	for _, name := range s.cfg.Events {
		if err := em.On(name, s.listener(w, name, cancel)); err != nil {
			em.Destroy()
			return fmt.Errorf("listen %s: %w", name, err)
		}
	}
	s.log.Info("capture started", "mechanism", mech.Name(), "events", s.cfg.Events)

	go func() {
		<-ctx.Done()
		em.Destroy()
	}()

	// Returns once the emitter is destroyed or its bridge failed.
	if err := loop.Run(context.Background()); err != nil {
		return fmt.Errorf("run loop: %w", err)
	}
	em.Destroy()

	st := s.Status()
	s.log.Info("capture stopped",
		"delivered", st.Delivered,
		"overwritten", st.Overwritten,
		"written", st.Written,
	)

	select {
	case err := <-em.Err():
		return fmt.Errorf("capture: %w", err)
	default:
	}
	return nil
}

func (s *Service) listener(w *EventWriter, name string, stop func()) mouse.Listener {
	return func(x, y float64) {
		if err := w.Write(name, x, y); err != nil {
			s.log.Error("write event", "error", err)
			stop()
		}
	}
}

func (s *Service) mechanism(interrupt func()) (mousecapture.Mechanism, error) {
	if s.mech != nil {
		return s.mech, nil
	}

	switch s.cfg.Backend {
	case config.BackendTerminal:
		if s.screen == nil {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return nil, ErrNotTerminal
			}
			if term.IsTerminal(int(os.Stdout.Fd())) {
				s.log.Warn("event output shares the terminal with capture; redirect stdout to keep the screen readable")
			}
		}
		return mousecapture.NewTerminal(mousecapture.TerminalOptions{
			Screen:    s.screen,
			Interrupt: interrupt,
		}), nil
	case config.BackendNative:
		return mousecapture.Native(mousecapture.Options{InstallTimeout: s.cfg.InstallTimeout()})
	}
	return nil, fmt.Errorf("unknown backend %q", s.cfg.Backend)
}

// Status reports the current or final capture counters.
func (s *Service) Status() types.CaptureStatus {
	s.mu.Lock()
	em, w := s.emitter, s.writer
	s.mu.Unlock()
	if em == nil {
		return types.CaptureStatus{}
	}
	st, ok := em.Stats()
	if !ok {
		return types.CaptureStatus{}
	}
	return types.CaptureStatus{
		Written:     w.Count(),
		Bridge:      st.ID,
		Mechanism:   st.Mechanism,
		State:       st.State.String(),
		Delivered:   st.Delivered,
		Overwritten: st.Overwritten,
		Unknown:     st.Unknown,
		Pending:     st.Pending,
		Capacity:    st.Capacity,
	}
}
