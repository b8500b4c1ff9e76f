package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.aimuz.me/mousebridge/config"
	"go.aimuz.me/mousebridge/internal/types"
)

// EventWriter writes delivered events, one per line.
type EventWriter struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	enc    *json.Encoder
	seq    int
	now    func() time.Time
}

// NewEventWriter returns a writer for format, config.FormatJSON or
// config.FormatText.
func NewEventWriter(out io.Writer, format string) (*EventWriter, error) {
	switch format {
	case config.FormatJSON, config.FormatText:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &EventWriter{
		out:    out,
		format: format,
		enc:    json.NewEncoder(out),
		now:    time.Now,
	}, nil
}

// Write records one event.
func (w *EventWriter) Write(name string, x, y float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	ev := types.MouseEvent{
		Name:      name,
		X:         x,
		Y:         y,
		Timestamp: w.now().UnixMilli(),
		Seq:       w.seq,
	}
	if w.format == config.FormatJSON {
		return w.enc.Encode(ev)
	}
	_, err := fmt.Fprintf(w.out, "%d %s %g %g\n", ev.Timestamp, ev.Name, ev.X, ev.Y)
	return err
}

// Count returns the number of events written.
func (w *EventWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}
