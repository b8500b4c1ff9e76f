package bridge

import (
	"io"
	"log/slog"
	"testing"

	"go.aimuz.me/mousebridge/mousecapture"
)

func TestName(t *testing.T) {
	tests := []struct {
		kind mousecapture.Kind
		want string
	}{
		{mousecapture.LeftDown, "left-down"},
		{mousecapture.LeftUp, "left-up"},
		{mousecapture.RightDown, "right-down"},
		{mousecapture.RightUp, "right-up"},
		{mousecapture.Move, "move"},
		{mousecapture.LeftDrag, "left-drag"},
		{mousecapture.RightDrag, "right-drag"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, ok := Name(tt.kind)
			if !ok || got != tt.want {
				t.Errorf("Name(%d) = %q, %v; want %q", tt.kind, got, ok, tt.want)
			}
			if !ValidName(tt.want) {
				t.Errorf("ValidName(%q) = false", tt.want)
			}
		})
	}

	if _, ok := Name(0); ok {
		t.Error("Name(0) should not resolve")
	}
	if ValidName("middle-down") || ValidName("") || ValidName("Move") {
		t.Error("ValidName accepted an unknown name")
	}
}

func TestNameCoversEveryKind(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range mousecapture.Kinds {
		name, ok := Name(k)
		if !ok || name == "" {
			t.Fatalf("kind %d has no name", k)
		}
		if seen[name] {
			t.Fatalf("name %q used twice", name)
		}
		seen[name] = true
	}

	names := Names()
	want := []string{"left-down", "left-up", "right-down", "right-up", "move", "left-drag", "right-drag"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

type call struct {
	name string
	x, y float64
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDropsUnknownKinds(t *testing.T) {
	rb := NewRingBuffer(8)
	var got []call
	d := NewDispatcher(rb, func(name string, x, y float64) {
		got = append(got, call{name, x, y})
	}, nil, discardLogger())

	rb.Write(Record{X: 1, Y: 1, Kind: mousecapture.LeftDown})
	rb.Write(Record{X: 2, Y: 2, Kind: 0})
	rb.Write(Record{X: 3, Y: 3, Kind: 99})
	rb.Write(Record{X: 4, Y: 4, Kind: mousecapture.LeftUp})

	if n := d.Dispatch(); n != 2 {
		t.Fatalf("Dispatch() = %d, want 2", n)
	}
	want := []call{{"left-down", 1, 1}, {"left-up", 4, 4}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if d.Unknown() != 2 || d.Delivered() != 2 {
		t.Errorf("Unknown()=%d Delivered()=%d, want 2 and 2", d.Unknown(), d.Delivered())
	}
}

func TestDispatcherGate(t *testing.T) {
	rb := NewRingBuffer(8)
	active := true
	var got []call
	d := NewDispatcher(rb, func(name string, x, y float64) {
		got = append(got, call{name, x, y})
		active = false
	}, func() bool { return active }, discardLogger())

	rb.Write(Record{X: 1, Kind: mousecapture.Move})
	rb.Write(Record{X: 2, Kind: mousecapture.Move})
	rb.Write(Record{X: 3, Kind: mousecapture.Move})

	if n := d.Dispatch(); n != 1 {
		t.Fatalf("Dispatch() = %d, want 1", n)
	}
	if rb.Len() != 0 {
		t.Fatalf("gated records should still be drained, %d left", rb.Len())
	}
	if len(got) != 1 || got[0].x != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestDispatcherGateCheckedAfterKindLookup(t *testing.T) {
	rb := NewRingBuffer(8)
	checks := 0
	d := NewDispatcher(rb, func(string, float64, float64) {
		t.Error("receiver called with the gate closed")
	}, func() bool {
		checks++
		return false
	}, discardLogger())

	rb.Write(Record{Kind: mousecapture.LeftDown})
	rb.Write(Record{Kind: 0})
	rb.Write(Record{Kind: mousecapture.Move})

	if n := d.Dispatch(); n != 0 {
		t.Fatalf("Dispatch() = %d, want 0", n)
	}
	// One gate read per deliverable record, taken right before the receiver.
	if checks != 2 {
		t.Fatalf("gate read %d times, want 2", checks)
	}
	if d.Unknown() != 1 {
		t.Fatalf("Unknown() = %d, want 1", d.Unknown())
	}
}
