package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}{
		{"json", "json", func(t *testing.T, out string) {
			var rec map[string]any
			if err := json.Unmarshal([]byte(out), &rec); err != nil {
				t.Fatalf("not json: %v: %s", err, out)
			}
			if rec["msg"] != "hello" || rec["bridge"] != "b1" {
				t.Fatalf("unexpected record: %v", rec)
			}
			if ts, _ := rec["time"].(string); !strings.HasSuffix(ts, "Z") {
				t.Fatalf("time not UTC RFC3339: %q", ts)
			}
		}},
		{"text", "text", func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "bridge=b1") {
				t.Fatalf("unexpected text output: %s", out)
			}
		}},
		{"console alias", "console", func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") {
				t.Fatalf("unexpected text output: %s", out)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(Options{Level: "info", Format: tt.format, Output: &buf})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			log.Info("hello", "bridge", "b1")
			tt.check(t, buf.String())
		})
	}
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("quiet")
	log.Debug("quieter")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record leaked: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	if _, err := New(Options{Level: "trace"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(Options{Format: "logfmt"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
