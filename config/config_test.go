package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/mousebridge/bridge"
	"go.aimuz.me/mousebridge/mousecapture"
)

func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := userConfigDir
	userConfigDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userConfigDir = prev })
	return dir
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	withConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend != BackendNative {
		t.Fatalf("unexpected default backend: %q", cfg.Backend)
	}
	if cfg.BufferCapacity != bridge.DefaultCapacity {
		t.Fatalf("unexpected default capacity: %d", cfg.BufferCapacity)
	}
	if !slices.Equal(cfg.Events, bridge.Names()) {
		t.Fatalf("unexpected default events: %v", cfg.Events)
	}
	if cfg.OutputFormat != FormatJSON {
		t.Fatalf("unexpected default output format: %q", cfg.OutputFormat)
	}
	if cfg.InstallTimeout() != mousecapture.DefaultInstallTimeout {
		t.Fatalf("unexpected default install timeout: %s", cfg.InstallTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	dir := withConfigDir(t)

	cfg := Default()
	cfg.Backend = BackendTerminal
	cfg.BufferCapacity = 64
	cfg.Events = []string{"left-down", "left-up"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, appName, configFileName)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend != BackendTerminal || got.BufferCapacity != 64 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if !slices.Equal(got.Events, cfg.Events) {
		t.Fatalf("unexpected events: %v", got.Events)
	}
}

func TestLoadFileFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "json",
			file:    "config.json",
			content: `{"backend":"terminal","buffer_capacity":32,"install_timeout_ms":500,"events":["move"],"log_level":"DEBUG"}`,
		},
		{
			name:    "yaml",
			file:    "config.yaml",
			content: "backend: terminal\nbuffer_capacity: 32\ninstall_timeout_ms: 500\nevents:\n  - move\nlog_level: DEBUG\n",
		},
		{
			name:    "yml",
			file:    "mouse.yml",
			content: "backend: terminal\nbuffer_capacity: 32\ninstall_timeout_ms: 500\nevents: [move]\nlog_level: DEBUG\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile returned error: %v", err)
			}
			if cfg.Backend != BackendTerminal {
				t.Fatalf("unexpected backend: %q", cfg.Backend)
			}
			if cfg.BufferCapacity != 32 {
				t.Fatalf("unexpected capacity: %d", cfg.BufferCapacity)
			}
			if cfg.InstallTimeout() != 500*time.Millisecond {
				t.Fatalf("unexpected install timeout: %s", cfg.InstallTimeout())
			}
			if !slices.Equal(cfg.Events, []string{"move"}) {
				t.Fatalf("unexpected events: %v", cfg.Events)
			}
			// Unset fields fall back to defaults.
			if cfg.OutputFormat != FormatJSON || cfg.LogFormat != "text" {
				t.Fatalf("defaults not applied: %+v", cfg)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad json", `{"backend":`, "unmarshal config"},
		{"unknown backend", `{"backend":"x11"}`, "unknown backend"},
		{"negative capacity", `{"buffer_capacity":-1}`, "buffer capacity"},
		{"negative timeout", `{"install_timeout_ms":-5}`, "install timeout"},
		{"unknown event", `{"events":["scroll"]}`, "unknown event"},
		{"output format", `{"output_format":"xml"}`, "output format"},
		{"log level", `{"log_level":"trace"}`, "log level"},
		{"log format", `{"log_format":"logfmt"}`, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadFile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveFileYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.OutputFormat = FormatText
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "output_format: text") {
		t.Fatalf("expected yaml keys, got:\n%s", data)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.OutputFormat != FormatText {
		t.Fatalf("unexpected output format: %q", got.OutputFormat)
	}
}

func TestSetEvents(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []string
		wantErr bool
	}{
		{"single", "move", []string{"move"}, false},
		{"spaces and dups", " left-down , move,left-down ", []string{"left-down", "move"}, false},
		{"all", "all", bridge.Names(), false},
		{"unknown", "move,scroll", nil, true},
		{"empty", " , ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.SetEvents(tt.list)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetEvents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(cfg.Events, tt.want) {
				t.Fatalf("Events = %v, want %v", cfg.Events, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	levels := map[string]string{"": "info", "DEBUG": "debug", " warning ": "warn", "error": "error"}
	for in, want := range levels {
		got, err := NormalizeLogLevel(in)
		if err != nil || got != want {
			t.Errorf("NormalizeLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	formats := map[string]string{"": "text", "console": "text", "JSON": "json"}
	for in, want := range formats {
		got, err := NormalizeLogFormat(in)
		if err != nil || got != want {
			t.Errorf("NormalizeLogFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
