// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go.aimuz.me/mousebridge/bridge"
	"go.aimuz.me/mousebridge/mousecapture"
)

const (
	appName        = "mousebridge"
	configFileName = "config.json"
)

// Backends.
const (
	BackendNative   = "native"
	BackendTerminal = "terminal"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// userConfigDir is replaced in tests.
var userConfigDir = os.UserConfigDir

// Config represents the application configuration.
type Config struct {
	Backend          string   `json:"backend" yaml:"backend"`
	BufferCapacity   int      `json:"buffer_capacity" yaml:"buffer_capacity"`
	InstallTimeoutMS int      `json:"install_timeout_ms" yaml:"install_timeout_ms"`
	Events           []string `json:"events" yaml:"events"`
	OutputFormat     string   `json:"output_format" yaml:"output_format"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	LogFormat        string   `json:"log_format" yaml:"log_format"`
}

// Load loads configuration from the user config directory.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	cfg, err := LoadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile loads configuration from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Unset fields take defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save persists the configuration to the user config directory.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile writes the configuration to path in the format its extension
// selects.
func (c *Config) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks field values. It expects defaults to be applied.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative, BackendTerminal:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.BufferCapacity)
	}
	if c.InstallTimeoutMS < 0 {
		return fmt.Errorf("install timeout must not be negative, got %d", c.InstallTimeoutMS)
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("at least one event required")
	}
	for _, name := range c.Events {
		if !bridge.ValidName(name) {
			return fmt.Errorf("unknown event %q", name)
		}
	}
	switch c.OutputFormat {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	if _, err := NormalizeLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := NormalizeLogFormat(c.LogFormat); err != nil {
		return err
	}
	return nil
}

// InstallTimeout returns the configured install timeout.
func (c *Config) InstallTimeout() time.Duration {
	if c.InstallTimeoutMS == 0 {
		return mousecapture.DefaultInstallTimeout
	}
	return time.Duration(c.InstallTimeoutMS) * time.Millisecond
}

// SetEvents replaces the event list from a comma separated string. "all"
// selects every event.
func (c *Config) SetEvents(list string) error {
	if strings.TrimSpace(list) == "all" {
		c.Events = bridge.Names()
		return nil
	}
	var events []string
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !bridge.ValidName(name) {
			return fmt.Errorf("unknown event %q", name)
		}
		if !slices.Contains(events, name) {
			events = append(events, name)
		}
	}
	if len(events) == 0 {
		return fmt.Errorf("at least one event required")
	}
	c.Events = events
	return nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Default returns the default configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNative
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = bridge.DefaultCapacity
	}
	if len(c.Events) == 0 {
		c.Events = bridge.Names()
	}
	if c.OutputFormat == "" {
		c.OutputFormat = FormatJSON
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// NormalizeLogLevel validates and canonicalizes a log level name.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeLogFormat validates and canonicalizes a log format name.
func NormalizeLogFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "console":
		return "text", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
