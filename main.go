// Command mousebridge prints global pointer events as they happen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.aimuz.me/mousebridge/config"
	"go.aimuz.me/mousebridge/internal/app"
	"go.aimuz.me/mousebridge/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mousebridge", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file (default: user config dir)")
	backend := flag.String("backend", "", "Capture backend: native or terminal")
	capacity := flag.Int("capacity", 0, "Event buffer capacity")
	events := flag.String("events", "", "Comma separated events to print, or \"all\"")
	format := flag.String("format", "", "Output format: json or text")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	save := flag.Bool("save", false, "Write the effective config and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mousebridge %s (%s, %s)\n", version, commit, date)
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flags override the file only when given.
	var overrideErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "capacity":
			cfg.BufferCapacity = *capacity
		case "events":
			if err := cfg.SetEvents(*events); err != nil {
				overrideErr = err
			}
		case "format":
			cfg.OutputFormat = *format
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if overrideErr != nil {
		return overrideErr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if *save {
		if *configPath != "" {
			return cfg.SaveFile(*configPath)
		}
		return cfg.Save()
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Info("starting mousebridge", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	svc := app.New(cfg, app.Options{Logger: logger, Version: version})
	start := time.Now()
	if err := svc.Run(ctx); err != nil {
		return err
	}
	slog.Info("done", "elapsed", time.Since(start).Round(time.Millisecond), "written", svc.Status().Written)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// A named file that does not exist yet is fine with -save.
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
