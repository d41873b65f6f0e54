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

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/compositor"
	"github.com/lumenwm/lumen/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "config file (default ~/.config/lumen/config.yaml)")
		backendName = flag.String("backend", "", "rendering backend: xrender, pixel or dummy")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn or error")
		logFile     = flag.String("log-file", "", "log to this file instead of stderr")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}
	if *backendName != "" {
		cfg.Backend = config.BackendName(*backendName)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A device reset ends the session; after the grace period a fresh
	// session starts from scratch. Nothing from the old one is reused.
	for {
		sess, err := compositor.NewSession(cfg, logger)
		if err != nil {
			logger.Error("session setup failed", "error", err)
			return 1
		}
		err = sess.Run(ctx)
		sess.Close()

		if errors.Is(err, backend.ErrDeviceReset) {
			if ctx.Err() != nil {
				return 0
			}
			logger.Warn("device reset, restarting session", "grace", cfg.ResetGrace.Std())
			select {
			case <-time.After(cfg.ResetGrace.Std()):
				continue
			case <-ctx.Done():
				return 0
			}
		}
		if err != nil {
			logger.Error("session failed", "error", err)
			return 1
		}
		return 0
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	out := os.Stderr
	cleanup := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		cleanup = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), cleanup, nil
}
