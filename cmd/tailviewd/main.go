package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"

	"tailview/internal/buildinfo"
	"tailview/pkg/collect"
	"tailview/pkg/config"
	"tailview/pkg/core"
	"tailview/pkg/logstore"
	"tailview/pkg/server"
	"tailview/pkg/sources/filetail"
	"tailview/pkg/sources/journald"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("tailviewd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	configPath := ""
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		configPath = os.Args[2]
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "config:", e)
		}
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()), logLevel(cfg.Daemon.LogLevel)))

	// Single-instance guard: a second daemon on the same database corrupts
	// nothing thanks to WAL, but doubles every ingested line.
	lock := flock.New(cfg.Daemon.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("lock failed", "path", cfg.Daemon.LockPath, "err", err)
		os.Exit(1)
	}
	if !locked {
		logger.Error("another tailviewd is already running", "lock", cfg.Daemon.LockPath)
		os.Exit(1)
	}
	defer lock.Unlock()

	store, err := logstore.Open(cfg.Daemon.DBPath)
	if err != nil {
		logger.Error("store open failed", "path", cfg.Daemon.DBPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	var srcs []core.Source
	for _, ref := range cfg.Daemon.Sources {
		switch ref.Kind {
		case "file":
			srcs = append(srcs, filetail.New(ref.Path, ref.Service, logger))
		case "journald":
			srcs = append(srcs, journald.New(ref.Unit, ref.Service, logger))
		}
	}

	collector := collect.New(store, srcs, 0, cfg.Daemon.Retention.Std(), logger)
	srv := server.New(store, cfg.Daemon.Listen, cfg.Daemon.RateLimit, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	logger.Info("starting tailviewd",
		"version", buildinfo.Version,
		"listen", cfg.Daemon.Listen,
		"sources", len(srcs))
	daemon.SdNotify(false, daemon.SdNotifyReady)

	collector.Run(ctx)

	// Give the HTTP server a beat to finish its graceful shutdown.
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-time.After(10 * time.Second):
		logger.Warn("server shutdown timed out")
	}
}

// newLogHandler picks text for a terminal and JSON when stderr goes to a
// pipe or the journal.
func newLogHandler(w io.Writer, tty bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if tty {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
