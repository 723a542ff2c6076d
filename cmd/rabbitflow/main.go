package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/MalithGihan/rabbitflow/internal/api"
	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/config"
	"github.com/MalithGihan/rabbitflow/internal/metrics"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/render"
	"github.com/MalithGihan/rabbitflow/internal/session"
	"github.com/MalithGihan/rabbitflow/internal/store"
)

const shutdownTimeout = 30 * time.Second

var (
	version = "--- set from makefile ---"

	help        = flag.Bool("help", false, "show help message")
	showVersion = flag.Bool("version", false, "show command version")
	configFile  = flag.String("config", "", "path to a config file (default: search for rabbitflow.yaml)")
	export      = flag.String("export", "", "refresh once, write the view to this file (.json, .yaml, .svg, .drawio, .puml) and exit")
)

func main() {
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	if cfg.File != "" {
		logger.Info("loaded config file", "path", cfg.File)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *export != "" {
		if err := exportOnce(ctx, cfg, logger, *export); err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	wg := sync.WaitGroup{}

	// ----------------------------------------------------------------------------
	// Initialization

	reg := metrics.NewRegistry()
	client := broker.New(cfg.Broker(), broker.WithObserver(reg.ObserveBroker))
	ref := refresh.New(client, refresh.WithLogger(logger), refresh.WithMetrics(reg))
	sess, err := session.New(ref,
		session.WithLogger(logger),
		session.WithViewState(cfg.ViewState()),
	)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	// A failed first refresh is not fatal: the status carries the error and
	// the next refresh may succeed.
	if err := sess.Refresh(ctx); err != nil {
		logger.Warn("initial refresh failed", "url", cfg.URL, "vhost", cfg.Vhost, "error", err)
	}

	if cfg.RefreshInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("starting background refresh", "interval", cfg.RefreshInterval)
			ref.Run(ctx, cfg.RefreshInterval)
		}()
	}

	// ----------------------------------------------------------------------------
	// Server Setup

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewRouter(api.Deps{
			Session:   sess,
			Snapshots: ref,
			Catalog:   client,
			Metrics:   reg,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(serverErrs)

		logger.Info("starting http server", "addr", cfg.Addr, "broker", cfg.URL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- fmt.Errorf("server error: %w", err)
		}
	}()

	// ----------------------------------------------------------------------------
	// Shutdown

	select {
	case err := <-serverErrs:
		return fmt.Errorf("received server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down application")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	logger.Info("waiting for background tasks to complete")
	wg.Wait()
	return nil
}

func exportOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) error {
	client := broker.New(cfg.Broker())
	ref := refresh.New(client, refresh.WithLogger(logger))
	sess, err := session.New(ref,
		session.WithLogger(logger),
		session.WithViewState(cfg.ViewState()),
	)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := sess.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %s", broker.Message(err))
	}

	st, err := store.New(filepath.Dir(path))
	if err != nil {
		return err
	}
	out, err := st.Save(filepath.Base(path), sess.View(), render.Options{Mode: sess.State().Mode})
	if err != nil {
		return err
	}
	logger.Info("exported view", "path", out, "status", sess.StatusLine())
	return nil
}
