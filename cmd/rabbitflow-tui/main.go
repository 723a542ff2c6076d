package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/config"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/session"
	"github.com/MalithGihan/rabbitflow/internal/tui"
)

var (
	configFile = flag.String("config", "", "path to a config file (default: search for rabbitflow.yaml)")
	logFile    = flag.String("log", "", "write logs to this file (the terminal is owned by the UI)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := broker.New(cfg.Broker())
	ref := refresh.New(client, refresh.WithLogger(logger))
	sess, err := session.New(ref,
		session.WithLogger(logger),
		session.WithViewState(cfg.ViewState()),
	)
	if err != nil {
		log.Fatal(err)
	}

	m := tui.New(ctx, sess, client,
		tui.WithVhost(cfg.Vhost),
		tui.WithInterval(cfg.RefreshInterval),
	)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
