// Package api exposes the flow graph over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/foundation"
	"github.com/MalithGihan/rabbitflow/internal/layout"
	"github.com/MalithGihan/rabbitflow/internal/metrics"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/session"
)

// Catalog lists broker objects that are not part of the graph.
type Catalog interface {
	ListVhosts(ctx context.Context) ([]broker.Vhost, error)
	ListExchanges(ctx context.Context) ([]broker.Exchange, error)
}

// Snapshots reports on graph refreshes.
type Snapshots interface {
	Status() refresh.Status
	Current() *refresh.Snapshot
}

type Deps struct {
	Session   *session.Session
	Snapshots Snapshots
	Catalog   Catalog
	Metrics   *metrics.Registry
	Logger    *slog.Logger
	Layout    layout.Config
}

type handlers struct {
	session   *session.Session
	snapshots Snapshots
	catalog   Catalog
	layout    layout.Config
}

// NewRouter registers all HTTP routes of the service.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		session:   d.Session,
		snapshots: d.Snapshots,
		catalog:   d.Catalog,
		layout:    d.Layout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(foundation.WithLogger(logger))
	r.Use(foundation.AccessLog(logger))
	r.Use(foundation.Recover(logger))
	if d.Metrics != nil {
		r.Use(foundation.Metrics(d.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		foundation.RespondError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		foundation.RespondError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		foundation.Respond(w, http.StatusOK, map[string]any{"ok": true, "service": "rabbitflow"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/vhosts", h.vhosts)
		r.Get("/exchanges", h.exchanges)
		r.Post("/refresh", h.refresh)
		r.Put("/vhost", h.setVhost)
		r.Get("/graph", h.graph)
		r.Get("/view", h.view)
		r.Put("/view", h.setView)
	})

	return r
}
