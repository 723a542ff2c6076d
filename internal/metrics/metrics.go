package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rabbitflow"

// Registry holds all collectors of the application on a private
// prometheus.Registry.
type Registry struct {
	// Refresh metrics
	RefreshesTotal  *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	GraphNodes      *prometheus.GaugeVec
	GraphLinks      prometheus.Gauge
	Generation      prometheus.Gauge

	// Broker metrics
	BrokerRequestsTotal   *prometheus.CounterVec
	BrokerRequestDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.initRefreshMetrics()
	r.initBrokerMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initRefreshMetrics() {
	f := promauto.With(r.registry)

	r.RefreshesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Graph refreshes by outcome (built, error, stale).",
	}, []string{"outcome"})

	r.RefreshDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Time spent building the graph from the broker.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	r.GraphNodes = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_nodes",
		Help:      "Nodes in the current graph by kind.",
	}, []string{"kind"})

	r.GraphLinks = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_links",
		Help:      "Links in the current graph.",
	})

	r.Generation = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_generation",
		Help:      "Generation of the committed graph.",
	})
}

func (r *Registry) initBrokerMetrics() {
	f := promauto.With(r.registry)

	r.BrokerRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broker_requests_total",
		Help:      "Management API requests by endpoint and status code (0 for transport errors).",
	}, []string{"endpoint", "status"})

	r.BrokerRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "broker_request_duration_seconds",
		Help:      "Management API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
}

func (r *Registry) initHTTPMetrics() {
	f := promauto.With(r.registry)

	r.HTTPRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	r.HTTPRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.HTTPRequestsInFlight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests being served.",
	})
}

// RecordRefresh counts a refresh outcome; duration is only observed for
// completed builds.
func (r *Registry) RecordRefresh(outcome string, d time.Duration) {
	r.RefreshesTotal.WithLabelValues(outcome).Inc()
	if outcome == "built" {
		r.RefreshDuration.Observe(d.Seconds())
	}
}

func (r *Registry) SetGraphSize(generation uint64, queues, exchanges, links int) {
	r.Generation.Set(float64(generation))
	r.GraphNodes.WithLabelValues("queue").Set(float64(queues))
	r.GraphNodes.WithLabelValues("exchange").Set(float64(exchanges))
	r.GraphLinks.Set(float64(links))
}

// ObserveBroker matches broker.Observer.
func (r *Registry) ObserveBroker(endpoint string, status int, d time.Duration) {
	r.BrokerRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	r.BrokerRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (r *Registry) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }
func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
