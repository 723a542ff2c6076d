// Package refresh rebuilds the topology graph from the broker and keeps the
// most recent successful result.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/metrics"
	"github.com/MalithGihan/rabbitflow/internal/topology"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// ErrStaleGeneration is returned by Refresh when a newer refresh was started
// before this one finished. Its result has been dropped.
var ErrStaleGeneration = errors.New("refresh superseded by a newer one")

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateBuilt    State = "built"
	StateError    State = "error"
)

// Broker is the part of the management API client the refresher drives.
type Broker interface {
	topology.Broker
	Vhost() string
	SetVhost(name string)
}

// Snapshot is a committed graph. It is never modified after commit.
type Snapshot struct {
	ID         string        `json:"id"`
	Generation uint64        `json:"generation"`
	Vhost      string        `json:"vhost"`
	Graph      *types.Graph  `json:"graph"`
	BuiltAt    time.Time     `json:"builtAt"`
	Duration   time.Duration `json:"durationNs"`
}

type Status struct {
	State      State     `json:"state"`
	Generation uint64    `json:"generation"`
	Vhost      string    `json:"vhost"`
	LastError  string    `json:"lastError,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Refresher runs graph builds. Every call to Refresh gets the next
// generation number and cancels the build it supersedes; only a result from
// the latest generation is committed.
type Refresher struct {
	broker  Broker
	logger  *slog.Logger
	metrics *metrics.Registry
	build   func(context.Context, topology.Broker) (*types.Graph, error)

	mu        sync.Mutex
	issued    uint64
	committed uint64
	cancel    context.CancelFunc
	current   *Snapshot
	state     State
	lastErr   error
	updatedAt time.Time
}

type Option func(*Refresher)

func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Refresher) { r.metrics = m }
}

func New(b Broker, opts ...Option) *Refresher {
	r := &Refresher{
		broker: b,
		logger: slog.Default(),
		build:  topology.BuildFromBroker,
		state:  StateIdle,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Refresh builds a new graph and commits it. It returns ErrStaleGeneration
// if another refresh started meanwhile, and the broker error if the build
// failed; in both cases the previous snapshot stays current.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	r.issued++
	gen := r.issued
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = StateFetching
	r.updatedAt = time.Now()
	vhost := r.broker.Vhost()
	r.mu.Unlock()
	defer cancel()

	start := time.Now()
	g, err := r.build(ctx, r.broker)
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.issued || gen <= r.committed {
		r.logger.Debug("dropping stale graph", "generation", gen, "latest", r.issued)
		r.record("stale", elapsed)
		return nil, ErrStaleGeneration
	}
	r.cancel = nil
	r.updatedAt = time.Now()

	if err != nil {
		r.state = StateError
		r.lastErr = err
		r.logger.Error("graph refresh failed", "generation", gen, "vhost", vhost, "error", err)
		r.record("error", elapsed)
		return nil, err
	}

	snap := &Snapshot{
		ID:         uuid.NewString(),
		Generation: gen,
		Vhost:      vhost,
		Graph:      g,
		BuiltAt:    r.updatedAt,
		Duration:   elapsed,
	}
	r.current = snap
	r.committed = gen
	r.state = StateBuilt
	r.lastErr = nil

	queues, exchanges := countKinds(g)
	r.logger.Info("graph refreshed",
		"generation", gen,
		"vhost", vhost,
		"queues", queues,
		"exchanges", exchanges,
		"links", len(g.Links),
		"duration_ms", elapsed.Milliseconds(),
	)
	r.record("built", elapsed)
	if r.metrics != nil {
		r.metrics.SetGraphSize(gen, queues, exchanges, len(g.Links))
	}
	return snap, nil
}

// SetVhost switches the broker to another vhost and rebuilds.
func (r *Refresher) SetVhost(ctx context.Context, name string) (*Snapshot, error) {
	r.broker.SetVhost(name)
	return r.Refresh(ctx)
}

// Current returns the last committed snapshot, or nil before the first
// successful refresh.
func (r *Refresher) Current() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		State:      r.state,
		Generation: r.committed,
		Vhost:      r.broker.Vhost(),
		UpdatedAt:  r.updatedAt,
	}
	if r.lastErr != nil {
		s.LastError = broker.Message(r.lastErr)
	}
	return s
}

// Run refreshes every interval until ctx is done. Failures are logged and
// kept in Status.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = r.Refresh(ctx)
		}
	}
}

func (r *Refresher) record(outcome string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordRefresh(outcome, d)
	}
}

func countKinds(g *types.Graph) (queues, exchanges int) {
	for _, n := range g.Nodes {
		if n.Kind == types.KindQueue {
			queues++
		} else {
			exchanges++
		}
	}
	return queues, exchanges
}
