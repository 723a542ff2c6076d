// Package session keeps what a user is looking at: the metric mode, the name
// filter, the last good view and a one-line status. Any shell (HTTP, terminal)
// drives it through the same command handlers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/topology"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// Refresher is the part of refresh.Refresher a session needs.
type Refresher interface {
	Refresh(ctx context.Context) (*refresh.Snapshot, error)
	SetVhost(ctx context.Context, name string) (*refresh.Snapshot, error)
	Current() *refresh.Snapshot
}

type Session struct {
	refresher Refresher
	logger    *slog.Logger

	mu     sync.Mutex
	state  types.ViewState
	view   types.View
	gen    uint64
	status string
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithViewState sets the initial mode and filter. An invalid filter is
// reported by New.
func WithViewState(st types.ViewState) Option {
	return func(s *Session) { s.state = st }
}

func New(r Refresher, opts ...Option) (*Session, error) {
	s := &Session{
		refresher: r,
		logger:    slog.Default(),
		state:     types.ViewState{Mode: types.ModeRate},
		view:      emptyView(),
		status:    "no graph yet",
	}
	for _, o := range opts {
		o(s)
	}
	if s.state.Mode == "" {
		s.state.Mode = types.ModeRate
	}
	if _, err := topology.CompileFilter(s.state.Filter); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.syncLocked()
	s.mu.Unlock()
	return s, nil
}

// Refresh rebuilds the graph. A failure keeps the previous view and puts the
// error on the status line. A refresh superseded by a newer one is not an
// error.
func (s *Session) Refresh(ctx context.Context) error {
	snap, err := s.refresher.Refresh(ctx)
	return s.afterRefresh(snap, err)
}

// SetVhost switches vhost and rebuilds, with the same error handling as
// Refresh.
func (s *Session) SetVhost(ctx context.Context, name string) error {
	snap, err := s.refresher.SetVhost(ctx, name)
	return s.afterRefresh(snap, err)
}

func (s *Session) afterRefresh(snap *refresh.Snapshot, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, refresh.ErrStaleGeneration) {
		return nil
	}
	if err != nil {
		s.status = broker.Message(err)
		return err
	}
	if snap.Generation < s.gen {
		return nil
	}
	s.apply(snap)
	return nil
}

// SetMode switches between rate and count values. Only link values change.
func (s *Session) SetMode(mode types.MetricMode) error {
	m, err := types.ParseMetricMode(string(mode))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reproject(types.ViewState{Mode: m, Filter: s.state.Filter})
}

// SetFilter sets the queue name filter. An invalid pattern is returned as
// *topology.InvalidFilterError and the previous filter and view are kept.
func (s *Session) SetFilter(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reproject(types.ViewState{Mode: s.state.Mode, Filter: pattern})
}

// SetViewState applies mode and filter together; nothing changes if either is
// invalid.
func (s *Session) SetViewState(st types.ViewState) error {
	mode, err := types.ParseMetricMode(string(st.Mode))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reproject(types.ViewState{Mode: mode, Filter: st.Filter})
}

// View returns the current view, picking up graphs committed by refreshes
// that did not go through this session.
func (s *Session) View() types.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.view
}

// Preview projects the current graph with st without changing the session.
func (s *Session) Preview(st types.ViewState) (types.View, error) {
	mode, err := types.ParseMetricMode(string(st.Mode))
	if err != nil {
		return types.View{}, err
	}
	var g *types.Graph
	if snap := s.refresher.Current(); snap != nil {
		g = snap.Graph
	}
	return topology.Project(g, mode, st.Filter)
}

// StateAndView returns the view state and the view projected with it, read
// under one lock so the mode always matches the values.
func (s *Session) StateAndView() (types.ViewState, types.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.state, s.view
}

func (s *Session) State() types.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) StatusLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.status
}

func (s *Session) reproject(st types.ViewState) error {
	var g *types.Graph
	if snap := s.refresher.Current(); snap != nil {
		g = snap.Graph
	}
	view, err := topology.Project(g, st.Mode, st.Filter)
	if err != nil {
		s.status = err.Error()
		s.logger.Debug("view not changed", "filter", st.Filter, "error", err)
		return err
	}
	s.state = st
	s.view = view
	return nil
}

func (s *Session) syncLocked() {
	snap := s.refresher.Current()
	if snap == nil || snap.Generation <= s.gen {
		return
	}
	s.apply(snap)
}

// apply projects snap with the current state. The state was validated when
// it was set, so projection cannot fail here.
func (s *Session) apply(snap *refresh.Snapshot) {
	view, err := topology.Project(snap.Graph, s.state.Mode, s.state.Filter)
	if err != nil {
		s.status = err.Error()
		return
	}
	s.view = view
	s.gen = snap.Generation
	s.status = summary(snap)
}

func summary(snap *refresh.Snapshot) string {
	var queues, exchanges int
	for _, n := range snap.Graph.Nodes {
		if n.Kind == types.KindQueue {
			queues++
		} else {
			exchanges++
		}
	}
	return fmt.Sprintf("vhost %s: %d queues, %d exchanges, %d links (generation %d)",
		snap.Vhost, queues, exchanges, len(snap.Graph.Links), snap.Generation)
}

func emptyView() types.View {
	return types.View{Nodes: []types.Node{}, Links: []types.RenderedLink{}}
}
