package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/broker/brokertest"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/topology"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// fakeRefresher returns scripted results and commits successful ones.
type fakeRefresher struct {
	mu      sync.Mutex
	results []result
	current *refresh.Snapshot
	vhost   string
}

type result struct {
	snap *refresh.Snapshot
	err  error
}

func (f *fakeRefresher) next() (*refresh.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[0]
	f.results = f.results[1:]
	if r.err == nil {
		f.current = r.snap
	}
	return r.snap, r.err
}

func (f *fakeRefresher) Refresh(context.Context) (*refresh.Snapshot, error) { return f.next() }

func (f *fakeRefresher) SetVhost(_ context.Context, name string) (*refresh.Snapshot, error) {
	f.mu.Lock()
	f.vhost = name
	f.mu.Unlock()
	return f.next()
}

func (f *fakeRefresher) Current() *refresh.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func snapshot(gen uint64, g *types.Graph) *refresh.Snapshot {
	return &refresh.Snapshot{Generation: gen, Vhost: "/", Graph: g}
}

// sample is q1 and q2 fed by ex1, with publish counts different from rates.
func sample() *types.Graph {
	g := types.NewGraph()
	g.AddNode("q1", types.KindQueue)
	g.AddNode("ex1", types.KindExchange)
	g.UpsertLink(types.Link{Source: "ex1", Target: "q1", Rate: 1.5, PublishCount: 30})
	g.AddNode("q2", types.KindQueue)
	g.UpsertLink(types.Link{Source: "ex1", Target: "q2", Rate: 0.5, PublishCount: 10})
	return g
}

func newSession(t *testing.T, r Refresher, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	s, err := New(r, opts...)
	require.NoError(t, err)
	return s
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	s := newSession(t, &fakeRefresher{})
	assert.Equal(t, types.ViewState{Mode: types.ModeRate}, s.State())
	assert.Empty(t, s.View().Nodes)
	assert.NotNil(t, s.View().Links)
	assert.Equal(t, "no graph yet", s.StatusLine())
}

func TestNewRejectsInvalidFilter(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeRefresher{}, WithViewState(types.ViewState{Filter: "("}))
	var ife *topology.InvalidFilterError
	assert.True(t, errors.As(err, &ife))
}

func TestRefreshProjectsWithCurrentState(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	s := newSession(t, fr)
	require.NoError(t, s.SetFilter("q1"))

	require.NoError(t, s.Refresh(context.Background()))

	v := s.View()
	assert.Equal(t, []types.Node{{Name: "q1", Kind: types.KindQueue}, {Name: "ex1", Kind: types.KindExchange}}, v.Nodes)
	assert.Equal(t, []types.RenderedLink{{Source: "ex1", Target: "q1", Value: 1.5}}, v.Links)
	assert.Equal(t, "vhost /: 2 queues, 1 exchanges, 2 links (generation 1)", s.StatusLine())
}

func TestRefreshFailureKeepsView(t *testing.T) {
	t.Parallel()

	boom := &broker.QueryError{Op: "queues", StatusCode: 401, Status: "Unauthorized"}
	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}, {err: boom}}}
	s := newSession(t, fr)

	require.NoError(t, s.Refresh(context.Background()))
	before := s.View()

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, s.View())
	assert.Equal(t, "Unauthorized", s.StatusLine())
}

func TestStaleRefreshIsSilent(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{
		{snap: snapshot(1, sample())},
		{err: refresh.ErrStaleGeneration},
	}}
	s := newSession(t, fr)
	require.NoError(t, s.Refresh(context.Background()))
	status := s.StatusLine()

	assert.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, status, s.StatusLine())
	assert.Len(t, s.View().Links, 2)
}

func TestSetModeChangesOnlyValues(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	s := newSession(t, fr)
	require.NoError(t, s.Refresh(context.Background()))
	rate := s.View()

	require.NoError(t, s.SetMode("publish"))
	assert.Equal(t, types.ModeCount, s.State().Mode)
	count := s.View()

	assert.Equal(t, rate.Nodes, count.Nodes)
	require.Len(t, count.Links, len(rate.Links))
	for i := range rate.Links {
		assert.Equal(t, rate.Links[i].Source, count.Links[i].Source)
		assert.Equal(t, rate.Links[i].Target, count.Links[i].Target)
	}
	assert.Equal(t, 30.0, count.Links[0].Value)
	assert.Equal(t, 10.0, count.Links[1].Value)

	assert.Error(t, s.SetMode("bytes"))
	assert.Equal(t, types.ModeCount, s.State().Mode)
}

func TestInvalidFilterKeepsPreviousState(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	s := newSession(t, fr)
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SetFilter("q2"))
	before := s.View()

	err := s.SetFilter("q[")
	var ife *topology.InvalidFilterError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, "q[", ife.Pattern)

	assert.Equal(t, "q2", s.State().Filter)
	assert.Equal(t, before, s.View())
}

func TestSetViewStateIsAtomic(t *testing.T) {
	t.Parallel()

	s := newSession(t, &fakeRefresher{})
	require.Error(t, s.SetViewState(types.ViewState{Mode: types.ModeCount, Filter: "("}))
	assert.Equal(t, types.ViewState{Mode: types.ModeRate}, s.State())

	require.NoError(t, s.SetViewState(types.ViewState{Mode: types.ModeCount, Filter: "^q"}))
	assert.Equal(t, types.ViewState{Mode: types.ModeCount, Filter: "^q"}, s.State())
}

func TestStateAndViewAgreeUnderConcurrentModeChanges(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	s := newSession(t, fr)
	require.NoError(t, s.Refresh(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			mode := types.ModeRate
			if i%2 == 0 {
				mode = types.ModeCount
			}
			_ = s.SetMode(mode)
		}
	}()

	want := map[types.MetricMode]float64{types.ModeRate: 1.5, types.ModeCount: 30}
	for i := 0; i < 200; i++ {
		st, v := s.StateAndView()
		require.Len(t, v.Links, 2)
		require.Equal(t, want[st.Mode], v.Links[0].Value, "mode %s", st.Mode)
	}
	<-done
}

func TestPreviewDoesNotChangeSession(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	s := newSession(t, fr)
	require.NoError(t, s.Refresh(context.Background()))

	v, err := s.Preview(types.ViewState{Mode: types.ModeCount, Filter: "q2"})
	require.NoError(t, err)
	assert.Equal(t, []types.RenderedLink{{Source: "ex1", Target: "q2", Value: 10}}, v.Links)

	assert.Equal(t, types.ViewState{Mode: types.ModeRate}, s.State())
	assert.Len(t, s.View().Links, 2)
}

func TestViewPicksUpBackgroundRefresh(t *testing.T) {
	t.Parallel()

	fr := &fakeRefresher{}
	s := newSession(t, fr)

	fr.mu.Lock()
	fr.current = snapshot(3, sample())
	fr.mu.Unlock()

	assert.Len(t, s.View().Nodes, 3)
	assert.Contains(t, s.StatusLine(), "generation 3")
}

func TestOlderSnapshotDoesNotReplaceNewer(t *testing.T) {
	t.Parallel()

	newer := types.NewGraph()
	newer.AddNode("fresh", types.KindQueue)
	fr := &fakeRefresher{results: []result{{snap: snapshot(1, sample())}}}
	fr.current = snapshot(2, newer)
	s := newSession(t, fr)

	require.NoError(t, s.Refresh(context.Background()))
	// the fake made generation 1 current, but the session already showed 2
	assert.Equal(t, []types.Node{{Name: "fresh", Kind: types.KindQueue}}, s.view.Nodes)
}

// The end-to-end example: one queue q1 fed by ex1 at 2.5 msg/s with 100
// published messages, also bound to ex1 and to the default exchange.
func TestEndToEndAgainstFakeBroker(t *testing.T) {
	t.Parallel()

	srv := brokertest.New()
	t.Cleanup(srv.Close)
	srv.AddQueue("/", "q1", broker.QueueStats{
		Name: "q1",
		Incoming: []broker.Incoming{{
			Exchange: broker.ExchangeRef{Name: "ex1", Vhost: "/"},
			Stats:    broker.MessageStats{Publish: 100, PublishDetails: broker.RateDetails{Rate: 2.5}},
		}},
	}, broker.Binding{Source: "ex1"}, broker.Binding{Source: ""})

	client := broker.New(broker.Config{URL: srv.URL, Login: brokertest.Login, Password: brokertest.Password})
	r := refresh.New(client, refresh.WithLogger(slog.New(slog.DiscardHandler)))
	s := newSession(t, r)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, types.View{
		Nodes: []types.Node{{Name: "q1", Kind: types.KindQueue}, {Name: "ex1", Kind: types.KindExchange}},
		Links: []types.RenderedLink{{Source: "ex1", Target: "q1", Value: 2.5}},
	}, s.View())

	require.NoError(t, s.SetMode(types.ModeCount))
	assert.Equal(t, 100.0, s.View().Links[0].Value)

	srv.Fail("/api/queues/%2F", 503)
	require.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, "Service Unavailable", s.StatusLine())
	assert.Len(t, s.View().Links, 1)
}
