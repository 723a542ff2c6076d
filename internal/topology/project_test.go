package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalithGihan/rabbitflow/pkg/types"
)

func sampleGraph() *types.Graph {
	g := types.NewGraph()
	g.AddNode("A", types.KindQueue)
	g.AddNode("B", types.KindExchange)
	g.UpsertLink(types.Link{Source: "B", Target: "A", Rate: 5, PublishCount: 50})
	return g
}

func TestProjectTargetOnlyPruning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		filter    string
		mode      types.MetricMode
		wantNodes []types.Node
		wantLinks []types.RenderedLink
	}{
		{
			name:      "matching filter keeps link",
			filter:    "A",
			mode:      types.ModeCount,
			wantNodes: []types.Node{{Name: "A", Kind: types.KindQueue}, {Name: "B", Kind: types.KindExchange}},
			wantLinks: []types.RenderedLink{{Source: "B", Target: "A", Value: 50}},
		},
		{
			name:      "filter without match drops queue and its link",
			filter:    "Z",
			mode:      types.ModeCount,
			wantNodes: []types.Node{{Name: "B", Kind: types.KindExchange}},
			wantLinks: []types.RenderedLink{},
		},
		{
			name:      "empty filter keeps everything",
			filter:    "",
			mode:      types.ModeRate,
			wantNodes: []types.Node{{Name: "A", Kind: types.KindQueue}, {Name: "B", Kind: types.KindExchange}},
			wantLinks: []types.RenderedLink{{Source: "B", Target: "A", Value: 5}},
		},
		{
			name:      "exchange names are never filtered",
			filter:    "^A$",
			mode:      types.ModeRate,
			wantNodes: []types.Node{{Name: "A", Kind: types.KindQueue}, {Name: "B", Kind: types.KindExchange}},
			wantLinks: []types.RenderedLink{{Source: "B", Target: "A", Value: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := Project(sampleGraph(), tt.mode, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNodes, view.Nodes)
			assert.Equal(t, tt.wantLinks, view.Links)
		})
	}
}

// A link whose source node is filtered out stays visible as long as its target
// survives. This only happens when a name is both a queue and an exchange.
func TestProjectKeepsLinkWithFilteredSource(t *testing.T) {
	t.Parallel()

	g := types.NewGraph()
	g.AddNode("events", types.KindQueue)
	g.AddNode("orders", types.KindQueue)
	g.AddLinkIfAbsent(types.Link{Source: "events", Target: "orders", Rate: 1})

	view, err := Project(g, types.ModeRate, "^orders$")
	require.NoError(t, err)

	assert.Equal(t, []types.Node{{Name: "orders", Kind: types.KindQueue}}, view.Nodes)
	assert.Equal(t, []types.RenderedLink{{Source: "events", Target: "orders", Value: 1}}, view.Links)
}

func TestProjectModeOnlyChangesValues(t *testing.T) {
	t.Parallel()

	g := types.NewGraph()
	g.AddNode("q1", types.KindQueue)
	g.AddNode("q2", types.KindQueue)
	g.AddNode("ex1", types.KindExchange)
	g.UpsertLink(types.Link{Source: "ex1", Target: "q1", Rate: 2.5, PublishCount: 100})
	g.AddLinkIfAbsent(types.Link{Source: "ex1", Target: "q2"})

	before := append([]types.Link(nil), g.Links...)
	beforeNodes := append([]types.Node(nil), g.Nodes...)

	rate, err := Project(g, types.ModeRate, "q")
	require.NoError(t, err)
	count, err := Project(g, types.ModeCount, "q")
	require.NoError(t, err)

	require.Len(t, count.Links, len(rate.Links))
	for i := range rate.Links {
		assert.Equal(t, rate.Links[i].Source, count.Links[i].Source)
		assert.Equal(t, rate.Links[i].Target, count.Links[i].Target)
	}
	assert.Equal(t, 2.5, rate.Links[0].Value)
	assert.Equal(t, 100.0, count.Links[0].Value)
	assert.Equal(t, rate.Nodes, count.Nodes)

	assert.Equal(t, before, g.Links)
	assert.Equal(t, beforeNodes, g.Nodes)
}

func TestProjectInvalidFilter(t *testing.T) {
	t.Parallel()

	_, err := Project(sampleGraph(), types.ModeRate, "queue[")
	require.Error(t, err)

	var fe *InvalidFilterError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "queue[", fe.Pattern)
}

func TestProjectNilGraph(t *testing.T) {
	t.Parallel()

	view, err := Project(nil, types.ModeRate, "x")
	require.NoError(t, err)
	assert.Empty(t, view.Nodes)
	assert.Empty(t, view.Links)
}
