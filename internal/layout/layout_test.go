package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalithGihan/rabbitflow/pkg/types"
)

func box(t *testing.T, l Layout, name string) Box {
	t.Helper()
	for _, b := range l.Nodes {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("no box for %q", name)
	return Box{}
}

func queue(name string) types.Node    { return types.Node{Name: name, Kind: types.KindQueue} }
func exchange(name string) types.Node { return types.Node{Name: name, Kind: types.KindExchange} }

func TestComputeTwoColumns(t *testing.T) {
	view := types.View{
		Nodes: []types.Node{queue("q1"), exchange("ex1"), queue("q2")},
		Links: []types.RenderedLink{
			{Source: "ex1", Target: "q1", Value: 3},
			{Source: "ex1", Target: "q2", Value: 1},
		},
	}
	cfg := DefaultConfig()
	l := Compute(view, cfg)

	require.Len(t, l.Nodes, 3)
	require.Len(t, l.Links, 2)
	assert.Equal(t, 2, l.Columns)
	assert.Zero(t, l.Skipped)

	ex1, q1, q2 := box(t, l, "ex1"), box(t, l, "q1"), box(t, l, "q2")
	assert.Equal(t, 0, ex1.Column)
	assert.Equal(t, 1, q1.Column)
	assert.Equal(t, 1, q2.Column)
	assert.InDelta(t, cfg.Padding, ex1.X, 1e-9)
	assert.InDelta(t, cfg.Width-cfg.Padding-cfg.NodeWidth, q1.X, 1e-9)

	// heights above the minimum follow the flow
	assert.InDelta(t, 3*(q2.H-cfg.MinNodeHeight), q1.H-cfg.MinNodeHeight, 1e-9)
	assert.InDelta(t, 4.0, ex1.Out, 1e-9)
	assert.InDelta(t, 3.0, q1.In, 1e-9)

	// queues stack top down in view order
	assert.InDelta(t, cfg.Padding, q1.Y, 1e-9)
	assert.InDelta(t, q1.Y+q1.H+cfg.NodeGap, q2.Y, 1e-9)

	// everything fits the canvas
	for _, b := range l.Nodes {
		assert.LessOrEqual(t, b.Y+b.H, cfg.Height-cfg.Padding+1e-9, b.Name)
	}

	a, b := l.Links[0], l.Links[1]
	assert.InDelta(t, 3*b.Width, a.Width, 1e-9)
	assert.InDelta(t, ex1.X+ex1.W, a.X0, 1e-9)
	assert.InDelta(t, q1.X, a.X1, 1e-9)
	assert.InDelta(t, ex1.Y+a.Width/2, a.SourceY, 1e-9)
	assert.InDelta(t, ex1.Y+a.Width+b.Width/2, b.SourceY, 1e-9)
	assert.InDelta(t, q2.Y+b.Width/2, b.TargetY, 1e-9)
}

func TestComputeSkipsLinksWithMissingEndpoints(t *testing.T) {
	view := types.View{
		Nodes: []types.Node{queue("q1")},
		Links: []types.RenderedLink{
			{Source: "gone", Target: "q1", Value: 2},
		},
	}
	l := Compute(view, DefaultConfig())

	assert.Equal(t, 1, l.Skipped)
	assert.Empty(t, l.Links)
	require.Len(t, l.Nodes, 1)
	assert.Equal(t, 0, l.Nodes[0].Column)
	assert.Zero(t, l.Nodes[0].In)
}

func TestComputeUnreachableNodesGoLast(t *testing.T) {
	view := types.View{
		Nodes: []types.Node{exchange("x"), queue("y"), exchange("a"), exchange("b")},
		Links: []types.RenderedLink{
			{Source: "x", Target: "y", Value: 1},
			{Source: "a", Target: "b", Value: 1},
			{Source: "b", Target: "a", Value: 1},
		},
	}
	l := Compute(view, DefaultConfig())

	assert.Equal(t, 2, l.Columns)
	assert.Equal(t, 0, box(t, l, "x").Column)
	assert.Equal(t, 1, box(t, l, "y").Column)
	assert.Equal(t, 1, box(t, l, "a").Column)
	assert.Equal(t, 1, box(t, l, "b").Column)
}

func TestComputeWithoutRoots(t *testing.T) {
	view := types.View{
		Nodes: []types.Node{exchange("a"), exchange("b")},
		Links: []types.RenderedLink{
			{Source: "a", Target: "b", Value: 1},
			{Source: "b", Target: "a", Value: 1},
		},
	}
	l := Compute(view, DefaultConfig())

	assert.Equal(t, 1, l.Columns)
	assert.Equal(t, box(t, l, "a").X, box(t, l, "b").X)
}

func TestComputeZeroFlow(t *testing.T) {
	cfg := Config{MinNodeHeight: 6}
	view := types.View{
		Nodes: []types.Node{queue("q"), exchange("ex")},
		Links: []types.RenderedLink{{Source: "ex", Target: "q", Value: 0}},
	}
	l := Compute(view, cfg)

	for _, b := range l.Nodes {
		assert.Equal(t, 6.0, b.H, b.Name)
	}
	require.Len(t, l.Links, 1)
	assert.Zero(t, l.Links[0].Width)
	assert.Equal(t, DefaultConfig().Width, l.Width)
}

func TestComputeEmptyView(t *testing.T) {
	l := Compute(types.View{Links: []types.RenderedLink{{Source: "a", Target: "b"}}}, DefaultConfig())

	assert.NotNil(t, l.Nodes)
	assert.NotNil(t, l.Links)
	assert.Zero(t, l.Columns)
	assert.Equal(t, 1, l.Skipped)
}

func TestComputeSelfLoopIsSkipped(t *testing.T) {
	view := types.View{
		Nodes: []types.Node{queue("a")},
		Links: []types.RenderedLink{{Source: "a", Target: "a", Value: 5}},
	}
	l := Compute(view, DefaultConfig())

	assert.Equal(t, 1, l.Skipped)
	assert.Equal(t, DefaultConfig().MinNodeHeight, l.Nodes[0].H)
}
