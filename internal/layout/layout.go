// Package layout places the nodes and links of a view on a canvas as a flow
// diagram: exchanges on the left, queues to their right, node heights and
// link widths proportional to the flow through them.
package layout

import (
	"math"

	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// Config configures the canvas and node geometry.
type Config struct {
	Width         float64 // Canvas width
	Height        float64 // Canvas height
	Padding       float64 // Padding from edges
	NodeWidth     float64
	NodeGap       float64 // Vertical space between nodes of a column
	MinNodeHeight float64 // Height of a node without flow
}

func DefaultConfig() Config {
	return Config{
		Width:         960,
		Height:        600,
		Padding:       40,
		NodeWidth:     16,
		NodeGap:       12,
		MinNodeHeight: 4,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.Padding < 0 {
		c.Padding = d.Padding
	}
	if c.NodeWidth <= 0 {
		c.NodeWidth = d.NodeWidth
	}
	if c.NodeGap < 0 {
		c.NodeGap = d.NodeGap
	}
	if c.MinNodeHeight <= 0 {
		c.MinNodeHeight = d.MinNodeHeight
	}
	return c
}

// Box is a placed node. In and Out are the summed values of its links.
type Box struct {
	Name   string     `json:"name"`
	Kind   types.Kind `json:"kind"`
	Column int        `json:"column"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	W      float64    `json:"w"`
	H      float64    `json:"h"`
	In     float64    `json:"in"`
	Out    float64    `json:"out"`
}

// Band is a placed link. SourceY and TargetY are the centre of the band where
// it leaves the source and enters the target.
type Band struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Value   float64 `json:"value"`
	Width   float64 `json:"width"`
	X0      float64 `json:"x0"`
	X1      float64 `json:"x1"`
	SourceY float64 `json:"sourceY"`
	TargetY float64 `json:"targetY"`
}

type Layout struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Columns int     `json:"columns"`
	Nodes   []Box   `json:"nodes"`
	Links   []Band  `json:"links"`
	// Skipped counts links of the view that were not placed because an
	// endpoint is missing or the link is a self loop.
	Skipped int `json:"skipped"`
}

// Compute lays out v. Columns come from a breadth-first walk starting at the
// nodes without incoming links; nodes the walk never reaches go to the last
// column. Node names of a view are unique.
func Compute(v types.View, cfg Config) Layout {
	cfg = cfg.withDefaults()
	out := Layout{Width: cfg.Width, Height: cfg.Height, Nodes: []Box{}, Links: []Band{}}
	if len(v.Nodes) == 0 {
		out.Skipped = len(v.Links)
		return out
	}

	index := make(map[string]int, len(v.Nodes))
	for i, n := range v.Nodes {
		index[n.Name] = i
	}

	var links []types.RenderedLink
	in := make([]float64, len(v.Nodes))
	outFlow := make([]float64, len(v.Nodes))
	hasIncoming := make([]bool, len(v.Nodes))
	next := make([][]int, len(v.Nodes))
	for _, l := range v.Links {
		s, okS := index[l.Source]
		t, okT := index[l.Target]
		if !okS || !okT || s == t {
			out.Skipped++
			continue
		}
		links = append(links, l)
		outFlow[s] += l.Value
		in[t] += l.Value
		hasIncoming[t] = true
		next[s] = append(next[s], t)
	}

	levels := columns(len(v.Nodes), hasIncoming, next)
	out.Columns = len(levels)

	scale := flowScale(levels, in, outFlow, cfg)

	colStep := 0.0
	if len(levels) > 1 {
		colStep = (cfg.Width - 2*cfg.Padding - cfg.NodeWidth) / float64(len(levels)-1)
	}

	boxes := make([]Box, len(v.Nodes))
	for col, level := range levels {
		y := cfg.Padding
		for _, i := range level {
			n := v.Nodes[i]
			h := cfg.MinNodeHeight + math.Max(in[i], outFlow[i])*scale
			boxes[i] = Box{
				Name:   n.Name,
				Kind:   n.Kind,
				Column: col,
				X:      cfg.Padding + float64(col)*colStep,
				Y:      y,
				W:      cfg.NodeWidth,
				H:      h,
				In:     in[i],
				Out:    outFlow[i],
			}
			y += h + cfg.NodeGap
		}
	}
	out.Nodes = boxes

	// bands stack from the top of each node in link order
	srcOff := make([]float64, len(v.Nodes))
	dstOff := make([]float64, len(v.Nodes))
	for _, l := range links {
		s, t := index[l.Source], index[l.Target]
		w := l.Value * scale
		sb, tb := boxes[s], boxes[t]
		out.Links = append(out.Links, Band{
			Source:  l.Source,
			Target:  l.Target,
			Value:   l.Value,
			Width:   w,
			X0:      sb.X + sb.W,
			X1:      tb.X,
			SourceY: sb.Y + srcOff[s] + w/2,
			TargetY: tb.Y + dstOff[t] + w/2,
		})
		srcOff[s] += w
		dstOff[t] += w
	}

	return out
}

// columns assigns node indexes to levels by BFS from the nodes without
// incoming links.
func columns(n int, hasIncoming []bool, next [][]int) [][]int {
	var roots []int
	for i := 0; i < n; i++ {
		if !hasIncoming[i] {
			roots = append(roots, i)
		}
	}

	var levels [][]int
	visited := make([]bool, n)
	for _, r := range roots {
		visited[r] = true
	}
	current := roots
	for len(current) > 0 {
		levels = append(levels, current)
		var following []int
		for _, i := range current {
			for _, j := range next[i] {
				if !visited[j] {
					visited[j] = true
					following = append(following, j)
				}
			}
		}
		current = following
	}

	// nodes only reachable through cycles
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		if len(levels) == 0 {
			levels = append(levels, nil)
		}
		levels[len(levels)-1] = append(levels[len(levels)-1], i)
	}
	return levels
}

// flowScale returns pixels per unit of flow so that the tallest column fits
// the canvas.
func flowScale(levels [][]int, in, out []float64, cfg Config) float64 {
	scale := math.Inf(1)
	for _, level := range levels {
		var flow float64
		for _, i := range level {
			flow += math.Max(in[i], out[i])
		}
		if flow <= 0 {
			continue
		}
		room := cfg.Height - 2*cfg.Padding -
			float64(len(level)-1)*cfg.NodeGap -
			float64(len(level))*cfg.MinNodeHeight
		scale = math.Min(scale, math.Max(room, 0)/flow)
	}
	if math.IsInf(scale, 1) {
		return 0
	}
	return scale
}
