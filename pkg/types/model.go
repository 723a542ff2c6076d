package types

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindQueue    Kind = "queue"
	KindExchange Kind = "exchange"
)

type Node struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Link is a flow from an exchange to a queue. Rate is messages per second,
// PublishCount the cumulative number of published messages.
type Link struct {
	Source       string  `json:"source" yaml:"source"`
	Target       string  `json:"target" yaml:"target"`
	Rate         float64 `json:"rate" yaml:"rate"`
	PublishCount int64   `json:"publishCount" yaml:"publishCount"`
}

type RenderedLink struct {
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Value  float64 `json:"value" yaml:"value"`
}

// View is what a renderer consumes.
type View struct {
	Nodes []Node         `json:"nodes" yaml:"nodes"`
	Links []RenderedLink `json:"links" yaml:"links"`
}

type MetricMode string

const (
	ModeRate  MetricMode = "rate"
	ModeCount MetricMode = "count"
)

// ParseMetricMode accepts "rate" and "count" ("publish" is an alias of count).
func ParseMetricMode(s string) (MetricMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rate":
		return ModeRate, nil
	case "count", "publish":
		return ModeCount, nil
	default:
		return "", fmt.Errorf("unknown metric mode %q", s)
	}
}

// Unit is the label used next to link values.
func (m MetricMode) Unit() string {
	if m == ModeCount {
		return "msgs"
	}
	return "msg/s"
}

type ViewState struct {
	Mode   MetricMode `json:"mode"`
	Filter string     `json:"filter"`
}

type linkKey struct{ source, target string }

// Graph is the full exchange/queue topology. Node names and (source, target)
// pairs are unique; use the methods to mutate it so the indexes stay in sync.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Links []Link `json:"links" yaml:"links"`

	nodeIdx map[string]int
	linkIdx map[linkKey]int
}

func NewGraph() *Graph {
	g := &Graph{}
	g.Reset()
	return g
}

// Reset empties the graph in place.
func (g *Graph) Reset() {
	g.Nodes = []Node{}
	g.Links = []Link{}
	g.nodeIdx = map[string]int{}
	g.linkIdx = map[linkKey]int{}
}

// AddNode inserts a node unless one with the same name exists. The kind of an
// existing node is never changed. It reports whether a node was inserted.
func (g *Graph) AddNode(name string, kind Kind) bool {
	g.ensureIndex()
	if _, ok := g.nodeIdx[name]; ok {
		return false
	}
	g.nodeIdx[name] = len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{Name: name, Kind: kind})
	return true
}

// UpsertLink inserts l or overwrites the values of the existing link for the
// same pair, keeping its position.
func (g *Graph) UpsertLink(l Link) {
	g.ensureIndex()
	k := linkKey{l.Source, l.Target}
	if i, ok := g.linkIdx[k]; ok {
		g.Links[i] = l
		return
	}
	g.linkIdx[k] = len(g.Links)
	g.Links = append(g.Links, l)
}

// AddLinkIfAbsent inserts l only when no link for the pair exists.
func (g *Graph) AddLinkIfAbsent(l Link) bool {
	g.ensureIndex()
	k := linkKey{l.Source, l.Target}
	if _, ok := g.linkIdx[k]; ok {
		return false
	}
	g.linkIdx[k] = len(g.Links)
	g.Links = append(g.Links, l)
	return true
}

// Node looks a node up by name. It never mutates g, so it is safe on a
// committed graph shared between readers.
func (g *Graph) Node(name string) (Node, bool) {
	if g.indexed() {
		i, ok := g.nodeIdx[name]
		if !ok {
			return Node{}, false
		}
		return g.Nodes[i], true
	}
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

func (g *Graph) Link(source, target string) (Link, bool) {
	if g.indexed() {
		i, ok := g.linkIdx[linkKey{source, target}]
		if !ok {
			return Link{}, false
		}
		return g.Links[i], true
	}
	for _, l := range g.Links {
		if l.Source == source && l.Target == target {
			return l, true
		}
	}
	return Link{}, false
}

func (g *Graph) indexed() bool {
	return g.nodeIdx != nil && len(g.nodeIdx) == len(g.Nodes) &&
		g.linkIdx != nil && len(g.linkIdx) == len(g.Links)
}

// ensureIndex rebuilds the indexes for graphs built as literals.
func (g *Graph) ensureIndex() {
	if g.indexed() {
		return
	}
	g.nodeIdx = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, ok := g.nodeIdx[n.Name]; !ok {
			g.nodeIdx[n.Name] = i
		}
	}
	g.linkIdx = make(map[linkKey]int, len(g.Links))
	for i, l := range g.Links {
		k := linkKey{l.Source, l.Target}
		if _, ok := g.linkIdx[k]; !ok {
			g.linkIdx[k] = i
		}
	}
}
