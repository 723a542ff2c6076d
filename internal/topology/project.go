package topology

import (
	"regexp"

	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// InvalidFilterError reports a name filter that is not a valid regular
// expression.
type InvalidFilterError struct {
	Pattern string
	Err     error
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter " + `"` + e.Pattern + `": ` + e.Err.Error()
}

func (e *InvalidFilterError) Unwrap() error { return e.Err }

// CompileFilter compiles a name filter. An empty pattern yields nil, which
// matches everything.
func CompileFilter(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &InvalidFilterError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// Project derives the view to render from g without modifying it.
//
// Queues whose name does not match filter are dropped; exchanges are always
// kept. A link is kept when its target survives, whatever happened to its
// source.
func Project(g *types.Graph, mode types.MetricMode, filter string) (types.View, error) {
	re, err := CompileFilter(filter)
	if err != nil {
		return types.View{}, err
	}

	view := types.View{
		Nodes: []types.Node{},
		Links: []types.RenderedLink{},
	}
	if g == nil {
		return view, nil
	}

	kept := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Kind == types.KindQueue && re != nil && !re.MatchString(n.Name) {
			continue
		}
		kept[n.Name] = struct{}{}
		view.Nodes = append(view.Nodes, n)
	}

	for _, l := range g.Links {
		if _, ok := kept[l.Target]; !ok {
			continue
		}
		view.Links = append(view.Links, types.RenderedLink{
			Source: l.Source,
			Target: l.Target,
			Value:  linkValue(l, mode),
		})
	}

	return view, nil
}

func linkValue(l types.Link, mode types.MetricMode) float64 {
	if mode == types.ModeCount {
		return float64(l.PublishCount)
	}
	return l.Rate
}
