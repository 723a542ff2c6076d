package render

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/MalithGihan/rabbitflow/pkg/types"
)

var reNonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// writePUML writes a PlantUML deployment diagram: queues as queue elements,
// exchanges as components, links labelled with their value.
func writePUML(w io.Writer, v types.View, opts Options) error {
	mode := opts.Mode
	if mode == "" {
		mode = types.ModeRate
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "@startuml")
	fmt.Fprintln(bw, "left to right direction")

	ids := make(map[string]string, len(v.Nodes))
	for i, n := range v.Nodes {
		id := fmt.Sprintf("%s_%d", sanitizeID(n.Name), i)
		ids[n.Name] = id
		elem := "queue"
		if n.Kind == types.KindExchange {
			elem = "component"
		}
		fmt.Fprintf(bw, "%s %q as %s\n", elem, Label(n.Name), id)
	}
	for _, l := range v.Links {
		from, okF := ids[l.Source]
		to, okT := ids[l.Target]
		if !okF || !okT {
			continue
		}
		fmt.Fprintf(bw, "%s --> %s : %s\n", from, to, ValueText(l.Value, mode))
	}

	fmt.Fprintln(bw, "@enduml")
	return bw.Flush()
}

func sanitizeID(s string) string {
	s = strings.ToLower(reNonIdent.ReplaceAllString(s, "_"))
	s = strings.Trim(s, "_")
	if s == "" {
		return "n"
	}
	return s
}
