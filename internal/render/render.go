// Package render writes views in the formats the service can export.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MalithGihan/rabbitflow/internal/layout"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatSVG     Format = "svg"
	FormatDrawIO  Format = "drawio"
	FormatPUML    Format = "puml"
	FormatUnknown Format = "unknown"
)

// DefaultExchangeLabel is shown for the exchange with the empty name.
const DefaultExchangeLabel = "(AMQP default)"

// DetectFormat maps a file name (by extension) or a bare format name to a
// Format.
func DetectFormat(name string) Format {
	name = strings.ToLower(strings.TrimSpace(name))
	if ext := filepath.Ext(name); ext != "" {
		name = ext[1:]
	}
	switch name {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "svg":
		return FormatSVG
	case "drawio":
		return FormatDrawIO
	case "puml", "plantuml":
		return FormatPUML
	default:
		return FormatUnknown
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatSVG:
		return "image/svg+xml"
	case FormatDrawIO:
		return "application/xml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Options tune the drawn formats. Mode only selects the unit shown next to
// values.
type Options struct {
	Mode   types.MetricMode
	Layout layout.Config
}

// Write encodes v to w in format f.
func Write(w io.Writer, f Format, v types.View, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatSVG:
		return writeSVG(w, v, opts)
	case FormatDrawIO:
		return writeDrawIO(w, v, opts)
	case FormatPUML:
		return writePUML(w, v, opts)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// Label is the display name of a node.
func Label(name string) string {
	if name == "" {
		return DefaultExchangeLabel
	}
	return name
}

// ValueText formats a link value with its unit, e.g. "2.5 msg/s" or
// "100 msgs".
func ValueText(v float64, mode types.MetricMode) string {
	prec := 2
	if mode == types.ModeCount {
		prec = 0
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if prec > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s + " " + mode.Unit()
}

// linkTitle is the hover text of a link.
func linkTitle(l types.RenderedLink, mode types.MetricMode) string {
	return Label(l.Source) + " -> " + Label(l.Target) + "\n" + ValueText(l.Value, mode)
}
