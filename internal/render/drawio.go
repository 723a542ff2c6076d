package render

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/MalithGihan/rabbitflow/internal/layout"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// draw.io file structure, written so the diagram can be opened and edited in
// diagrams.net.
type mxfile struct {
	XMLName xml.Name  `xml:"mxfile"`
	Host    string    `xml:"host,attr"`
	Diagram []diagram `xml:"diagram"`
}

type diagram struct {
	ID           string       `xml:"id,attr"`
	Name         string       `xml:"name,attr"`
	MxGraphModel mxGraphModel `xml:"mxGraphModel"`
}

type mxGraphModel struct {
	Root root `xml:"root"`
}

type root struct {
	Cells []mxCell `xml:"mxCell"`
}

type mxCell struct {
	ID       string      `xml:"id,attr"`
	Value    string      `xml:"value,attr,omitempty"`
	Style    string      `xml:"style,attr,omitempty"`
	Vertex   string      `xml:"vertex,attr,omitempty"` // "1" if node
	Edge     string      `xml:"edge,attr,omitempty"`   // "1" if edge
	Source   string      `xml:"source,attr,omitempty"`
	Target   string      `xml:"target,attr,omitempty"`
	Parent   string      `xml:"parent,attr,omitempty"`
	Geometry *mxGeometry `xml:"mxGeometry"`
}

type mxGeometry struct {
	X        string `xml:"x,attr,omitempty"`
	Y        string `xml:"y,attr,omitempty"`
	Width    string `xml:"width,attr,omitempty"`
	Height   string `xml:"height,attr,omitempty"`
	Relative string `xml:"relative,attr,omitempty"`
	As       string `xml:"as,attr"`
}

func writeDrawIO(w io.Writer, v types.View, opts Options) error {
	l := layout.Compute(v, opts.Layout)
	mode := opts.Mode
	if mode == "" {
		mode = types.ModeRate
	}

	cells := []mxCell{{ID: "0"}, {ID: "1", Parent: "0"}}
	ids := make(map[string]string, len(l.Nodes))
	for i, b := range l.Nodes {
		id := fmt.Sprintf("n%d", i)
		ids[b.Name] = id
		cells = append(cells, mxCell{
			ID:     id,
			Value:  Label(b.Name),
			Style:  fmt.Sprintf("rounded=0;whiteSpace=wrap;html=1;fillColor=%s;labelPosition=right;align=left;", kindColor(b.Kind)),
			Vertex: "1",
			Parent: "1",
			Geometry: &mxGeometry{
				X:      num(b.X),
				Y:      num(b.Y),
				Width:  num(b.W),
				Height: num(b.H),
				As:     "geometry",
			},
		})
	}
	for i, band := range l.Links {
		cells = append(cells, mxCell{
			ID:       fmt.Sprintf("e%d", i),
			Value:    ValueText(band.Value, mode),
			Style:    fmt.Sprintf("endArrow=none;html=1;curved=1;strokeWidth=%s;opacity=50;", num(max(1, band.Width))),
			Edge:     "1",
			Source:   ids[band.Source],
			Target:   ids[band.Target],
			Parent:   "1",
			Geometry: &mxGeometry{Relative: "1", As: "geometry"},
		})
	}

	doc := mxfile{
		Host: "rabbitflow",
		Diagram: []diagram{{
			ID:           "flow",
			Name:         "Message flow",
			MxGraphModel: mxGraphModel{Root: root{Cells: cells}},
		}},
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode drawio: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
