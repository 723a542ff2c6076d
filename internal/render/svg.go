package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"github.com/MalithGihan/rabbitflow/internal/layout"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

const (
	colorExchange = "#f28e2b"
	colorQueue    = "#4e79a7"
	labelOffset   = 6
)

type svgDoc struct {
	XMLName xml.Name   `xml:"svg"`
	Xmlns   string     `xml:"xmlns,attr"`
	Width   string     `xml:"width,attr"`
	Height  string     `xml:"height,attr"`
	ViewBox string     `xml:"viewBox,attr"`
	Groups  []svgGroup `xml:"g"`
}

type svgGroup struct {
	Class         string    `xml:"class,attr"`
	Fill          string    `xml:"fill,attr,omitempty"`
	Stroke        string    `xml:"stroke,attr,omitempty"`
	StrokeOpacity string    `xml:"stroke-opacity,attr,omitempty"`
	FontFamily    string    `xml:"font-family,attr,omitempty"`
	FontSize      string    `xml:"font-size,attr,omitempty"`
	Rects         []svgRect `xml:"rect"`
	Paths         []svgPath `xml:"path"`
	Texts         []svgText `xml:"text"`
}

type svgRect struct {
	X      string `xml:"x,attr"`
	Y      string `xml:"y,attr"`
	Width  string `xml:"width,attr"`
	Height string `xml:"height,attr"`
	Fill   string `xml:"fill,attr"`
	Kind   string `xml:"data-kind,attr"`
	Title  string `xml:"title"`
}

type svgPath struct {
	D           string `xml:"d,attr"`
	Stroke      string `xml:"stroke,attr"`
	StrokeWidth string `xml:"stroke-width,attr"`
	Title       string `xml:"title"`
}

type svgText struct {
	X      string `xml:"x,attr"`
	Y      string `xml:"y,attr"`
	Dy     string `xml:"dy,attr"`
	Anchor string `xml:"text-anchor,attr"`
	T      string `xml:",chardata"`
}

func num(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func kindColor(k types.Kind) string {
	if k == types.KindExchange {
		return colorExchange
	}
	return colorQueue
}

func writeSVG(w io.Writer, v types.View, opts Options) error {
	l := layout.Compute(v, opts.Layout)
	mode := opts.Mode
	if mode == "" {
		mode = types.ModeRate
	}

	colors := make(map[string]string, len(l.Nodes))
	nodes := svgGroup{Class: "nodes", Stroke: "#000"}
	labels := svgGroup{Class: "labels", FontFamily: "sans-serif", FontSize: "10"}
	for _, b := range l.Nodes {
		colors[b.Name] = kindColor(b.Kind)
		nodes.Rects = append(nodes.Rects, svgRect{
			X:      num(b.X),
			Y:      num(b.Y),
			Width:  num(b.W),
			Height: num(b.H),
			Fill:   colors[b.Name],
			Kind:   string(b.Kind),
			Title:  fmt.Sprintf("%s (%s)", Label(b.Name), b.Kind),
		})

		// labels sit on the side of the node facing the middle of the canvas
		t := svgText{Y: num(b.Y + b.H/2), Dy: "0.35em", T: Label(b.Name)}
		if b.X < l.Width/2 {
			t.X, t.Anchor = num(b.X+b.W+labelOffset), "start"
		} else {
			t.X, t.Anchor = num(b.X-labelOffset), "end"
		}
		labels.Texts = append(labels.Texts, t)
	}

	links := svgGroup{Class: "links", Fill: "none", StrokeOpacity: "0.5"}
	for _, band := range l.Links {
		mid := (band.X0 + band.X1) / 2
		links.Paths = append(links.Paths, svgPath{
			D: fmt.Sprintf("M%s,%s C%s,%s %s,%s %s,%s",
				num(band.X0), num(band.SourceY),
				num(mid), num(band.SourceY),
				num(mid), num(band.TargetY),
				num(band.X1), num(band.TargetY)),
			Stroke:      colors[band.Source],
			StrokeWidth: num(math.Max(1, band.Width)),
			Title: linkTitle(types.RenderedLink{
				Source: band.Source,
				Target: band.Target,
				Value:  band.Value,
			}, mode),
		})
	}

	doc := svgDoc{
		Xmlns:   "http://www.w3.org/2000/svg",
		Width:   num(l.Width),
		Height:  num(l.Height),
		ViewBox: fmt.Sprintf("0 0 %s %s", num(l.Width), num(l.Height)),
		Groups:  []svgGroup{links, nodes, labels},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode svg: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
