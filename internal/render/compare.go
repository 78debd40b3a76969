package render

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"insar-viewer/internal/catalog"
)

// MaxPanels is the largest comparison grid
const MaxPanels = 4

// ErrPanelCount is returned by Compare for fewer than one or more than MaxPanels entries
var ErrPanelCount = errors.New("comparison needs between 1 and 4 products")

// Panel is one cell of a comparison. Exactly one of Rendered and Err is set.
type Panel struct {
	Entry    catalog.Entry
	Rendered *Rendered
	Err      error
}

// Failed reports whether the panel could not be rendered
func (p Panel) Failed() bool {
	return p.Err != nil
}

// Comparison is a set of independently rendered panels
type Comparison struct {
	Panels []Panel
}

// Compare renders each entry on its own. A failing entry is recorded on its
// panel and does not stop the others.
func Compare(entries []catalog.Entry, opts Options) (*Comparison, error) {
	if len(entries) == 0 || len(entries) > MaxPanels {
		return nil, fmt.Errorf("%w: got %d", ErrPanelCount, len(entries))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Comparison{Panels: make([]Panel, len(entries))}
	for i, e := range entries {
		r, err := Render(e, opts)
		c.Panels[i] = Panel{Entry: e, Rendered: r, Err: err}
	}
	return c, nil
}

// Succeeded counts panels that rendered
func (c *Comparison) Succeeded() int {
	n := 0
	for _, p := range c.Panels {
		if !p.Failed() {
			n++
		}
	}
	return n
}

// GridShape returns the layout for n panels: one row for up to two, 2x2 otherwise
func GridShape(n int) (cols, rows int) {
	switch {
	case n <= 0:
		return 0, 0
	case n <= 2:
		return n, 1
	default:
		return 2, 2
	}
}

// Compose draws every panel as a figure of cellSize pixels square into a grid.
// Failed panels show the error instead of an image.
func (c *Comparison) Compose(cellSize int) *image.RGBA {
	cols, rows := GridShape(len(c.Panels))
	out := image.NewRGBA(image.Rect(0, 0, cols*cellSize, rows*cellSize))
	draw.Draw(out, out.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	for i, p := range c.Panels {
		cell := image.Rect(0, 0, cellSize, cellSize).Add(image.Pt((i%cols)*cellSize, (i/cols)*cellSize))
		var fig *image.RGBA
		if p.Failed() {
			fig = ErrorPanel(p.Entry, p.Err, cellSize)
		} else {
			fig = PanelFigure(p.Rendered, cellSize)
		}
		draw.Draw(out, cell, fig, image.Point{}, draw.Src)
	}
	return out
}
