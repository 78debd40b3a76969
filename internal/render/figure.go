package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/logging"
)

// Figure palette
var (
	Background    = color.RGBA{0x1a, 0x1a, 0x2e, 0xff}
	Surface       = color.RGBA{0x16, 0x21, 0x3e, 0xff}
	Accent        = color.RGBA{0xe9, 0x45, 0x60, 0xff}
	TextColor     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	TextSecondary = color.RGBA{0xa0, 0xa0, 0xa0, 0xff}
)

const (
	figurePadding  = 12
	titleHeight    = 32
	colorbarWidth  = 18
	colorbarMargin = 96
	minFigureSize  = 128
)

var (
	fontsOnce sync.Once
	boldFont  *opentype.Font
	plainFont *opentype.Font
)

// faces are the per-call text faces. opentype faces keep rasterizer state,
// so they are never shared between goroutines; the parsed fonts are.
type faces struct {
	title font.Face
	label font.Face
}

func newFaces() faces {
	fontsOnce.Do(func() {
		boldFont = parseFont("gobold", gobold.TTF)
		plainFont = parseFont("goregular", goregular.TTF)
	})
	return faces{
		title: newFace(boldFont, 16),
		label: newFace(plainFont, 12),
	}
}

func (f faces) Close() {
	f.title.Close()
	f.label.Close()
}

func parseFont(name string, ttf []byte) *opentype.Font {
	f, err := opentype.Parse(ttf)
	if err != nil {
		logger := logging.Component("render")
		logger.Warn().Err(err).Str("font", name).Msg("failed to parse font")
		return nil
	}
	return f
}

func newFace(f *opentype.Font, size float64) font.Face {
	if f == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		logger := logging.Component("render")
		logger.Warn().Err(err).Msg("failed to create font face")
		return basicfont.Face7x13
	}
	return face
}

// Figure lays out a titled raster with a colorbar inside a maxSize square.
// The canvas shrinks to fit the raster's aspect ratio.
func Figure(r *Rendered, maxSize int) *image.RGBA {
	ff := newFaces()
	defer ff.Close()
	if maxSize < minFigureSize {
		maxSize = minFigureSize
	}

	availW := maxSize - 2*figurePadding - colorbarMargin
	availH := maxSize - 2*figurePadding - titleHeight
	dst := fitRect(r.Image.Bounds(), availW, availH)

	w := 2*figurePadding + dst.Dx() + colorbarMargin
	h := 2*figurePadding + titleHeight + dst.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(canvas, canvas.Bounds(), Background)

	drawText(canvas, ff.title, r.Entry.Product.Title(), figurePadding, figurePadding+20, TextColor)

	plot := dst.Add(image.Pt(figurePadding, figurePadding+titleHeight))
	fill(canvas, plot, Surface)
	scaleInto(canvas, plot, r.Image)

	cm, ok := LookupColormap(r.Settings.Colormap)
	if ok {
		bar := image.Rect(0, 0, colorbarWidth, plot.Dy()).Add(image.Pt(plot.Max.X+figurePadding, plot.Min.Y))
		drawColorbar(canvas, bar, cm)
		lx := bar.Max.X + 6
		drawText(canvas, ff.label, formatTick(r.Settings.Max), lx, bar.Min.Y+10, TextSecondary)
		drawText(canvas, ff.label, formatTick(r.Settings.Min), lx, bar.Max.Y, TextSecondary)
		drawText(canvas, ff.label, truncate(r.Entry.Product.Unit(), 12), lx, bar.Min.Y+bar.Dy()/2+4, TextSecondary)
	}
	return canvas
}

// PanelFigure is the compact comparison cell: product key over the raster.
func PanelFigure(r *Rendered, size int) *image.RGBA {
	ff := newFaces()
	defer ff.Close()
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	fill(canvas, canvas.Bounds(), Background)

	title := strings.ToUpper(r.Entry.Product.String())
	drawCentered(canvas, ff.title, title, size/2, figurePadding+16, TextColor)

	avail := image.Rect(figurePadding, figurePadding+titleHeight, size-figurePadding, size-figurePadding)
	if avail.Dx() <= 0 || avail.Dy() <= 0 {
		return canvas
	}
	dst := fitRect(r.Image.Bounds(), avail.Dx(), avail.Dy())
	off := image.Pt(avail.Min.X+(avail.Dx()-dst.Dx())/2, avail.Min.Y+(avail.Dy()-dst.Dy())/2)
	plot := dst.Add(off)
	fill(canvas, plot, Surface)
	scaleInto(canvas, plot, r.Image)
	return canvas
}

// ErrorPanel is the comparison cell drawn for a panel that failed to render
func ErrorPanel(entry catalog.Entry, err error, size int) *image.RGBA {
	ff := newFaces()
	defer ff.Close()
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	fill(canvas, canvas.Bounds(), Background)

	drawCentered(canvas, ff.title, strings.ToUpper(entry.Product.String()), size/2, figurePadding+16, TextColor)

	lines := append([]string{"Error:"}, wrapText(ff.label, fmt.Sprint(err), size-2*figurePadding)...)
	lineHeight := ff.label.Metrics().Height.Ceil() + 2
	y := size/2 - len(lines)*lineHeight/2
	for _, line := range lines {
		drawCentered(canvas, ff.label, line, size/2, y, Accent)
		y += lineHeight
	}
	return canvas
}

// fitRect scales src to fit within w x h, keeping its aspect ratio
func fitRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	scale := float64(w) / float64(sw)
	if s := float64(h) / float64(sh); s < scale {
		scale = s
	}
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	return image.Rect(0, 0, dw, dh)
}

func scaleInto(dst *image.RGBA, r image.Rectangle, src image.Image) {
	interp := xdraw.Interpolator(xdraw.NearestNeighbor)
	if r.Dx() < src.Bounds().Dx() {
		interp = xdraw.ApproxBiLinear
	}
	interp.Scale(dst, r, src, src.Bounds(), xdraw.Over, nil)
}

func drawColorbar(dst *image.RGBA, r image.Rectangle, cm *Colormap) {
	h := r.Dy()
	for y := 0; y < h; y++ {
		t := 1.0
		if h > 1 {
			t = 1 - float64(y)/float64(h-1)
		}
		c := cm.At(t)
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetRGBA(x, r.Min.Y+y, c)
		}
	}
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(dst *image.RGBA, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawCentered(dst *image.RGBA, face font.Face, s string, cx, y int, c color.Color) {
	w := font.MeasureString(face, s).Ceil()
	drawText(dst, face, s, cx-w/2, y, c)
}

// wrapText breaks s into lines no wider than maxWidth
func wrapText(face font.Face, s string, maxWidth int) []string {
	var lines []string
	var cur string
	for _, word := range strings.Fields(s) {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if cur != "" && font.MeasureString(face, next).Ceil() > maxWidth {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = next
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
