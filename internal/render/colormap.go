package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// lutSize matches the resolution of the colour tables the ramps were designed at
const lutSize = 256

// Colormap is a named 256-entry lookup table
type Colormap struct {
	Name string
	lut  [lutSize]color.RGBA
}

type stop struct {
	pos float64
	hex string
}

// evenly spaced ramps
var ramps = map[string][]string{
	// InSAR-specific ramps
	"phase":        {"#ff0000", "#ffff00", "#00ff00", "#00ffff", "#0000ff", "#ff00ff", "#ff0000"},
	"coherence":    {"#000000", "#1a1a2e", "#16213e", "#0f3460", "#e94560", "#ff6b6b", "#ffffff"},
	"displacement": {"#0000ff", "#4444ff", "#8888ff", "#ffffff", "#ff8888", "#ff4444", "#ff0000"},
	"terrain":      {"#006400", "#228B22", "#90EE90", "#FFFF00", "#FFA500", "#8B4513", "#FFFFFF"},

	"gray":    {"#000000", "#ffffff"},
	"hsv":     {"#ff0000", "#ffff00", "#00ff00", "#00ffff", "#0000ff", "#ff00ff", "#ff0000"},
	"viridis": {"#440154", "#482475", "#414487", "#355f8d", "#2a788e", "#21918c", "#22a884", "#44bf70", "#7ad151", "#bddf26", "#fde725"},
	"plasma":  {"#0d0887", "#41049d", "#6a00a8", "#8f0da4", "#b12a90", "#cc4778", "#e16462", "#f2844b", "#fca636", "#fcce25", "#f0f921"},
	"inferno": {"#000004", "#160b39", "#420a68", "#6a176e", "#932667", "#bc3754", "#dd513a", "#f37819", "#fca50a", "#f6d746", "#fcffa4"},
	"magma":   {"#000004", "#140e36", "#3b0f70", "#641a80", "#8c2981", "#b73779", "#de4968", "#f7705c", "#fe9f6d", "#fecf92", "#fcfdbf"},
	"RdBu_r":  {"#053061", "#2166ac", "#4393c3", "#92c5de", "#d1e5f0", "#f7f7f7", "#fddbc7", "#f4a582", "#d6604d", "#b2182b", "#67001f"},
}

// ramps with uneven stops
var segmented = map[string][]stop{
	"jet": {
		{0, "#000080"}, {0.125, "#0000ff"}, {0.375, "#00ffff"},
		{0.625, "#ffff00"}, {0.875, "#ff0000"}, {1, "#800000"},
	},
	"seismic": {
		{0, "#00004c"}, {0.25, "#0000ff"}, {0.5, "#ffffff"},
		{0.75, "#ff0000"}, {1, "#7f0000"},
	},
}

var colormaps = buildColormaps()

func buildColormaps() map[string]*Colormap {
	out := make(map[string]*Colormap, len(ramps)+len(segmented))
	for name, hexes := range ramps {
		stops := make([]stop, len(hexes))
		for i, h := range hexes {
			stops[i] = stop{pos: float64(i) / float64(len(hexes)-1), hex: h}
		}
		out[name] = newColormap(name, stops)
	}
	for name, stops := range segmented {
		out[name] = newColormap(name, stops)
	}
	return out
}

func newColormap(name string, stops []stop) *Colormap {
	cm := &Colormap{Name: name}
	cols := make([]color.RGBA, len(stops))
	for i, s := range stops {
		c, err := ParseHexColor(s.hex)
		if err != nil {
			panic(fmt.Sprintf("colormap %s: %v", name, err))
		}
		cols[i] = c
	}

	for i := 0; i < lutSize; i++ {
		t := float64(i) / float64(lutSize-1)
		j := sort.Search(len(stops), func(k int) bool { return stops[k].pos >= t })
		switch {
		case j == 0:
			cm.lut[i] = cols[0]
		case j >= len(stops):
			cm.lut[i] = cols[len(cols)-1]
		default:
			a, b := stops[j-1], stops[j]
			f := (t - a.pos) / (b.pos - a.pos)
			cm.lut[i] = lerp(cols[j-1], cols[j], f)
		}
	}
	return cm
}

func lerp(a, b color.RGBA, f float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + f*(float64(y)-float64(x))))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// ParseHexColor parses "#rrggbb" (the leading # is optional)
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// LookupColormap returns the named colormap. Names are case-sensitive except
// that a lower-case match is tried as a fallback.
func LookupColormap(name string) (*Colormap, bool) {
	if cm, ok := colormaps[name]; ok {
		return cm, true
	}
	for k, cm := range colormaps {
		if strings.EqualFold(k, name) {
			return cm, true
		}
	}
	return nil, false
}

// ColormapNames lists the available colormaps with the InSAR ramps first
func ColormapNames() []string {
	insar := []string{"phase", "coherence", "displacement", "terrain"}
	rest := lo.Without(lo.Keys(colormaps), insar...)
	sort.Strings(rest)
	return append(insar, rest...)
}

// At returns the colour at position t in [0, 1]; values outside are clamped.
func (c *Colormap) At(t float64) color.RGBA {
	if math.IsNaN(t) {
		return color.RGBA{}
	}
	switch {
	case t <= 0:
		return c.lut[0]
	case t >= 1:
		return c.lut[lutSize-1]
	}
	return c.lut[int(t*lutSize)]
}

// Map normalises v into [min, max] and looks up its colour. NaN is
// transparent; a degenerate range maps everything to the low end.
func (c *Colormap) Map(v, min, max float64) color.RGBA {
	if math.IsNaN(v) {
		return color.RGBA{}
	}
	if max <= min {
		return c.lut[0]
	}
	return c.At((v - min) / (max - min))
}
