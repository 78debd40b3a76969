package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
)

// Default percentile stretch for products without a fixed range
const (
	DefaultLowPercentile  = 2.0
	DefaultHighPercentile = 98.0
)

// RangeSource records where a display range came from
type RangeSource string

const (
	RangeFixed      RangeSource = "fixed"
	RangePercentile RangeSource = "percentile"
	RangeManual     RangeSource = "manual"
	// RangeFallback is used when a band has no valid samples
	RangeFallback RangeSource = "fallback"
)

// Settings is the resolved colormap and value range for one render
type Settings struct {
	Colormap    string              `json:"colormap"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Product     catalog.ProductType `json:"product"`
	RangeSource RangeSource         `json:"rangeSource"`
}

// Options are user display overrides. The zero value renders product defaults.
type Options struct {
	// Colormap overrides the product default; "" or "auto" keeps it
	Colormap string `json:"colormap"`
	// Min and Max override either end of the value range
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// LowPercentile and HighPercentile replace the 2-98 stretch when both are set
	LowPercentile  float64 `json:"lowPercentile,omitempty"`
	HighPercentile float64 `json:"highPercentile,omitempty"`
}

// Validate reports overrides that can never produce a usable range
func (o Options) Validate() error {
	if !o.autoColormap() {
		if _, ok := LookupColormap(o.Colormap); !ok {
			return fmt.Errorf("unknown colormap %q", o.Colormap)
		}
	}
	if o.Min != nil && o.Max != nil && *o.Min >= *o.Max {
		return fmt.Errorf("invalid display range: min %g must be below max %g", *o.Min, *o.Max)
	}
	for _, v := range []*float64{o.Min, o.Max} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("display range bounds must be finite")
		}
	}
	if o.LowPercentile != 0 || o.HighPercentile != 0 {
		if o.LowPercentile < 0 || o.HighPercentile > 100 || o.LowPercentile >= o.HighPercentile {
			return fmt.Errorf("invalid percentile bounds %g-%g", o.LowPercentile, o.HighPercentile)
		}
	}
	return nil
}

func (o Options) autoColormap() bool {
	c := strings.TrimSpace(o.Colormap)
	return c == "" || strings.EqualFold(c, "auto")
}

func (o Options) percentiles() (lo, hi float64) {
	if o.LowPercentile == 0 && o.HighPercentile == 0 {
		return DefaultLowPercentile, DefaultHighPercentile
	}
	return o.LowPercentile, o.HighPercentile
}

var defaultColormaps = map[catalog.ProductType]string{
	catalog.WrappedPhase:         "phase",
	catalog.UnwrappedPhase:       "phase",
	catalog.Coherence:            "gray",
	catalog.Amplitude:            "gray",
	catalog.DEM:                  "terrain",
	catalog.Displacement:         "displacement",
	catalog.VerticalDisplacement: "displacement",
	catalog.Incidence:            "viridis",
	catalog.Azimuth:              "hsv",
}

// DefaultColormap returns the colormap a product renders with unless overridden
func DefaultColormap(p catalog.ProductType) string {
	if name, ok := defaultColormaps[p]; ok {
		return name
	}
	return "viridis"
}

// FixedRange returns the physical value range of products that have one:
// wrapped phase spans (-π, π) and coherence (0, 1).
func FixedRange(p catalog.ProductType) (min, max float64, ok bool) {
	switch p {
	case catalog.WrappedPhase:
		return -math.Pi, math.Pi, true
	case catalog.Coherence:
		return 0, 1, true
	}
	return 0, 0, false
}

// DefaultSettings resolves the product defaults against the band statistics.
func DefaultSettings(p catalog.ProductType, stats raster.Stats) Settings {
	s, _ := ResolveSettings(p, stats, Options{})
	return s
}

// ResolveSettings applies user overrides on top of the product defaults.
func ResolveSettings(p catalog.ProductType, stats raster.Stats, opts Options) (Settings, error) {
	if err := opts.Validate(); err != nil {
		return Settings{}, err
	}

	s := Settings{Product: p, Colormap: DefaultColormap(p)}
	if !opts.autoColormap() {
		cm, _ := LookupColormap(opts.Colormap)
		s.Colormap = cm.Name
	}

	if min, max, ok := FixedRange(p); ok {
		s.Min, s.Max, s.RangeSource = min, max, RangeFixed
	} else if stats.Valid > 0 {
		lo, hi := opts.percentiles()
		s.Min, s.Max, s.RangeSource = stats.Percentile(lo), stats.Percentile(hi), RangePercentile
	} else {
		s.Min, s.Max, s.RangeSource = 0, 1, RangeFallback
	}

	if opts.Min != nil {
		s.Min = *opts.Min
		s.RangeSource = RangeManual
	}
	if opts.Max != nil {
		s.Max = *opts.Max
		s.RangeSource = RangeManual
	}
	if s.Min > s.Max {
		return Settings{}, fmt.Errorf("invalid display range: min %g is above max %g", s.Min, s.Max)
	}
	return s, nil
}

// ParseBound parses a user-entered range bound; "" and "auto" mean no override.
func ParseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range bound %q: %w", s, err)
	}
	return &v, nil
}
