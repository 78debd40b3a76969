// Package analysis samples displacement rasters at user-picked points and
// builds per-point displacement time series.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
)

// MaxPoints bounds the points sampled in one time series
const MaxPoints = 10

const daysPerYear = 365.25

// Point is a named pixel location shared by every raster in the series
type Point struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Sample is one point's displacement in one raster, in metres, with the
// reference point's displacement already subtracted.
type Sample struct {
	Date  time.Time `json:"date"`
	File  string    `json:"file"`
	Value float64   `json:"value"`
}

// Series is the time series of one point
type Series struct {
	Point   Point    `json:"point"`
	Samples []Sample `json:"samples"`
	// Change is the last sample minus the first
	Change *float64 `json:"change,omitempty"`
	// Velocity is the least-squares trend in metres per year
	Velocity *float64 `json:"velocity,omitempty"`
}

// Skipped records a raster left out of the series and why
type Skipped struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Result is the output of TimeSeries
type Result struct {
	Product   catalog.ProductType `json:"product"`
	Reference *Point              `json:"reference,omitempty"`
	Series    []Series            `json:"series"`
	Files     int                 `json:"files"`
	Skipped   []Skipped           `json:"skipped,omitempty"`
}

// Opener reads a raster band. raster.Open in production.
type Opener func(path string) (*raster.Image, error)

// IsDisplacement reports whether p can be sampled as a time series
func IsDisplacement(p catalog.ProductType) bool {
	return p == catalog.Displacement || p == catalog.VerticalDisplacement
}

// TimeSeries samples every dated entry of the given displacement product at
// each point, ordered by secondary acquisition date. When ref is set its
// value in the same raster is subtracted; a sample is dropped if either
// value is invalid or outside the raster. Unreadable and undated files are
// listed in Skipped and do not fail the call.
func TimeSeries(entries []catalog.Entry, product catalog.ProductType, points []Point, ref *Point, open Opener) (*Result, error) {
	if !IsDisplacement(product) {
		return nil, fmt.Errorf("time series needs a displacement product, not %s", product)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("at least one point is required")
	}
	if len(points) > MaxPoints {
		return nil, fmt.Errorf("at most %d points, got %d", MaxPoints, len(points))
	}
	names := lo.Map(points, func(p Point, _ int) string { return p.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate point name %q", dup[0])
	}
	if open == nil {
		open = raster.Open
	}

	res := &Result{Product: product, Reference: ref, Series: make([]Series, len(points))}
	for i, p := range points {
		res.Series[i] = Series{Point: p, Samples: []Sample{}}
	}

	dated := lo.Filter(entries, func(e catalog.Entry, _ int) bool { return e.Product == product })
	for _, e := range dated {
		if e.Secondary == nil {
			res.Skipped = append(res.Skipped, Skipped{File: e.Name, Reason: "no acquisition dates in file name"})
		}
	}
	dated = lo.Filter(dated, func(e catalog.Entry, _ int) bool { return e.Secondary != nil })
	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].Secondary.Equal(*dated[j].Secondary) {
			return dated[i].Secondary.Before(*dated[j].Secondary)
		}
		return dated[i].Name < dated[j].Name
	})

	for _, e := range dated {
		img, err := open(e.Path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{File: e.Name, Reason: err.Error()})
			continue
		}
		res.Files++

		offset := 0.0
		if ref != nil {
			v, ok := img.ValueAt(ref.X, ref.Y)
			if !ok || math.IsNaN(v) {
				continue
			}
			offset = v
		}
		for i, p := range points {
			v, ok := img.ValueAt(p.X, p.Y)
			if !ok || math.IsNaN(v) {
				continue
			}
			res.Series[i].Samples = append(res.Series[i].Samples, Sample{
				Date:  *e.Secondary,
				File:  e.Name,
				Value: v - offset,
			})
		}
	}

	for i := range res.Series {
		summarize(&res.Series[i])
	}
	return res, nil
}

// summarize fills Change and, with samples on at least two dates, Velocity
func summarize(s *Series) {
	n := len(s.Samples)
	if n == 0 {
		return
	}
	change := s.Samples[n-1].Value - s.Samples[0].Value
	s.Change = &change

	start := s.Samples[0].Date
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, smp := range s.Samples {
		xs[i] = smp.Date.Sub(start).Hours() / 24 / daysPerYear
		ys[i] = smp.Value
	}
	if xs[n-1] == 0 {
		return
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	s.Velocity = &beta
}

// ParsePoint parses "name=x,y" (or "x,y", named after its index) into a Point
func ParsePoint(s string, index int) (Point, error) {
	p := Point{Name: fmt.Sprintf("P%d", index+1)}
	coords := s
	if name, rest, ok := strings.Cut(s, "="); ok {
		p.Name, coords = strings.TrimSpace(name), rest
	}
	if p.Name == "" {
		return Point{}, fmt.Errorf("invalid point %q: empty name", s)
	}
	if _, err := fmt.Sscanf(coords, "%d,%d", &p.X, &p.Y); err != nil {
		return Point{}, fmt.Errorf("invalid point %q: expected name=x,y", s)
	}
	if p.X < 0 || p.Y < 0 {
		return Point{}, fmt.Errorf("invalid point %q: negative pixel", s)
	}
	return p, nil
}
