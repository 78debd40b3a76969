package raster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SubsidenceThreshold is the displacement (m) below which a pixel counts as subsiding
const SubsidenceThreshold = -0.01

// Stats summarises the valid samples of a band
type Stats struct {
	Count  int     `json:"count"`
	Valid  int     `json:"valid"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std"`

	sorted []float64
}

// ComputeStats ignores NaN samples. With no valid samples every field but
// Count is zero.
func ComputeStats(data []float64) Stats {
	s := Stats{Count: len(data)}
	for _, v := range data {
		if !math.IsNaN(v) {
			s.sorted = append(s.sorted, v)
		}
	}
	s.Valid = len(s.sorted)
	if s.Valid == 0 {
		return s
	}
	sort.Float64s(s.sorted)

	s.Min = s.sorted[0]
	s.Max = s.sorted[len(s.sorted)-1]
	s.Mean, s.StdDev = stat.PopMeanStdDev(s.sorted, nil)
	s.Median = s.Percentile(50)
	return s
}

// Percentile returns the p-th percentile (0-100) of the valid samples, or NaN
// when there are none. Interpolation is linear between closest ranks
// (Hyndman-Fan type 7), so Percentile(50) of an even-length set is the
// midpoint of the two central samples.
func (s Stats) Percentile(p float64) float64 {
	n := len(s.sorted)
	if n == 0 {
		return math.NaN()
	}
	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	if lo >= n-1 {
		return s.sorted[n-1]
	}
	frac := rank - float64(lo)
	return s.sorted[lo] + frac*(s.sorted[lo+1]-s.sorted[lo])
}

// CDF returns the fraction of valid samples less than or equal to v
func (s Stats) CDF(v float64) float64 {
	if len(s.sorted) == 0 {
		return 0
	}
	return stat.CDF(v, stat.Empirical, s.sorted, nil)
}

// SubsidenceFraction is the share of valid samples strictly below threshold
func (s Stats) SubsidenceFraction(threshold float64) float64 {
	if len(s.sorted) == 0 {
		return 0
	}
	n := sort.SearchFloat64s(s.sorted, threshold)
	return float64(n) / float64(len(s.sorted))
}

// ValidFraction is the share of samples that are not NaN
func (s Stats) ValidFraction() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Count)
}
