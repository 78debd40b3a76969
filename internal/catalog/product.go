package catalog

import (
	"path/filepath"
	"strings"
)

// ProductType identifies which InSAR layer a raster holds
type ProductType int

const (
	Unknown ProductType = iota
	WrappedPhase
	UnwrappedPhase
	Coherence
	Amplitude
	DEM
	Displacement
	VerticalDisplacement
	Incidence
	Azimuth
)

type productInfo struct {
	key   string
	title string
	unit  string
}

var products = map[ProductType]productInfo{
	Unknown:              {"unknown", "Unknown Product", "Value"},
	WrappedPhase:         {"wrapped_phase", "Wrapped Interferometric Phase", "Phase (rad)"},
	UnwrappedPhase:       {"unwrapped_phase", "Unwrapped Phase", "Phase (rad)"},
	Coherence:            {"coherence", "Coherence", "Coherence"},
	Amplitude:            {"amplitude", "Radar Amplitude", "Amplitude"},
	DEM:                  {"dem", "Digital Elevation Model", "Elevation (m)"},
	Displacement:         {"displacement", "Line-of-Sight Displacement", "Displacement (m)"},
	VerticalDisplacement: {"vertical_disp", "Vertical Displacement", "Displacement (m)"},
	Incidence:            {"incidence", "Incidence Angle", "Angle (deg)"},
	Azimuth:              {"azimuth", "Azimuth Angle", "Angle (deg)"},
}

// String returns the stable snake_case key, e.g. "wrapped_phase"
func (p ProductType) String() string {
	if info, ok := products[p]; ok {
		return info.key
	}
	return products[Unknown].key
}

// Title returns the human-readable product name used for figure titles
func (p ProductType) Title() string {
	if info, ok := products[p]; ok {
		return info.title
	}
	return products[Unknown].title
}

// Unit returns the colorbar label for the product's values
func (p ProductType) Unit() string {
	if info, ok := products[p]; ok {
		return info.unit
	}
	return products[Unknown].unit
}

// MarshalText encodes the product as its key so JSON payloads stay readable
func (p ProductType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any key ParseProductType accepts
func (p *ProductType) UnmarshalText(text []byte) error {
	v, err := ParseProductType(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// AllProducts lists every classifiable product type, Unknown last
func AllProducts() []ProductType {
	return []ProductType{
		WrappedPhase, UnwrappedPhase, Coherence, Amplitude, DEM,
		Displacement, VerticalDisplacement, Incidence, Azimuth, Unknown,
	}
}

// ParseProductType maps a product key back to its ProductType.
func ParseProductType(key string) (ProductType, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for p, info := range products {
		if info.key == k {
			return p, nil
		}
	}
	return Unknown, &UnsupportedProductError{Name: key}
}

type pattern struct {
	substr  string
	product ProductType
}

// patterns is evaluated top to bottom and the first substring hit wins.
// Unwrapped precedes wrapped and vertical precedes displacement because
// their names contain the later patterns. DEM is checked before either
// displacement kind, so "dem_los" is a DEM.
var patterns = []pattern{
	{"unwrapped_phase", UnwrappedPhase},
	{"phase_unwrapped", UnwrappedPhase},
	{"unwrapped", UnwrappedPhase},
	{"unw", UnwrappedPhase},

	{"wrapped_phase", WrappedPhase},
	{"phase_wrapped", WrappedPhase},
	{"wrapped", WrappedPhase},

	{"corr", Coherence},
	{"coherence", Coherence},
	{"coh", Coherence},

	{"amplitude", Amplitude},
	{"amp", Amplitude},

	{"dem", DEM},
	{"elevation", DEM},
	{"height", DEM},

	{"vertical", VerticalDisplacement},
	{"vert", VerticalDisplacement},

	{"displacement", Displacement},
	{"disp", Displacement},
	{"los", Displacement},

	{"lv_theta", Incidence},
	{"incidence", Incidence},
	{"inc", Incidence},

	{"lv_phi", Azimuth},
	{"azimuth", Azimuth},
}

// Classify infers the product type from a file name. Only the base name is
// considered and matching is case-insensitive. It never fails: names that
// match no pattern are Unknown.
func Classify(name string) ProductType {
	lower := strings.ToLower(filepath.Base(name))
	for _, p := range patterns {
		if strings.Contains(lower, p.substr) {
			return p.product
		}
	}
	return Unknown
}

// Patterns returns the file name substrings that classify as p, in
// evaluation order. Unknown has none.
func Patterns(p ProductType) []string {
	var out []string
	for _, pat := range patterns {
		if pat.product == p {
			out = append(out, pat.substr)
		}
	}
	return out
}
