package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GeoTransform is the GDAL six-coefficient affine transform:
//
//	X = T[0] + px*T[1] + py*T[2]
//	Y = T[3] + px*T[4] + py*T[5]
type GeoTransform [6]float64

// Rotated reports whether the transform carries rotation or shear terms
func (t GeoTransform) Rotated() bool {
	return t[2] != 0 || t[4] != 0
}

// Apply maps fractional pixel coordinates to map coordinates
func (t GeoTransform) Apply(px, py float64) (x, y float64) {
	return t[0] + px*t[1] + py*t[2], t[3] + px*t[4] + py*t[5]
}

// Invert maps map coordinates back to fractional pixel coordinates.
func (t GeoTransform) Invert(x, y float64) (px, py float64, err error) {
	a := mat.NewDense(2, 2, []float64{t[1], t[2], t[4], t[5]})
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return 0, 0, fmt.Errorf("failed to invert geotransform: %w", err)
	}
	b := mat.NewVecDense(2, []float64{x - t[0], y - t[3]})
	var p mat.VecDense
	p.MulVec(&inv, b)
	return p.AtVec(0), p.AtVec(1), nil
}

// Image is one decoded raster band. Invalid samples (nodata or non-finite) are NaN.
type Image struct {
	Width     int
	Height    int
	Data      []float64
	Transform GeoTransform
	// HasTransform is false when the file carries no georeferencing
	HasTransform bool
	CRS          string
	Geographic   bool
	NoData       *float64
}

// ValueAt returns the sample at pixel (x, y); ok is false outside the raster.
func (img *Image) ValueAt(x, y int) (v float64, ok bool) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return math.NaN(), false
	}
	return img.Data[y*img.Width+x], true
}

// PixelToGeo returns the map coordinate of the centre of pixel (x, y).
// ok is false when the raster has no georeferencing.
func (img *Image) PixelToGeo(x, y int) (gx, gy float64, ok bool) {
	if !img.HasTransform {
		return 0, 0, false
	}
	gx, gy = img.Transform.Apply(float64(x)+0.5, float64(y)+0.5)
	return gx, gy, true
}

// GeoToPixel returns the pixel containing map coordinate (gx, gy).
// ok is false when the raster has no georeferencing or the point lies outside it.
func (img *Image) GeoToPixel(gx, gy float64) (x, y int, ok bool) {
	if !img.HasTransform {
		return 0, 0, false
	}
	px, py, err := img.Transform.Invert(gx, gy)
	if err != nil {
		return 0, 0, false
	}
	x, y = int(math.Floor(px)), int(math.Floor(py))
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return x, y, false
	}
	return x, y, true
}

// Bounds returns the map extent (minX, minY, maxX, maxY) covered by the raster
func (img *Image) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if !img.HasTransform {
		return 0, 0, 0, 0, false
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {float64(img.Width), 0}, {0, float64(img.Height)}, {float64(img.Width), float64(img.Height)}} {
		x, y := img.Transform.Apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY, true
}

// Readout describes the raster under a pointer position
type Readout struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Value      float64 `json:"-"`
	Valid      bool    `json:"valid"`
	GeoX       float64 `json:"geoX"`
	GeoY       float64 `json:"geoY"`
	HasGeo     bool    `json:"hasGeo"`
	CRS        string  `json:"crs,omitempty"`
	Geographic bool    `json:"geographic"`
}

// CoordinateFunc maps a pixel position to its readout
type CoordinateFunc func(x, y int) (Readout, bool)

// Readout returns the hover callback for img, or nil when it has no georeferencing.
func (img *Image) Readout() CoordinateFunc {
	if !img.HasTransform {
		return nil
	}
	return func(x, y int) (Readout, bool) {
		v, ok := img.ValueAt(x, y)
		if !ok {
			return Readout{}, false
		}
		gx, gy, _ := img.PixelToGeo(x, y)
		return Readout{
			X:          x,
			Y:          y,
			Value:      v,
			Valid:      !math.IsNaN(v),
			GeoX:       gx,
			GeoY:       gy,
			HasGeo:     true,
			CRS:        img.CRS,
			Geographic: img.Geographic,
		}, true
	}
}
