package raster

import (
	"errors"
	"fmt"
	"math"
	"os"

	"insar-viewer/pkg/geotiff"
)

// ReadError reports a raster that cannot be opened or decoded
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read raster %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ErrEmptyRaster is wrapped by ReadError for zero-size rasters
var ErrEmptyRaster = errors.New("raster has no pixels")

// Open decodes band 1 of the GeoTIFF at path.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	band, err := geotiff.Read(f, info.Size())
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return FromBand(path, band)
}

// FromBand converts a decoded band, normalising non-finite samples to NaN.
func FromBand(path string, band *geotiff.Band) (*Image, error) {
	if band == nil || band.Width <= 0 || band.Height <= 0 || len(band.Data) == 0 {
		return nil, &ReadError{Path: path, Err: ErrEmptyRaster}
	}
	if len(band.Data) != band.Width*band.Height {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("band has %d samples, want %d", len(band.Data), band.Width*band.Height)}
	}

	for i, v := range band.Data {
		if math.IsInf(v, 0) {
			band.Data[i] = math.NaN()
		}
	}

	return &Image{
		Width:        band.Width,
		Height:       band.Height,
		Data:         band.Data,
		Transform:    GeoTransform(band.Geo.Transform),
		HasTransform: band.Geo.HasTransform,
		CRS:          band.Geo.CRS(),
		Geographic:   band.Geo.Geographic,
		NoData:       band.NoData,
	}, nil
}
