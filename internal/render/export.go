package render

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"insar-viewer/internal/raster"
	"insar-viewer/pkg/geotiff"
)

// geotiffTileSize is used for exports large enough to benefit from tiling
const geotiffTileSize = 256

// WritePNG encodes img as PNG
func WritePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// WriteCSV writes the band as a comma-separated matrix, one raster row per
// line, values formatted %.6f and invalid samples as "nan".
func WriteCSV(w io.Writer, img *raster.Image) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	record := make([]string, img.Width)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.Data[y*img.Width+x]
			if math.IsNaN(v) {
				record[x] = "nan"
			} else {
				record[x] = strconv.FormatFloat(v, 'f', 6, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", y, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return bw.Flush()
}

// WriteGeoTIFF writes the band as a Deflate-compressed float32 GeoTIFF.
// Invalid samples are written as NaN and declared as nodata.
func WriteGeoTIFF(w io.Writer, img *raster.Image) error {
	nodata := math.NaN()
	opts := geotiff.Options{
		Compression: geotiff.CompressionDeflate,
		Predictor:   geotiff.PredictorFloatingPoint,
		NoData:      &nodata,
		Geo:         GeoInfo(img),
	}
	if img.Width >= geotiffTileSize && img.Height >= geotiffTileSize {
		opts.TileSize = geotiffTileSize
	}
	if err := geotiff.EncodeFloat32(w, img.Width, img.Height, img.Data, opts); err != nil {
		return fmt.Errorf("failed to encode GeoTIFF: %w", err)
	}
	return nil
}

// WriteColorGeoTIFF writes the colorized render as a georeferenced RGBA GeoTIFF
func WriteColorGeoTIFF(w io.Writer, r *Rendered) error {
	if err := geotiff.Encode(w, r.Image, geotiff.GeoTags(GeoInfo(r.Raster))); err != nil {
		return fmt.Errorf("failed to encode GeoTIFF: %w", err)
	}
	return nil
}

// GeoInfo converts raster georeferencing back to GeoTIFF keys
func GeoInfo(img *raster.Image) geotiff.GeoInfo {
	g := geotiff.GeoInfo{
		Transform:    [6]float64(img.Transform),
		HasTransform: img.HasTransform,
		Geographic:   img.Geographic,
	}
	if code, ok := strings.CutPrefix(img.CRS, "EPSG:"); ok {
		if n, err := strconv.Atoi(code); err == nil {
			g.EPSG = n
			return g
		}
	}
	g.Citation = img.CRS
	return g
}

// SaveFile writes to path+".tmp" and renames it over path once write
// succeeds. On failure the temp file is removed and path is untouched.
func SaveFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
