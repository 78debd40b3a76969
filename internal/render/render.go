package render

import (
	"fmt"
	"image"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
)

// Rendered is one colorized raster ready for display or export
type Rendered struct {
	Entry    catalog.Entry
	Settings Settings
	// Image holds one pixel per raster sample; invalid samples are transparent
	Image   *image.RGBA
	Raster  *raster.Image
	Stats   raster.Stats
	Readout raster.CoordinateFunc
}

// Render opens entry and colorizes it with the product defaults and opts.
// Decode failures are returned as *raster.ReadError.
func Render(entry catalog.Entry, opts Options) (*Rendered, error) {
	img, err := raster.Open(entry.Path)
	if err != nil {
		return nil, err
	}
	return RenderImage(entry, img, opts)
}

// RenderImage colorizes an already decoded raster.
func RenderImage(entry catalog.Entry, img *raster.Image, opts Options) (*Rendered, error) {
	stats := raster.ComputeStats(img.Data)
	settings, err := ResolveSettings(entry.Product, stats, opts)
	if err != nil {
		return nil, err
	}

	cm, ok := LookupColormap(settings.Colormap)
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", settings.Colormap)
	}

	return &Rendered{
		Entry:    entry,
		Settings: settings,
		Image:    Colorize(img, cm, settings.Min, settings.Max),
		Raster:   img,
		Stats:    stats,
		Readout:  img.Readout(),
	}, nil
}

// Colorize maps every sample through cm over [min, max]
func Colorize(img *raster.Image, cm *Colormap, min, max float64) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*img.Width : (y+1)*img.Width]
		for x, v := range row {
			out.SetRGBA(x, y, cm.Map(v, min, max))
		}
	}
	return out
}

// Summary is the text shown in the info panel next to a render
func (r *Rendered) Summary() string {
	s := fmt.Sprintf("File: %s\nType: %s\nShape: %dx%d px\n",
		r.Entry.Name, r.Entry.Product, r.Raster.Width, r.Raster.Height)
	if r.Stats.Valid > 0 {
		s += fmt.Sprintf("Range: %.4f to %.4f\n", r.Stats.Min, r.Stats.Max)
	} else {
		s += "Range: no valid pixels\n"
	}
	s += fmt.Sprintf("Display: %.4f to %.4f (%s)\nColormap: %s",
		r.Settings.Min, r.Settings.Max, r.Settings.RangeSource, r.Settings.Colormap)
	if r.Raster.CRS != "" {
		s += "\nCRS: " + r.Raster.CRS
	}
	return s
}
