package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
)

func utmImage(w, h int, f func(x, y int) float64) *raster.Image {
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = f(x, y)
		}
	}
	return &raster.Image{
		Width:        w,
		Height:       h,
		Data:         data,
		Transform:    raster.GeoTransform{500000, 30, 0, 4200000, 0, -30},
		HasTransform: true,
		CRS:          "EPSG:32611",
	}
}

func writeFixture(t *testing.T, dir, name string, img *raster.Image) catalog.Entry {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, SaveFile(path, func(w io.Writer) error { return WriteGeoTIFF(w, img) }))
	return catalog.NewEntry(path)
}

func writeCorrupt(t *testing.T, dir, name string) catalog.Entry {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("II*\x00garbage that is not a raster"), 0644))
	return catalog.NewEntry(path)
}

func ramp(x, y int) float64 { return float64(x + 10*y) }

func TestColormapNames(t *testing.T) {
	names := ColormapNames()
	assert.Equal(t, []string{"phase", "coherence", "displacement", "terrain"}, names[:4])
	for _, n := range []string{"jet", "viridis", "plasma", "inferno", "magma", "gray", "RdBu_r", "seismic", "hsv"} {
		assert.Contains(t, names, n)
		_, ok := LookupColormap(n)
		assert.True(t, ok, n)
	}
	assert.Len(t, names, 13)

	_, ok := LookupColormap("rdbu_r")
	assert.True(t, ok)
	_, ok = LookupColormap("nope")
	assert.False(t, ok)
}

func TestColormapEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		low, top string
	}{
		{"phase", "#ff0000", "#ff0000"},
		{"gray", "#000000", "#ffffff"},
		{"displacement", "#0000ff", "#ff0000"},
		{"terrain", "#006400", "#ffffff"},
		{"coherence", "#000000", "#ffffff"},
		{"viridis", "#440154", "#fde725"},
		{"jet", "#000080", "#800000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, ok := LookupColormap(tt.name)
			require.True(t, ok)
			low, _ := ParseHexColor(tt.low)
			top, _ := ParseHexColor(tt.top)
			assert.Equal(t, low, cm.At(0))
			assert.Equal(t, top, cm.At(1))
			assert.Equal(t, low, cm.At(-3))
			assert.Equal(t, top, cm.At(7))
		})
	}
}

func TestColormapMap(t *testing.T) {
	cm, _ := LookupColormap("gray")
	assert.Equal(t, color.RGBA{}, cm.Map(math.NaN(), 0, 1))
	assert.Equal(t, color.RGBA{A: 255}, cm.Map(5, 3, 3))
	mid := cm.Map(0.5, 0, 1)
	assert.InDelta(t, 128, int(mid.R), 1)
	assert.Equal(t, mid.R, mid.G)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1a1a2e")
	require.NoError(t, err)
	assert.Equal(t, Background, c)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)
}

func TestDefaultColormaps(t *testing.T) {
	want := map[catalog.ProductType]string{
		catalog.WrappedPhase:         "phase",
		catalog.UnwrappedPhase:       "phase",
		catalog.Coherence:            "gray",
		catalog.Amplitude:            "gray",
		catalog.DEM:                  "terrain",
		catalog.Displacement:         "displacement",
		catalog.VerticalDisplacement: "displacement",
		catalog.Incidence:            "viridis",
		catalog.Azimuth:              "hsv",
		catalog.Unknown:              "viridis",
	}
	for p, name := range want {
		assert.Equal(t, name, DefaultColormap(p), p.String())
		_, ok := LookupColormap(name)
		assert.True(t, ok)
	}
}

func TestDefaultSettingsFixedRanges(t *testing.T) {
	wild := raster.ComputeStats([]float64{-100, 0, 100})

	s := DefaultSettings(catalog.WrappedPhase, wild)
	assert.Equal(t, -math.Pi, s.Min)
	assert.Equal(t, math.Pi, s.Max)
	assert.Equal(t, RangeFixed, s.RangeSource)

	s = DefaultSettings(catalog.Coherence, wild)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, RangeFixed, s.RangeSource)
}

func TestDefaultSettingsPercentile(t *testing.T) {
	data := make([]float64, 101)
	for i := range data {
		data[i] = float64(i)
	}
	s := DefaultSettings(catalog.UnwrappedPhase, raster.ComputeStats(data))
	assert.Equal(t, "phase", s.Colormap)
	assert.Equal(t, RangePercentile, s.RangeSource)
	assert.InDelta(t, 2, s.Min, 1e-9)
	assert.InDelta(t, 98, s.Max, 1e-9)

	s = DefaultSettings(catalog.DEM, raster.ComputeStats([]float64{math.NaN()}))
	assert.Equal(t, RangeFallback, s.RangeSource)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 1.0, s.Max)
}

func TestResolveSettingsOverrides(t *testing.T) {
	stats := raster.ComputeStats([]float64{0, 10, 20, 30, 40})
	lo, hi := -1.0, 5.0

	s, err := ResolveSettings(catalog.Displacement, stats, Options{Colormap: "jet", Min: &lo})
	require.NoError(t, err)
	assert.Equal(t, "jet", s.Colormap)
	assert.Equal(t, RangeManual, s.RangeSource)
	assert.Equal(t, -1.0, s.Min)
	assert.InDelta(t, 39.2, s.Max, 1e-9)

	s, err = ResolveSettings(catalog.WrappedPhase, stats, Options{Colormap: "auto", Max: &hi})
	require.NoError(t, err)
	assert.Equal(t, "phase", s.Colormap)
	assert.Equal(t, -math.Pi, s.Min)
	assert.Equal(t, 5.0, s.Max)

	s, err = ResolveSettings(catalog.Amplitude, stats, Options{LowPercentile: 0, HighPercentile: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 40.0, s.Max)

	_, err = ResolveSettings(catalog.Amplitude, stats, Options{Colormap: "rainbow-unicorn"})
	assert.Error(t, err)

	_, err = ResolveSettings(catalog.Amplitude, stats, Options{Min: &hi, Max: &lo})
	assert.Error(t, err)

	_, err = ResolveSettings(catalog.Amplitude, stats, Options{LowPercentile: 90, HighPercentile: 10})
	assert.Error(t, err)

	tooHigh := 50.0
	_, err = ResolveSettings(catalog.Amplitude, stats, Options{Min: &tooHigh})
	assert.Error(t, err)
}

func TestParseBound(t *testing.T) {
	v, err := ParseBound("auto")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseBound(" ")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseBound("-0.25")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, -0.25, *v)

	_, err = ParseBound("abc")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	img := utmImage(8, 4, ramp)
	img.Data[3] = math.NaN()
	entry := writeFixture(t, dir, "S1_unw_phase.tif", img)

	r, err := Render(entry, Options{})
	require.NoError(t, err)

	assert.Equal(t, catalog.UnwrappedPhase, r.Settings.Product)
	assert.Equal(t, image.Rect(0, 0, 8, 4), r.Image.Bounds())
	assert.Equal(t, 31, r.Stats.Valid)
	assert.Equal(t, color.RGBA{}, r.Image.RGBAAt(3, 0), "invalid pixel is transparent")
	assert.Equal(t, uint8(255), r.Image.RGBAAt(0, 0).A)

	require.NotNil(t, r.Readout)
	ro, ok := r.Readout(0, 0)
	require.True(t, ok)
	assert.Equal(t, 500015.0, ro.GeoX)
	assert.Equal(t, 4199985.0, ro.GeoY)

	assert.Contains(t, r.Summary(), "Colormap: phase")
	assert.Contains(t, r.Summary(), "CRS: EPSG:32611")
}

func TestRenderFixedRangesAreStable(t *testing.T) {
	dir := t.TempDir()
	wrapped := writeFixture(t, dir, "wrapped_phase.tif", utmImage(4, 4, func(x, y int) float64 { return float64(x-y) * 0.7 }))
	coh := writeFixture(t, dir, "S1_corr.tif", utmImage(4, 4, func(x, y int) float64 { return float64(x*y) / 9 }))

	for i := 0; i < 2; i++ {
		r, err := Render(wrapped, Options{})
		require.NoError(t, err)
		assert.Equal(t, -math.Pi, r.Settings.Min)
		assert.Equal(t, math.Pi, r.Settings.Max)

		r, err = Render(coh, Options{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.Settings.Min)
		assert.Equal(t, 1.0, r.Settings.Max)
	}
}

func TestRenderCorruptRaster(t *testing.T) {
	entry := writeCorrupt(t, t.TempDir(), "broken_corr.tif")
	_, err := Render(entry, Options{})
	var re *raster.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, entry.Path, re.Path)
}

func TestRenderWithoutGeoreferencing(t *testing.T) {
	img := utmImage(2, 2, ramp)
	img.HasTransform = false
	img.CRS = ""
	r, err := RenderImage(catalog.NewEntry("dem.tif"), img, Options{})
	require.NoError(t, err)
	assert.Nil(t, r.Readout)
}

func TestCompareIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	entries := []catalog.Entry{
		writeFixture(t, dir, "unwPhase_1.tif", utmImage(6, 6, ramp)),
		writeFixture(t, dir, "coherence_1.tif", utmImage(6, 6, func(x, y int) float64 { return 0.5 })),
		writeCorrupt(t, dir, "amplitude_1.tif"),
		writeFixture(t, dir, "dem_1.tif", utmImage(6, 6, ramp)),
	}

	c, err := Compare(entries, Options{})
	require.NoError(t, err)
	require.Len(t, c.Panels, 4)
	assert.Equal(t, 3, c.Succeeded())

	for i, p := range c.Panels {
		assert.Equal(t, entries[i], p.Entry)
		if i == 2 {
			assert.True(t, p.Failed())
			assert.Nil(t, p.Rendered)
			var re *raster.ReadError
			assert.ErrorAs(t, p.Err, &re)
			continue
		}
		assert.False(t, p.Failed())
		assert.NotNil(t, p.Rendered)
	}

	grid := c.Compose(200)
	assert.Equal(t, image.Rect(0, 0, 400, 400), grid.Bounds())

	failedCell := grid.SubImage(image.Rect(0, 200, 200, 400)).(*image.RGBA)
	assert.True(t, hasReddish(failedCell), "failed panel shows an accent-coloured error")
}

func hasReddish(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if int(c.R) > int(c.G)+60 {
				return true
			}
		}
	}
	return false
}

func TestComparePanelCount(t *testing.T) {
	_, err := Compare(nil, Options{})
	assert.ErrorIs(t, err, ErrPanelCount)

	five := make([]catalog.Entry, 5)
	_, err = Compare(five, Options{})
	assert.ErrorIs(t, err, ErrPanelCount)
}

func TestCompareAllFailed(t *testing.T) {
	dir := t.TempDir()
	c, err := Compare([]catalog.Entry{
		catalog.NewEntry(filepath.Join(dir, "missing_a.tif")),
		catalog.NewEntry(filepath.Join(dir, "missing_b.tif")),
	}, Options{})
	require.NoError(t, err)
	assert.Zero(t, c.Succeeded())
	assert.Equal(t, image.Rect(0, 0, 300, 150), c.Compose(150).Bounds())
}

func TestGridShape(t *testing.T) {
	tests := []struct{ n, cols, rows int }{
		{0, 0, 0}, {1, 1, 1}, {2, 2, 1}, {3, 2, 2}, {4, 2, 2},
	}
	for _, tt := range tests {
		cols, rows := GridShape(tt.n)
		assert.Equal(t, tt.cols, cols, "n=%d", tt.n)
		assert.Equal(t, tt.rows, rows, "n=%d", tt.n)
	}
}

func TestFigure(t *testing.T) {
	r, err := RenderImage(catalog.NewEntry("S1_vert_disp.tif"), utmImage(40, 20, ramp), Options{})
	require.NoError(t, err)

	fig := Figure(r, 600)
	b := fig.Bounds()
	assert.LessOrEqual(t, b.Dx(), 600)
	assert.LessOrEqual(t, b.Dy(), 600)
	assert.Greater(t, b.Dx(), b.Dy(), "landscape raster stays landscape")
	assert.Equal(t, Background, fig.RGBAAt(0, 0))

	// the top of the colorbar is the high end of the displacement ramp
	barX := b.Dx() - colorbarMargin + colorbarWidth/2
	barTop := figurePadding + titleHeight
	assert.Equal(t, color.RGBA{0xff, 0, 0, 0xff}, fig.RGBAAt(barX, barTop))
}

func TestFiguresDrawConcurrently(t *testing.T) {
	r, err := RenderImage(catalog.NewEntry("S1_vert_disp.tif"), utmImage(40, 20, ramp), Options{})
	require.NoError(t, err)
	want := Figure(r, 300)

	var wg sync.WaitGroup
	figs := make([]*image.RGBA, 8)
	for i := range figs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				figs[i] = Figure(r, 300)
			case 1:
				PanelFigure(r, 200)
			default:
				ErrorPanel(r.Entry, errors.New("cannot read raster"), 200)
			}
		}(i)
	}
	wg.Wait()

	for i, fig := range figs {
		if i%3 == 0 {
			assert.Equal(t, want.Pix, fig.Pix, "figure %d", i)
		}
	}
}

func TestExportCSV(t *testing.T) {
	img := utmImage(3, 2, func(x, y int) float64 { return float64(x) + float64(y)/8 })
	img.Data[4] = math.NaN()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, img))
	assert.Equal(t, "0.000000,1.000000,2.000000\n0.125000,nan,2.125000\n", buf.String())
}

func TestExportGeoTIFFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := utmImage(300, 260, func(x, y int) float64 { return math.Sin(float64(x)/10) * float64(y) })
	img.Data[0] = math.NaN()
	entry := writeFixture(t, dir, "los_disp.tif", img)

	back, err := raster.Open(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, img.Width, back.Width)
	assert.Equal(t, img.Height, back.Height)
	assert.Equal(t, img.Transform, back.Transform)
	assert.Equal(t, "EPSG:32611", back.CRS)
	assert.True(t, math.IsNaN(back.Data[0]))
	for i := 1; i < len(img.Data); i += 997 {
		assert.InDelta(t, img.Data[i], back.Data[i], 1e-4)
	}
}

func TestExportPNGAndColorGeoTIFF(t *testing.T) {
	r, err := RenderImage(catalog.NewEntry("dem.tif"), utmImage(5, 5, ramp), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, r.Image))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, r.Image.Bounds(), decoded.Bounds())

	path := filepath.Join(t.TempDir(), "dem_color.tif")
	require.NoError(t, SaveFile(path, func(w io.Writer) error { return WriteColorGeoTIFF(w, r) }))
	back, err := raster.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32611", back.CRS)
	assert.Equal(t, float64(r.Image.RGBAAt(2, 2).R), back.Data[2*5+2])
}

func TestSaveFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := SaveFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.NoFileExists(t, path+".tmp")
}

func TestSaveFileKeepsOriginalOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	err := SaveFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
	assert.NoFileExists(t, path+".tmp")

	require.NoError(t, SaveFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("replaced"))
		return err
	}))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(got))
}

func TestGeoInfoCitationCRS(t *testing.T) {
	img := utmImage(1, 1, ramp)
	img.CRS = "Custom LCC"
	g := GeoInfo(img)
	assert.Zero(t, g.EPSG)
	assert.Equal(t, "Custom LCC", g.Citation)
	assert.True(t, strings.HasPrefix(GeoInfo(utmImage(1, 1, ramp)).CRS(), "EPSG:"))
}
