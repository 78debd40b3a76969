package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
	"insar-viewer/internal/render"
	"insar-viewer/internal/utils/naming"
)

type statsFlags struct {
	product   string
	threshold float64
}

// StatsReport is the summary printed by the stats command
type StatsReport struct {
	Input      string              `json:"input"`
	Product    catalog.ProductType `json:"product"`
	Pair       string              `json:"pair,omitempty"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	CRS        string              `json:"crs,omitempty"`
	Extent     *[4]float64         `json:"extent,omitempty"`
	Count      int                 `json:"count"`
	Valid      int                 `json:"valid"`
	Min        *float64            `json:"min"`
	Max        *float64            `json:"max"`
	Mean       *float64            `json:"mean"`
	Median     *float64            `json:"median"`
	StdDev     *float64            `json:"stdDev"`
	P2         *float64            `json:"p2"`
	P98        *float64            `json:"p98"`
	Settings   render.Settings     `json:"settings"`
	Subsidence *float64            `json:"subsidenceFraction,omitempty"`
	Threshold  *float64            `json:"subsidenceThreshold,omitempty"`
	// NonPositive is the share of valid pixels at or below zero
	NonPositive *float64 `json:"nonPositiveFraction,omitempty"`
}

// NewStatsCommand creates the "stats" command
func NewStatsCommand() *cobra.Command {
	flags := &statsFlags{}

	cmd := &cobra.Command{
		Use:   "stats <file.tif>",
		Short: "Print band statistics and the default display range",
		Long: `Print the size, georeferencing and value statistics of a GeoTIFF band,
along with the colormap and range the viewer would use. Displacement
products also report the share of pixels below the subsidence threshold.

Examples:
  insar-render stats S1_vert_disp.tif
  insar-render stats S1_vert_disp.tif --threshold -0.02 --json`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), args[0], flags)
		},
	}
	registerProductFlag(cmd, &flags.product)
	cmd.Flags().Float64Var(&flags.threshold, "threshold", raster.SubsidenceThreshold, "Subsidence threshold in metres")
	return cmd
}

func runStats(w io.Writer, path string, flags *statsFlags) error {
	entry, err := newEntry(path, flags.product)
	if err != nil {
		return err
	}
	img, err := raster.Open(path)
	if err != nil {
		return err
	}
	report := BuildStatsReport(entry, img, flags.threshold)

	if IsJSONOutput() {
		return writeJSON(w, report)
	}
	printStatsText(w, report)
	return nil
}

// BuildStatsReport summarises img. Statistics are nil when the band has no
// valid pixels.
func BuildStatsReport(entry catalog.Entry, img *raster.Image, threshold float64) StatsReport {
	stats := raster.ComputeStats(img.Data)
	r := StatsReport{
		Input:    entry.Path,
		Product:  entry.Product,
		Width:    img.Width,
		Height:   img.Height,
		CRS:      img.CRS,
		Count:    stats.Count,
		Valid:    stats.Valid,
		Settings: render.DefaultSettings(entry.Product, stats),
	}
	if p := FormatEntryPair(entry); p != "-" {
		r.Pair = p
	}
	if minX, minY, maxX, maxY, ok := img.Bounds(); ok {
		r.Extent = &[4]float64{minX, minY, maxX, maxY}
	}
	if stats.Valid == 0 {
		return r
	}

	r.Min = floatPtr(stats.Min)
	r.Max = floatPtr(stats.Max)
	r.Mean = floatPtr(stats.Mean)
	r.Median = floatPtr(stats.Median)
	r.StdDev = floatPtr(stats.StdDev)
	r.P2 = floatPtr(stats.Percentile(render.DefaultLowPercentile))
	r.P98 = floatPtr(stats.Percentile(render.DefaultHighPercentile))
	switch entry.Product {
	case catalog.Displacement, catalog.VerticalDisplacement:
		r.Subsidence = floatPtr(stats.SubsidenceFraction(threshold))
		r.Threshold = floatPtr(threshold)
		r.NonPositive = floatPtr(stats.CDF(0))
	}
	return r
}

func floatPtr(v float64) *float64 {
	return &v
}

func printStatsText(w io.Writer, r StatsReport) {
	fmt.Fprintf(w, "%s (%s)\n", r.Input, r.Product.Title())
	if r.Pair != "" {
		fmt.Fprintf(w, "  Pair:      %s\n", r.Pair)
	}
	fmt.Fprintf(w, "  Size:      %d x %d\n", r.Width, r.Height)
	if r.CRS != "" {
		fmt.Fprintf(w, "  CRS:       %s\n", r.CRS)
	}
	if r.Extent != nil {
		fmt.Fprintf(w, "  Extent:    %.6g, %.6g : %.6g, %.6g\n", r.Extent[0], r.Extent[1], r.Extent[2], r.Extent[3])
	}
	fmt.Fprintf(w, "  Valid:     %d of %d (%.1f%%)\n", r.Valid, r.Count, percent(r.Valid, r.Count))
	if r.Min == nil {
		fmt.Fprintln(w, "  No valid pixels")
	} else {
		unit := r.Product.Unit()
		fmt.Fprintf(w, "  Min/Max:   %s / %s %s\n", naming.FormatValue(*r.Min), naming.FormatValue(*r.Max), unit)
		fmt.Fprintf(w, "  Mean:      %s ± %s\n", naming.FormatValue(*r.Mean), naming.FormatValue(*r.StdDev))
		fmt.Fprintf(w, "  Median:    %s\n", naming.FormatValue(*r.Median))
		fmt.Fprintf(w, "  P2/P98:    %s / %s\n", naming.FormatValue(*r.P2), naming.FormatValue(*r.P98))
	}
	if r.Subsidence != nil {
		fmt.Fprintf(w, "  Below %gm: %.2f%%\n", *r.Threshold, 100**r.Subsidence)
		fmt.Fprintf(w, "  At or below 0: %.2f%%\n", 100**r.NonPositive)
	}
	fmt.Fprintf(w, "  Display:   %s [%s, %s] (%s)\n", r.Settings.Colormap,
		naming.FormatValue(r.Settings.Min), naming.FormatValue(r.Settings.Max), r.Settings.RangeSource)
}

func percent(n, total int) float64 {
	if total == 0 {
		return math.NaN()
	}
	return 100 * float64(n) / float64(total)
}
