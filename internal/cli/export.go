package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"insar-viewer/internal/logging"
	"insar-viewer/internal/render"
	"insar-viewer/internal/utils/naming"
)

// Export formats
const (
	FormatCSV        = "csv"
	FormatGeoTIFF    = "geotiff"
	FormatPNG        = "png"
	FormatColorTIFF  = "color-geotiff"
	defaultExportFmt = FormatGeoTIFF
)

type exportFlags struct {
	display displayFlags
	format  string
	output  string
}

// NewExportCommand creates the "export" command
func NewExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export <file.tif>",
		Short: "Export a product as CSV, GeoTIFF or PNG",
		Long: `Export the decoded band of a GeoTIFF.

Formats:
  csv            value matrix, one raster row per line, nan for nodata
  geotiff        float32 band with georeferencing, Deflate compressed
  png            colorized raster, one pixel per sample
  color-geotiff  colorized raster as a georeferenced RGBA GeoTIFF

Examples:
  insar-render export S1_vert_disp.tif --format csv
  insar-render export S1_unw_phase.tif --format color-geotiff -o phase_rgba.tif`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.OutOrStdout(), args[0], flags)
		},
	}
	flags.display.register(cmd)
	cmd.Flags().StringVarP(&flags.format, "format", "f", defaultExportFmt, "csv, geotiff, png or color-geotiff")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output path (default {product}_{name}.{ext})")
	return cmd
}

// ExportExtension returns the file extension for an export format
func ExportExtension(format string) (string, bool) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return "csv", true
	case FormatGeoTIFF, FormatColorTIFF:
		return "tif", true
	case FormatPNG:
		return "png", true
	}
	return "", false
}

func runExport(w io.Writer, path string, flags *exportFlags) error {
	format := strings.ToLower(flags.format)
	ext, ok := ExportExtension(format)
	if !ok {
		return usageError("unknown export format %q", flags.format)
	}
	opts, err := flags.display.options()
	if err != nil {
		return err
	}

	entry, err := newEntry(path, flags.display.product)
	if err != nil {
		return err
	}
	rendered, err := render.Render(entry, opts)
	if err != nil {
		return err
	}

	out := flags.output
	if out == "" {
		out = naming.ExportFilename(entry.Product.String(), entry.Name, ext)
	}

	var write func(io.Writer) error
	switch format {
	case FormatCSV:
		write = func(fw io.Writer) error { return render.WriteCSV(fw, rendered.Raster) }
	case FormatGeoTIFF:
		write = func(fw io.Writer) error { return render.WriteGeoTIFF(fw, rendered.Raster) }
	case FormatPNG:
		write = func(fw io.Writer) error { return render.WritePNG(fw, rendered.Image) }
	case FormatColorTIFF:
		write = func(fw io.Writer) error { return render.WriteColorGeoTIFF(fw, rendered) }
	}
	if err := render.SaveFile(out, write); err != nil {
		return err
	}
	logger := logging.Component("cli")
	logger.Debug().Str("format", format).Str("output", out).Msg("export written")

	return printRenderResult(w, entry, out, rendered.Settings)
}
