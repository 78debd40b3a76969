package cli

import (
	"fmt"
	"image"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/logging"
	"insar-viewer/internal/render"
	"insar-viewer/internal/utils/naming"
)

const defaultFigureSize = 900

type renderFlags struct {
	display displayFlags
	output  string
	size    int
	raw     bool
}

// renderResult is the --json output of render and export
type renderResult struct {
	Input    string          `json:"input"`
	Output   string          `json:"output"`
	Product  string          `json:"product"`
	Settings render.Settings `json:"settings"`
}

// NewRenderCommand creates the "render" command
func NewRenderCommand() *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render <file.tif>",
		Short: "Render one product as a PNG figure",
		Long: `Render a GeoTIFF with the colormap and value range of its product type,
adding a title and a colorbar. --raw writes one pixel per raster sample
without decorations.

Examples:
  insar-render render S1_unw_phase.tif
  insar-render render S1_vert_disp.tif --colormap RdBu_r --min -0.05 --max 0.05 -o subsidence.png`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout(), args[0], flags)
		},
	}
	flags.display.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output PNG path (default {product}_{name}.png)")
	cmd.Flags().IntVar(&flags.size, "size", defaultFigureSize, "Maximum figure width and height in pixels")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Write the colorized raster only")
	return cmd
}

func runRender(w io.Writer, path string, flags *renderFlags) error {
	if flags.size < 64 {
		return usageError("--size must be at least 64")
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
		out = naming.ExportFilename(entry.Product.String(), entry.Name, "png")
	}
	var img image.Image = rendered.Image
	if !flags.raw {
		img = render.Figure(rendered, flags.size)
	}
	if err := render.SaveFile(out, func(fw io.Writer) error { return render.WritePNG(fw, img) }); err != nil {
		return err
	}
	logger := logging.Component("cli")
	logger.Debug().Str("input", path).Str("output", out).Msg("figure written")

	return printRenderResult(w, entry, out, rendered.Settings)
}

func printRenderResult(w io.Writer, entry catalog.Entry, out string, s render.Settings) error {
	if IsJSONOutput() {
		return writeJSON(w, renderResult{
			Input:    entry.Path,
			Output:   out,
			Product:  entry.Product.String(),
			Settings: s,
		})
	}
	fmt.Fprintf(w, "%s → %s\n", filepath.Base(entry.Path), out)
	fmt.Fprintf(w, "  %s, %s [%g, %g] (%s)\n", entry.Product.Title(), s.Colormap, s.Min, s.Max, s.RangeSource)
	return nil
}
