package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/render"
	"insar-viewer/internal/utils/naming"
)

const defaultPanelSize = 450

type compareFlags struct {
	display displayFlags
	output  string
	size    int
}

type comparePanelJSON struct {
	Input    string           `json:"input"`
	Product  string           `json:"product"`
	Settings *render.Settings `json:"settings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewCompareCommand creates the "compare" command
func NewCompareCommand() *cobra.Command {
	flags := &compareFlags{}

	cmd := &cobra.Command{
		Use:   "compare <file.tif>...",
		Short: "Render up to four products side by side",
		Long: `Render one to four GeoTIFFs into a comparison grid: one row for one or
two products, 2x2 for three or four. A product that fails to open is
drawn as an error panel and does not stop the others.

Examples:
  insar-render compare S1_unw_phase.tif S1_corr.tif S1_amp.tif S1_vert_disp.tif`,
		Args: withUsage(cobra.RangeArgs(1, render.MaxPanels)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.OutOrStdout(), args, flags)
		},
	}
	flags.display.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output PNG path (default comparison_{products}_{n}panels.png)")
	cmd.Flags().IntVar(&flags.size, "size", defaultPanelSize, "Panel width and height in pixels")
	return cmd
}

func runCompare(w io.Writer, paths []string, flags *compareFlags) error {
	if flags.size < 64 {
		return usageError("--size must be at least 64")
	}
	opts, err := flags.display.options()
	if err != nil {
		return err
	}

	entries := make([]catalog.Entry, len(paths))
	keys := make([]string, len(paths))
	for i, p := range paths {
		if entries[i], err = newEntry(p, flags.display.product); err != nil {
			return err
		}
		keys[i] = entries[i].Product.String()
	}

	cmp, err := render.Compare(entries, opts)
	if err != nil {
		return err
	}

	out := flags.output
	if out == "" {
		out = naming.ComparisonFilename(keys)
	}
	grid := cmp.Compose(flags.size)
	if err := render.SaveFile(out, func(fw io.Writer) error { return render.WritePNG(fw, grid) }); err != nil {
		return err
	}

	if err := printCompareResult(w, cmp, out); err != nil {
		return err
	}
	if cmp.Succeeded() == 0 {
		return &CLIError{Code: ExitReadError, Message: "no product could be rendered", Err: cmp.Panels[0].Err}
	}
	return nil
}

func printCompareResult(w io.Writer, cmp *render.Comparison, out string) error {
	if IsJSONOutput() {
		panels := make([]comparePanelJSON, len(cmp.Panels))
		for i, p := range cmp.Panels {
			panels[i] = comparePanelJSON{Input: p.Entry.Path, Product: p.Entry.Product.String()}
			if p.Failed() {
				panels[i].Error = p.Err.Error()
			} else {
				s := p.Rendered.Settings
				panels[i].Settings = &s
			}
		}
		return writeJSON(w, struct {
			Output string             `json:"output"`
			Panels []comparePanelJSON `json:"panels"`
		}{out, panels})
	}

	cols, rows := render.GridShape(len(cmp.Panels))
	fmt.Fprintf(w, "%dx%d grid → %s\n", cols, rows, out)
	for _, p := range cmp.Panels {
		if p.Failed() {
			fmt.Fprintf(w, "  FAILED %-40s %v\n", p.Entry.Name, p.Err)
			continue
		}
		st := p.Rendered.Settings
		fmt.Fprintf(w, "  ok     %-40s %s [%g, %g]\n", p.Entry.Name, st.Colormap, st.Min, st.Max)
	}
	return nil
}
