package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"insar-viewer/internal/analysis"
	"insar-viewer/internal/catalog"
	"insar-viewer/internal/common"
	"insar-viewer/internal/logging"
)

type timeSeriesFlags struct {
	product   string
	points    []string
	reference string
	recursive bool
}

// NewTimeSeriesCommand creates the "timeseries" command
func NewTimeSeriesCommand() *cobra.Command {
	flags := &timeSeriesFlags{}

	cmd := &cobra.Command{
		Use:   "timeseries <folder|bundle.zip>",
		Short: "Sample displacement over time at pixel locations",
		Long: `Read every dated displacement raster in a folder and print the value at
each point, ordered by secondary acquisition date. With --reference the
reference pixel's value is subtracted from every sample of the same raster.
The summary gives the total change and the least-squares velocity.

Points are pixel columns and rows, written name=x,y or x,y.

Examples:
  insar-render timeseries ./stack --point well=120,88 --point 40,12
  insar-render timeseries ./stack -p los_disp --point A=10,10 --reference ref=0,0 --json`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeSeries(cmd.OutOrStdout(), args[0], flags)
		},
	}
	cmd.Flags().StringVarP(&flags.product, "product", "p", catalog.VerticalDisplacement.String(), "Displacement product to sample")
	cmd.Flags().StringArrayVar(&flags.points, "point", nil, fmt.Sprintf("Pixel to sample, name=x,y (repeatable, up to %d)", analysis.MaxPoints))
	cmd.Flags().StringVar(&flags.reference, "reference", "", "Reference pixel subtracted from every sample, name=x,y")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	return cmd
}

func (f *timeSeriesFlags) parse() (catalog.ProductType, []analysis.Point, *analysis.Point, error) {
	product, err := catalog.ParseProductType(f.product)
	if err != nil {
		return product, nil, nil, &CLIError{Code: ExitUsage, Message: "invalid --product", Err: err}
	}
	if !analysis.IsDisplacement(product) {
		return product, nil, nil, usageError("--product must be %s or %s", catalog.Displacement, catalog.VerticalDisplacement)
	}
	if len(f.points) == 0 {
		return product, nil, nil, usageError("at least one --point is required")
	}
	if len(f.points) > analysis.MaxPoints {
		return product, nil, nil, usageError("at most %d points, got %d", analysis.MaxPoints, len(f.points))
	}
	points := make([]analysis.Point, len(f.points))
	for i, s := range f.points {
		p, err := analysis.ParsePoint(s, i)
		if err != nil {
			return product, nil, nil, usageError("%v", err)
		}
		points[i] = p
	}
	var ref *analysis.Point
	if f.reference != "" {
		p, err := analysis.ParsePoint(f.reference, 0)
		if err != nil {
			return product, nil, nil, usageError("invalid --reference: %v", err)
		}
		if !strings.Contains(f.reference, "=") {
			p.Name = "ref"
		}
		ref = &p
	}
	return product, points, ref, nil
}

func runTimeSeries(w io.Writer, path string, flags *timeSeriesFlags) error {
	product, points, ref, err := flags.parse()
	if err != nil {
		return err
	}
	sess, _, err := openInput(path, flags.recursive)
	if err != nil {
		return err
	}
	defer sess.Cleanup()

	res, err := sess.TimeSeries(product, points, ref)
	if err != nil {
		return usageError("%v", err)
	}
	logger := logging.Component("cli")
	logger.Debug().Str("input", path).Int("files", res.Files).Msg("time series sampled")

	if IsJSONOutput() {
		return writeJSON(w, res)
	}
	printTimeSeriesText(w, res)
	return nil
}

// printTimeSeriesText prints one block per point:
//
//	A (120, 88)
//	  Jan 13, 2023   -0.012300 m   S1_..._vert_disp.tif
//	  change -0.012300 m, velocity -0.3742 m/yr
func printTimeSeriesText(w io.Writer, res *analysis.Result) {
	if res.Files == 0 {
		fmt.Fprintf(w, "No readable dated %s files found.\n", res.Product)
	} else {
		fmt.Fprintf(w, "%s, %d files", res.Product.Title(), res.Files)
		if res.Reference != nil {
			fmt.Fprintf(w, ", relative to %s (%d, %d)", res.Reference.Name, res.Reference.X, res.Reference.Y)
		}
		fmt.Fprintln(w)
	}

	for _, s := range res.Series {
		fmt.Fprintf(w, "\n%s (%d, %d)\n", s.Point.Name, s.Point.X, s.Point.Y)
		if len(s.Samples) == 0 {
			fmt.Fprintln(w, "  no valid samples")
			continue
		}
		for _, smp := range s.Samples {
			fmt.Fprintf(w, "  %-14s %10.6f m   %s\n", common.FormatDisplay(smp.Date), smp.Value, smp.File)
		}
		fmt.Fprintf(w, "  change %.6f m", *s.Change)
		if s.Velocity != nil {
			fmt.Fprintf(w, ", velocity %.4f m/yr", *s.Velocity)
		}
		fmt.Fprintln(w)
	}

	for _, sk := range res.Skipped {
		fmt.Fprintf(w, "\nskipped %s: %s", sk.File, sk.Reason)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintln(w)
	}
}
