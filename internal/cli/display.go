package cli

import (
	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/render"
)

// displayFlags are the colormap and range overrides shared by render,
// compare and export
type displayFlags struct {
	product  string
	colormap string
	min      string
	max      string
	low      float64
	high     float64
}

func (f *displayFlags) register(cmd *cobra.Command) {
	registerProductFlag(cmd, &f.product)
	cmd.Flags().StringVarP(&f.colormap, "colormap", "c", "auto", "Colormap name, or auto for the product default")
	cmd.Flags().StringVar(&f.min, "min", "auto", "Lower bound of the value range")
	cmd.Flags().StringVar(&f.max, "max", "auto", "Upper bound of the value range")
	cmd.Flags().Float64Var(&f.low, "low-percentile", 0, "Lower percentile of the automatic stretch (default 2)")
	cmd.Flags().Float64Var(&f.high, "high-percentile", 0, "Upper percentile of the automatic stretch (default 98)")
}

func (f *displayFlags) options() (render.Options, error) {
	min, err := render.ParseBound(f.min)
	if err != nil {
		return render.Options{}, usageError("invalid --min: %v", err)
	}
	max, err := render.ParseBound(f.max)
	if err != nil {
		return render.Options{}, usageError("invalid --max: %v", err)
	}
	opts := render.Options{
		Colormap:       f.colormap,
		Min:            min,
		Max:            max,
		LowPercentile:  f.low,
		HighPercentile: f.high,
	}
	if err := opts.Validate(); err != nil {
		return render.Options{}, &CLIError{Code: ExitUsage, Message: "invalid display options", Err: err}
	}
	return opts, nil
}

func registerProductFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVarP(p, "product", "p", "", "Product type to use instead of the one inferred from the file name")
}

// newEntry classifies path, or forces the product given by key
func newEntry(path, key string) (catalog.Entry, error) {
	entry := catalog.NewEntry(path)
	if key == "" {
		return entry, nil
	}
	product, err := catalog.ParseProductType(key)
	if err != nil {
		return entry, &CLIError{Code: ExitUsage, Message: "invalid --product", Err: err}
	}
	entry.Product = product
	entry.Label = catalog.Label(product, entry.Name)
	return entry, nil
}
