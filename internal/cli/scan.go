package cli

import (
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/common"
	"insar-viewer/internal/logging"
)

type scanFlags struct {
	recursive bool
}

// NewScanCommand creates the "scan" command
func NewScanCommand() *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan <folder|bundle.zip>",
		Short: "List and classify the GeoTIFFs in a product folder",
		Long: `List the GeoTIFFs in a folder with the product type inferred from each
file name. Files that match no known pattern are listed as unknown.
A ZIP bundle is extracted to a temporary folder first.

Examples:
  insar-render scan ./S1AA_20230101T120000_20230113T120000_VVP012
  insar-render scan --recursive --json ./products
  insar-render scan S1AA_20230101T120000_20230113T120000_VVP012.zip`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.OutOrStdout(), args[0], flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	return cmd
}

func runScan(w io.Writer, dir string, flags *scanFlags) error {
	sess, entries, err := openInput(dir, flags.recursive)
	if err != nil {
		return err
	}
	defer sess.Cleanup()
	logger := logging.Component("cli")
	logger.Debug().Str("folder", dir).Int("files", len(entries)).Msg("scan complete")

	if IsJSONOutput() {
		return writeJSON(w, struct {
			Folder  string          `json:"folder"`
			Entries []catalog.Entry `json:"entries"`
		}{dir, entries})
	}
	printScanText(w, entries)
	return nil
}

// printScanText prints one line per file:
//
//	PRODUCT           NAME                                PAIR
//	unwrapped_phase   S1_..._unw_phase.tif                Jan 01, 2023 → Jan 13, 2023 (12d)
func printScanText(w io.Writer, entries []catalog.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No GeoTIFF files found.")
		return
	}
	fmt.Fprintf(w, "%-17s %-40s %s\n", "PRODUCT", "NAME", "PAIR")
	for _, e := range entries {
		fmt.Fprintf(w, "%-17s %-40s %s\n", e.Product, e.Name, FormatEntryPair(e))
	}

	counts := lo.CountValuesBy(entries, func(e catalog.Entry) catalog.ProductType { return e.Product })
	fmt.Fprintf(w, "\n%d files", len(entries))
	if n := counts[catalog.Unknown]; n > 0 {
		fmt.Fprintf(w, ", %d unrecognized", n)
	}
	fmt.Fprintln(w)
}

// FormatEntryPair renders the acquisition pair of e, or "-" when the name has none
func FormatEntryPair(e catalog.Entry) string {
	if e.Reference == nil || e.Secondary == nil {
		return "-"
	}
	return common.FormatPair(*e.Reference, *e.Secondary)
}
