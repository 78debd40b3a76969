// Package cli implements insar-render, the headless counterpart of the
// desktop viewer: scan a product folder, render figures and comparison
// grids, print band statistics and export rasters.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"insar-viewer/internal/logging"
)

// Global flags, bound to persistent flags on the root command
var (
	jsonOutput bool
	verbose    bool
)

// Build information, injected from main
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates the root command with every subcommand registered
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insar-render",
		Short: "Inspect and render InSAR GeoTIFF products",
		Long: `insar-render classifies the GeoTIFFs in an InSAR product folder
(wrapped and unwrapped phase, coherence, amplitude, DEM, displacement,
incidence and azimuth) and renders them with product-appropriate colormaps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			cfg.Level = zerolog.WarnLevel
			if verbose {
				cfg.Level = zerolog.DebugLevel
			}
			_, _, err := logging.Setup(cfg)
			return err
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &CLIError{Code: ExitUsage, Message: err.Error()}
	})

	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewTimeSeriesCommand())
	rootCmd.AddCommand(NewServeCommand())

	return rootCmd
}

// Execute runs rootCmd and exits the process with the mapped exit code
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(int(ExitCodeOf(err)))
	}
}

func printError(w io.Writer, err error) {
	if jsonOutput {
		obj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": err.Error(),
				"code":    int(ExitCodeOf(err)),
			},
		}
		data, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// IsJSONOutput reports whether --json is set
func IsJSONOutput() bool {
	return jsonOutput
}
