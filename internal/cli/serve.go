package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"insar-viewer/internal/handlers/previewserver"
)

type serveFlags struct {
	addr       string
	recursive  bool
	figureSize int
	panelSize  int
}

// NewServeCommand creates the "serve" command
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve <folder|bundle.zip>",
		Short: "Serve a product folder over HTTP",
		Long: `Scan a folder and serve its catalog, rendered figures, comparison grids
and pixel readouts over HTTP until interrupted.

Routes:
  GET /catalog                 catalog entries as JSON
  GET /render/{index}          figure PNG (?size=N, ?raw=1)
  GET /compare?i=0,1           comparison grid PNG
  GET /readout/{index}?x=&y=   pixel value and coordinate as JSON

Examples:
  insar-render serve ./products --addr 127.0.0.1:8089`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:0", "Listen address")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().IntVar(&flags.figureSize, "figure-size", previewserver.DefaultFigureSize, "Default figure size in pixels")
	cmd.Flags().IntVar(&flags.panelSize, "panel-size", previewserver.DefaultPanelSize, "Default comparison panel size in pixels")
	return cmd
}

func runServe(ctx context.Context, w io.Writer, dir string, flags *serveFlags) error {
	sess, entries, err := openInput(dir, flags.recursive)
	if err != nil {
		return err
	}
	defer sess.Cleanup()

	srv := previewserver.NewServer(sess, flags.figureSize, flags.panelSize)
	if err := srv.StartOn(flags.addr); err != nil {
		return err
	}

	if IsJSONOutput() {
		if err := writeJSON(w, map[string]interface{}{"url": srv.GetURL(), "files": len(entries)}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Serving %d files from %s at %s\n", len(entries), dir, srv.GetURL())
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
