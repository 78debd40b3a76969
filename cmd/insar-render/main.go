// Command insar-render scans, renders and exports InSAR GeoTIFF products
// without the desktop shell.
package main

import (
	"insar-viewer/internal/cli"
)

// Set at build time via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
