package main

import (
	"embed"
	"os"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"insar-viewer/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

// isDevMode detects if running in development mode
// Production builds will have embedded assets, dev mode uses live server
func isDevMode() bool {
	// Check if running with `wails dev` by looking for common dev indicators
	// In dev mode, Wails serves from localhost:34115 (or similar)
	return os.Getenv("WAILS_DEV_SERVER") != "" || os.Getenv("FRONTEND_DEVSERVER_URL") != ""
}

func main() {
	// Set DEV_MODE=1 environment variable when running in development
	devMode := os.Getenv("DEV_MODE") == "1" || isDevMode()

	logCfg := logging.DefaultConfig()
	logCfg.File = true
	logCfg.Console = devMode
	if devMode {
		logCfg.Level = zerolog.DebugLevel
	}
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		println("Error:", err.Error())
	}
	defer closeLog()

	// Create an instance of the app structure
	app := NewApp()
	app.devMode = devMode

	// Create application with options
	err = wails.Run(&options.App{
		Title:     "InSAR Viewer",
		Width:     1280,
		Height:    860,
		MinWidth:  900,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 26, G: 26, B: 46, A: 1},
		Logger:           logging.NewWailsLogger(logger),
		LogLevel:         logging.WailsLevel(logCfg.Level),
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		logger.Error().Err(err).Msg("application exited with error")
		println("Error:", err.Error())
	}
}
