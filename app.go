package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"insar-viewer/internal/analysis"
	"insar-viewer/internal/catalog"
	"insar-viewer/internal/common"
	"insar-viewer/internal/config"
	"insar-viewer/internal/handlers/previewserver"
	"insar-viewer/internal/logging"
	"insar-viewer/internal/render"
	"insar-viewer/internal/session"
	"insar-viewer/internal/telemetry"
	"insar-viewer/internal/utils/naming"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Frontend event names
const (
	EventCatalogLoaded  = "catalog-loaded"
	EventStatus         = "status"
	EventExportComplete = "export-complete"
)

// CatalogResult is the open folder as shown in the file list
type CatalogResult struct {
	Folder string `json:"folder"`
	// Archive is the ZIP bundle Folder was extracted from, if any
	Archive string          `json:"archive,omitempty"`
	Entries []catalog.Entry `json:"entries"`
	Unknown int             `json:"unknown"`
}

// RenderResult describes a rendered product. The image itself is served by
// the preview server at ImageURL.
type RenderResult struct {
	Index    int             `json:"index"`
	Entry    catalog.Entry   `json:"entry"`
	Settings render.Settings `json:"settings"`
	Summary  string          `json:"summary"`
	Pair     string          `json:"pair,omitempty"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	HasGeo   bool            `json:"hasGeo"`
	CRS      string          `json:"crs,omitempty"`
	ImageURL string          `json:"imageUrl"`
	RawURL   string          `json:"rawUrl"`
}

// PanelResult is one cell of a comparison
type PanelResult struct {
	Entry    catalog.Entry    `json:"entry"`
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Settings *render.Settings `json:"settings,omitempty"`
}

// CompareResult is a composed comparison grid, inlined as a PNG data URL
type CompareResult struct {
	Panels    []PanelResult `json:"panels"`
	Cols      int           `json:"cols"`
	Rows      int           `json:"rows"`
	ImageData string        `json:"imageData"`
}

// ProductInfo describes a product type for the legend
type ProductInfo struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Unit     string   `json:"unit"`
	Colormap string   `json:"colormap"`
	Patterns []string `json:"patterns"`
}

// App struct
type App struct {
	ctx       context.Context
	settings  *config.UserSettings
	session   *session.Session
	preview   *previewserver.Server
	telemetry *telemetry.Client
	logger    zerolog.Logger
	mu        sync.Mutex
	devMode   bool // Emit status events for every render in dev mode
}

// NewApp creates a new App application struct
func NewApp() *App {
	logger := logging.Component("app")

	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		settings = config.DefaultSettings()
	}
	logger.Info().Str("path", config.GetSettingsPath()).Msg("settings loaded")

	sess := session.New(catalog.ScanOptions{Recursive: settings.RecursiveScan})
	if err := sess.SetOverrides(overridesFromSettings(settings)); err != nil {
		logger.Warn().Err(err).Msg("ignoring invalid display defaults in settings")
	}

	tc, err := telemetry.New(PostHogKey, PostHogHost, settings.InstallID, settings.DisableAnalytics)
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry disabled")
	}

	return &App{
		settings:  settings,
		session:   sess,
		preview:   previewserver.NewServer(sess, settings.FigureSize, settings.PanelSize),
		telemetry: tc,
		logger:    logger,
	}
}

func overridesFromSettings(s *config.UserSettings) render.Options {
	return render.Options{
		Colormap:       s.DefaultColormap,
		LowPercentile:  s.LowPercentile,
		HighPercentile: s.HighPercentile,
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if err := a.preview.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start preview server: %v", err))
	} else {
		wailsRuntime.LogInfo(ctx, fmt.Sprintf("Preview server started on %s", a.preview.GetURL()))
	}

	// Reopen the last folder in the background
	a.mu.Lock()
	last := a.settings.LastFolder
	a.mu.Unlock()
	if last != "" {
		go func() {
			if _, err := a.ScanFolder(last); err != nil {
				wailsRuntime.LogWarning(ctx, fmt.Sprintf("Could not reopen %s: %v", last, err))
			}
		}()
	}

	a.telemetry.Track(telemetry.EventAppStarted, map[string]interface{}{
		"version": a.GetAppVersion(),
	})
}

// shutdown cleans up resources
func (a *App) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.preview.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("preview server shutdown")
	}
	if err := a.telemetry.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("telemetry flush")
	}
	a.session.Cleanup()
}

// emitStatus sends a status bar message to the frontend
func (a *App) emitStatus(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	a.logger.Debug().Msg(msg)
	if a.ctx != nil {
		wailsRuntime.EventsEmit(a.ctx, EventStatus, msg)
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetPreviewURL returns the base URL of the local preview server
func (a *App) GetPreviewURL() string {
	return a.preview.GetURL()
}

// ===================
// Catalog
// ===================

// SelectFolder opens a folder picker and scans the chosen folder.
// Cancelling the dialog returns nil without error.
func (a *App) SelectFolder() (*CatalogResult, error) {
	a.mu.Lock()
	def := a.settings.LastFolder
	a.mu.Unlock()

	path, err := wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Select InSAR Product Folder",
		DefaultDirectory: def,
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	return a.ScanFolder(path)
}

// SelectArchive opens a file picker for a zipped product bundle and opens it.
// Cancelling the dialog returns nil without error.
func (a *App) SelectArchive() (*CatalogResult, error) {
	a.mu.Lock()
	def := filepath.Dir(a.settings.LastFolder)
	a.mu.Unlock()

	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Select InSAR Product Bundle",
		DefaultDirectory: def,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "ZIP Archives (*.zip)", Pattern: "*.zip"},
		},
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	return a.ScanFolder(path)
}

// ScanFolder opens folder as the current catalog and remembers it.
// A ZIP bundle is extracted to a temporary folder first.
func (a *App) ScanFolder(folder string) (*CatalogResult, error) {
	var (
		entries []catalog.Entry
		err     error
	)
	if catalog.IsArchive(folder) {
		entries, err = a.session.OpenArchive(folder)
	} else {
		entries, err = a.session.Open(folder)
	}
	if err != nil {
		return nil, err
	}
	return a.catalogLoaded(folder, entries), nil
}

// RescanFolder re-reads the open folder
func (a *App) RescanFolder() (*CatalogResult, error) {
	entries, err := a.session.Rescan()
	if err != nil {
		return nil, err
	}
	source := a.session.Archive()
	if source == "" {
		source = a.session.Folder()
	}
	return a.catalogLoaded(source, entries), nil
}

func (a *App) catalogLoaded(source string, entries []catalog.Entry) *CatalogResult {
	a.mu.Lock()
	a.settings.AddRecentFolder(source)
	if err := config.SaveSettings(a.settings); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save recent folders")
	}
	a.mu.Unlock()

	result := newCatalogResult(a.session.Folder(), a.session.Archive(), entries)
	a.emitStatus("Loaded %d files from %s", len(entries), filepath.Base(source))
	if a.ctx != nil {
		wailsRuntime.EventsEmit(a.ctx, EventCatalogLoaded, result)
	}
	a.telemetry.Track(telemetry.EventFolderScanned, map[string]interface{}{
		"files":   len(entries),
		"unknown": result.Unknown,
		"archive": result.Archive != "",
	})
	return result
}

// SetRecursiveScan changes whether folders are scanned recursively
func (a *App) SetRecursiveScan(recursive bool) error {
	a.session.SetRecursive(recursive)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings.RecursiveScan = recursive
	return config.SaveSettings(a.settings)
}

// GetCatalog returns the current catalog
func (a *App) GetCatalog() *CatalogResult {
	return newCatalogResult(a.session.Folder(), a.session.Archive(), a.session.Entries())
}

func newCatalogResult(folder, archive string, entries []catalog.Entry) *CatalogResult {
	unknown := lo.CountBy(entries, func(e catalog.Entry) bool { return e.Product == catalog.Unknown })
	return &CatalogResult{Folder: folder, Archive: archive, Entries: entries, Unknown: unknown}
}

// GetProductTypes lists every product type with its default colormap
func (a *App) GetProductTypes() []ProductInfo {
	products := catalog.AllProducts()
	out := make([]ProductInfo, len(products))
	for i, p := range products {
		out[i] = ProductInfo{
			Key:      p.String(),
			Title:    p.Title(),
			Unit:     p.Unit(),
			Colormap: render.DefaultColormap(p),
			Patterns: catalog.Patterns(p),
		}
	}
	return out
}

// ===================
// Rendering
// ===================

// RenderProduct renders catalog entry index as the current product
func (a *App) RenderProduct(index int) (*RenderResult, error) {
	r, err := a.session.Render(index)
	if err != nil {
		a.telemetry.Track(telemetry.EventRenderFailed, map[string]interface{}{"error": fmt.Sprintf("%T", err)})
		return nil, err
	}

	base := a.preview.GetURL()
	result := &RenderResult{
		Index:    index,
		Entry:    r.Entry,
		Settings: r.Settings,
		Summary:  r.Summary(),
		Width:    r.Raster.Width,
		Height:   r.Raster.Height,
		HasGeo:   r.Readout != nil,
		CRS:      r.Raster.CRS,
		ImageURL: fmt.Sprintf("%s/render/%d", base, index),
		RawURL:   fmt.Sprintf("%s/render/%d?raw=1", base, index),
	}
	if r.Entry.Reference != nil && r.Entry.Secondary != nil {
		result.Pair = common.FormatPair(*r.Entry.Reference, *r.Entry.Secondary)
	}

	if a.devMode {
		a.emitStatus("Rendered %s with %s [%g, %g]", r.Entry.Name, r.Settings.Colormap, r.Settings.Min, r.Settings.Max)
	}
	a.telemetry.Track(telemetry.EventProductRender, map[string]interface{}{
		"product":  r.Entry.Product.String(),
		"colormap": r.Settings.Colormap,
	})
	return result, nil
}

// CompareProducts renders up to four entries into a grid. Entries that fail
// to open are reported per panel; the call itself only fails on bad input.
func (a *App) CompareProducts(indices []int) (*CompareResult, error) {
	cmp, err := a.session.Compare(indices)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	size := a.settings.PanelSize
	a.mu.Unlock()

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, cmp.Compose(size)); err != nil {
		return nil, err
	}

	cols, rows := render.GridShape(len(cmp.Panels))
	result := &CompareResult{
		Panels:    make([]PanelResult, len(cmp.Panels)),
		Cols:      cols,
		Rows:      rows,
		ImageData: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	for i, p := range cmp.Panels {
		result.Panels[i] = PanelResult{Entry: p.Entry, OK: !p.Failed()}
		if p.Failed() {
			result.Panels[i].Error = p.Err.Error()
		} else {
			s := p.Rendered.Settings
			result.Panels[i].Settings = &s
		}
	}

	failed := len(cmp.Panels) - cmp.Succeeded()
	if failed > 0 {
		a.emitStatus("%d of %d panels could not be rendered", failed, len(cmp.Panels))
	}
	a.telemetry.Track(telemetry.EventComparison, map[string]interface{}{
		"panels": len(cmp.Panels),
		"failed": failed,
	})
	return result, nil
}

// ActivatePanel adds an entry to the comparison panels
func (a *App) ActivatePanel(index int) error {
	return a.session.Activate(index)
}

// ClosePanel removes an entry from the comparison panels
func (a *App) ClosePanel(index int) {
	a.session.Close(index)
}

// GetActivePanels returns the active comparison panel indices
func (a *App) GetActivePanels() []int {
	return a.session.Active()
}

// CompareActivePanels renders the active comparison panels
func (a *App) CompareActivePanels() (*CompareResult, error) {
	return a.CompareProducts(a.session.Active())
}

// GetPixelInfo returns the value and map coordinate under the pointer
func (a *App) GetPixelInfo(index, x, y int) (*previewserver.ReadoutResponse, error) {
	info, err := a.session.Readout(index, x, y)
	if err != nil {
		return nil, err
	}
	resp := previewserver.NewReadoutResponse(info.Entry.Product, info.Readout)
	return &resp, nil
}

// GetTimeSeries samples every dated raster of a displacement product at
// points, relative to ref when it is set
func (a *App) GetTimeSeries(product string, points []analysis.Point, ref *analysis.Point) (*analysis.Result, error) {
	p, err := catalog.ParseProductType(product)
	if err != nil {
		return nil, err
	}
	res, err := a.session.TimeSeries(p, points, ref)
	if err != nil {
		return nil, err
	}
	a.emitStatus("Sampled %d points across %d files", len(points), res.Files)
	a.telemetry.Track(telemetry.EventTimeSeries, map[string]interface{}{
		"product":   p.String(),
		"points":    len(points),
		"files":     res.Files,
		"reference": ref != nil,
	})
	return res, nil
}

// GetColormaps lists the selectable colormaps
func (a *App) GetColormaps() []string {
	return render.ColormapNames()
}

// SetDisplayOverrides sets the colormap and value range applied to every
// render. colormap "auto" and empty bounds restore the product defaults.
func (a *App) SetDisplayOverrides(colormap, lower, upper string) error {
	minBound, err := render.ParseBound(lower)
	if err != nil {
		return err
	}
	maxBound, err := render.ParseBound(upper)
	if err != nil {
		return err
	}

	a.mu.Lock()
	opts := overridesFromSettings(a.settings)
	a.mu.Unlock()
	opts.Colormap = colormap
	opts.Min = minBound
	opts.Max = maxBound
	return a.session.SetOverrides(opts)
}

// GetDisplayOverrides returns the overrides applied to every render
func (a *App) GetDisplayOverrides() render.Options {
	return a.session.Overrides()
}

// ===================
// Export
// ===================

// SaveImage saves the rendered figure of an entry as PNG
func (a *App) SaveImage(index int) (string, error) {
	a.mu.Lock()
	size := a.settings.FigureSize
	a.mu.Unlock()
	return a.exportProduct(index, "png", "PNG Image (*.png)", "*.png", func(r *render.Rendered, w io.Writer) error {
		return render.WritePNG(w, render.Figure(r, size))
	})
}

// ExportCSV saves the raw band values of an entry as a CSV matrix
func (a *App) ExportCSV(index int) (string, error) {
	return a.exportProduct(index, "csv", "CSV (*.csv)", "*.csv", func(r *render.Rendered, w io.Writer) error {
		return render.WriteCSV(w, r.Raster)
	})
}

// ExportGeoTIFF saves the band of an entry as a float32 GeoTIFF
func (a *App) ExportGeoTIFF(index int) (string, error) {
	return a.exportProduct(index, "tif", "GeoTIFF (*.tif)", "*.tif;*.tiff", func(r *render.Rendered, w io.Writer) error {
		return render.WriteGeoTIFF(w, r.Raster)
	})
}

// ExportColorGeoTIFF saves the colorized render of an entry as an RGBA GeoTIFF
func (a *App) ExportColorGeoTIFF(index int) (string, error) {
	return a.exportProduct(index, "tif", "GeoTIFF (*.tif)", "*.tif;*.tiff", func(r *render.Rendered, w io.Writer) error {
		return render.WriteColorGeoTIFF(w, r)
	})
}

// SaveComparison saves the comparison grid of the given entries as PNG
func (a *App) SaveComparison(indices []int) (string, error) {
	cmp, err := a.session.Compare(indices)
	if err != nil {
		return "", err
	}
	keys := make([]string, len(cmp.Panels))
	for i, p := range cmp.Panels {
		keys[i] = p.Entry.Product.String()
	}

	a.mu.Lock()
	size := a.settings.PanelSize
	a.mu.Unlock()

	path, err := a.saveDialog("Save Comparison", naming.ComparisonFilename(keys), "PNG Image (*.png)", "*.png")
	if err != nil || path == "" {
		return "", err
	}
	grid := cmp.Compose(size)
	if err := render.SaveFile(path, func(w io.Writer) error { return render.WritePNG(w, grid) }); err != nil {
		return "", err
	}
	a.exportDone(path, "comparison")
	return path, nil
}

func (a *App) exportProduct(index int, ext, filterName, pattern string, write func(*render.Rendered, io.Writer) error) (string, error) {
	r, err := a.session.View(index)
	if err != nil {
		return "", err
	}
	name := naming.ExportFilename(r.Entry.Product.String(), r.Entry.Name, ext)
	path, err := a.saveDialog("Export "+r.Entry.Product.Title(), name, filterName, pattern)
	if err != nil || path == "" {
		return "", err
	}
	if err := render.SaveFile(path, func(w io.Writer) error { return write(r, w) }); err != nil {
		return "", err
	}
	a.exportDone(path, ext)
	return path, nil
}

// saveDialog asks for an output path in the export folder. "" means cancelled.
func (a *App) saveDialog(title, filename, filterName, pattern string) (string, error) {
	a.mu.Lock()
	dir := a.settings.ExportPath
	a.mu.Unlock()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export folder: %w", err)
	}

	return wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            title,
		DefaultDirectory: dir,
		DefaultFilename:  filename,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: filterName, Pattern: pattern},
		},
	})
}

func (a *App) exportDone(path, format string) {
	a.emitStatus("Saved %s", filepath.Base(path))
	wailsRuntime.EventsEmit(a.ctx, EventExportComplete, path)
	a.telemetry.Track(telemetry.EventExport, map[string]interface{}{"format": format})

	a.mu.Lock()
	open := a.settings.AutoOpenExportDir
	a.mu.Unlock()
	if open {
		if err := a.OpenFolder(filepath.Dir(path)); err != nil {
			a.logger.Warn().Err(err).Msg("failed to open export folder")
		}
	}
}

// OpenExportFolder opens the export folder in the system file manager
func (a *App) OpenExportFolder() error {
	a.mu.Lock()
	dir := a.settings.ExportPath
	a.mu.Unlock()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return a.OpenFolder(dir)
}

// OpenFolder opens a specific folder in the OS file explorer
func (a *App) OpenFolder(path string) error {
	// Verify the path exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("folder does not exist: %s", path)
	}

	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default: // Linux and others
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
