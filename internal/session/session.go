// Package session holds the state of one viewing session: the open folder,
// its catalog, the active comparison panels and the display overrides.
package session

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"insar-viewer/internal/analysis"
	"insar-viewer/internal/catalog"
	"insar-viewer/internal/logging"
	"insar-viewer/internal/raster"
	"insar-viewer/internal/render"
)

// ErrNoFolder is returned by operations that need an open folder
var ErrNoFolder = errors.New("no folder is open")

// ErrPanelsFull is returned by Activate when MaxPanels panels are already active
var ErrPanelsFull = fmt.Errorf("at most %d panels can be active", render.MaxPanels)

// IndexError reports a catalog index outside the current entries
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("catalog index %d out of range (have %d entries)", e.Index, e.Len)
}

// Session is safe for concurrent use. Renders run outside the lock on a
// snapshot of the entry and overrides; a render finishing after Open or
// SetOverrides is returned to its caller but never becomes current.
type Session struct {
	mu     sync.RWMutex
	folder string
	// archive is the ZIP the folder was extracted from; the session owns
	// the extracted folder and removes it on the next Open or Cleanup
	archive   string
	entries   []catalog.Entry
	active    []int
	overrides render.Options
	scan      catalog.ScanOptions
	// current is the last successful single render, kept for pointer readouts
	current      *render.Rendered
	currentIndex int
	// generation changes whenever the catalog or overrides are replaced
	generation uint64
	logger     zerolog.Logger

	// beforeInstall runs between a render and its install as current
	beforeInstall func()
}

// PixelInfo is a readout together with the entry it was read from
type PixelInfo struct {
	Entry   catalog.Entry
	Readout raster.Readout
}

// New creates an empty session
func New(scan catalog.ScanOptions) *Session {
	return &Session{
		entries: []catalog.Entry{},
		scan:    scan,
		logger:  logging.Component("session"),
	}
}

// Open scans folder and replaces the catalog. Active panels are cleared.
// On failure the previous catalog is kept.
func (s *Session) Open(folder string) ([]catalog.Entry, error) {
	return s.open(folder, "")
}

// OpenArchive extracts the GeoTIFFs of a ZIP archive into a temporary
// folder and opens it. The folder lives until the next Open or Cleanup.
func (s *Session) OpenArchive(zipPath string) ([]catalog.Entry, error) {
	dir, err := os.MkdirTemp("", "insar-viewer-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction folder: %w", err)
	}
	names, err := catalog.ExtractArchive(zipPath, dir)
	if err != nil {
		os.RemoveAll(dir)
		s.logger.Warn().Err(err).Str("archive", zipPath).Msg("extraction failed")
		return nil, err
	}
	s.logger.Info().Str("archive", zipPath).Int("files", len(names)).Msg("archive extracted")

	entries, err := s.open(dir, zipPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return entries, nil
}

func (s *Session) open(folder, archive string) ([]catalog.Entry, error) {
	entries, err := catalog.ScanWithOptions(folder, s.scanOptions())
	if err != nil {
		s.logger.Warn().Err(err).Str("folder", folder).Msg("scan failed")
		return nil, err
	}

	s.mu.Lock()
	stale := s.extractedLocked()
	if stale == folder {
		stale = ""
	}
	s.folder = folder
	s.archive = archive
	s.entries = entries
	s.active = nil
	s.current = nil
	s.generation++
	s.mu.Unlock()
	if stale != "" {
		os.RemoveAll(stale)
	}

	s.logger.Info().Str("folder", folder).Int("entries", len(entries)).
		Int("unknown", lo.CountBy(entries, func(e catalog.Entry) bool { return e.Product == catalog.Unknown })).
		Msg("catalog loaded")
	return cloneEntries(entries), nil
}

// extractedLocked returns the session-owned extraction folder, if any
func (s *Session) extractedLocked() string {
	if s.archive == "" {
		return ""
	}
	return s.folder
}

// Archive returns the ZIP the open folder was extracted from, "" otherwise
func (s *Session) Archive() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archive
}

// Cleanup removes the extraction folder of an opened archive. The catalog
// stays listed but its files are gone.
func (s *Session) Cleanup() {
	s.mu.Lock()
	dir := s.extractedLocked()
	s.archive = ""
	s.current = nil
	s.generation++
	s.mu.Unlock()
	if dir != "" {
		os.RemoveAll(dir)
	}
}

// Rescan re-reads the open folder
func (s *Session) Rescan() ([]catalog.Entry, error) {
	s.mu.RLock()
	folder, archive := s.folder, s.archive
	s.mu.RUnlock()
	if folder == "" {
		return nil, ErrNoFolder
	}
	return s.open(folder, archive)
}

// SetRecursive changes how future scans walk the folder
func (s *Session) SetRecursive(recursive bool) {
	s.mu.Lock()
	s.scan.Recursive = recursive
	s.mu.Unlock()
}

func (s *Session) scanOptions() catalog.ScanOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan
}

// Folder returns the open folder, "" before Open
func (s *Session) Folder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder
}

// Entries returns a copy of the catalog
func (s *Session) Entries() []catalog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Entry returns the catalog entry at index i
func (s *Session) Entry(i int) (catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entryLocked(i)
}

func (s *Session) entryLocked(i int) (catalog.Entry, error) {
	if i < 0 || i >= len(s.entries) {
		return catalog.Entry{}, &IndexError{Index: i, Len: len(s.entries)}
	}
	return s.entries[i], nil
}

// Find returns the index of the entry with the given file name
func (s *Session) Find(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, i, ok := lo.FindIndexOf(s.entries, func(e catalog.Entry) bool { return e.Name == name })
	return i, ok
}

// SetOverrides validates and stores display overrides for future renders.
// The current render is dropped since its settings no longer apply.
func (s *Session) SetOverrides(opts render.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.overrides = opts
	s.current = nil
	s.generation++
	s.mu.Unlock()
	return nil
}

// Overrides returns the current display overrides
func (s *Session) Overrides() render.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides
}

// Render renders entry i with the session overrides
func (s *Session) Render(i int) (*render.Rendered, error) {
	s.mu.RLock()
	entry, err := s.entryLocked(i)
	opts := s.overrides
	gen := s.generation
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	r, err := render.Render(entry, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", entry.Name).Msg("render failed")
		return nil, err
	}
	if s.beforeInstall != nil {
		s.beforeInstall()
	}
	s.mu.Lock()
	if s.generation == gen {
		s.current, s.currentIndex = r, i
	}
	s.mu.Unlock()

	s.logger.Debug().Str("file", entry.Name).Str("product", entry.Product.String()).
		Str("colormap", r.Settings.Colormap).Float64("min", r.Settings.Min).Float64("max", r.Settings.Max).
		Msg("rendered")
	return r, nil
}

// Current returns the last product rendered through Render and its index
func (s *Session) Current() (*render.Rendered, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.currentIndex, s.current != nil
}

// View returns the current render when it is entry i and renders i otherwise
func (s *Session) View(i int) (*render.Rendered, error) {
	s.mu.RLock()
	cur, idx := s.current, s.currentIndex
	entry, err := s.entryLocked(i)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if cur != nil && idx == i && cur.Entry.Path == entry.Path {
		return cur, nil
	}
	return s.Render(i)
}

// Readout describes pixel (x, y) of entry i, rendering it first unless it
// is the current product. The returned entry is the one the render read.
func (s *Session) Readout(i, x, y int) (PixelInfo, error) {
	r, err := s.View(i)
	if err != nil {
		return PixelInfo{}, err
	}
	return pixelInfo(r, x, y)
}

// ReadoutAt describes the pixel of entry i containing map coordinate
// (gx, gy), in the raster's own CRS.
func (s *Session) ReadoutAt(i int, gx, gy float64) (PixelInfo, error) {
	r, err := s.View(i)
	if err != nil {
		return PixelInfo{}, err
	}
	x, y, ok := r.Raster.GeoToPixel(gx, gy)
	if !ok {
		return PixelInfo{}, fmt.Errorf("coordinate (%g, %g) outside raster", gx, gy)
	}
	return pixelInfo(r, x, y)
}

func pixelInfo(r *render.Rendered, x, y int) (PixelInfo, error) {
	v, inside := r.Raster.ValueAt(x, y)
	if !inside {
		return PixelInfo{}, fmt.Errorf("pixel (%d, %d) outside %dx%d raster", x, y, r.Raster.Width, r.Raster.Height)
	}
	info := PixelInfo{Entry: r.Entry}
	if r.Readout == nil {
		info.Readout = raster.Readout{X: x, Y: y, Value: v, Valid: !math.IsNaN(v)}
	} else {
		info.Readout, _ = r.Readout(x, y)
	}
	return info, nil
}

// TimeSeries samples the catalog's dated rasters of a displacement product
// at each point, with ref subtracted when set.
func (s *Session) TimeSeries(product catalog.ProductType, points []analysis.Point, ref *analysis.Point) (*analysis.Result, error) {
	entries := s.Entries()
	if s.Folder() == "" {
		return nil, ErrNoFolder
	}
	res, err := analysis.TimeSeries(entries, product, points, ref, raster.Open)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("product", product.String()).Int("points", len(points)).
		Int("files", res.Files).Int("skipped", len(res.Skipped)).Msg("time series sampled")
	return res, nil
}

// Compare renders the given entries side by side. Duplicate indices are
// collapsed; any out-of-range index fails the whole call.
func (s *Session) Compare(indices []int) (*render.Comparison, error) {
	indices = lo.Uniq(indices)

	s.mu.RLock()
	entries := make([]catalog.Entry, 0, len(indices))
	for _, i := range indices {
		e, err := s.entryLocked(i)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		entries = append(entries, e)
	}
	opts := s.overrides
	s.mu.RUnlock()

	c, err := render.Compare(entries, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Ints("indices", indices).Int("ok", c.Succeeded()).Int("failed", len(c.Panels)-c.Succeeded()).
		Msg("comparison rendered")
	return c, nil
}

// Activate adds entry i to the active comparison panels
func (s *Session) Activate(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.entryLocked(i); err != nil {
		return err
	}
	if lo.Contains(s.active, i) {
		return nil
	}
	if len(s.active) >= render.MaxPanels {
		return ErrPanelsFull
	}
	s.active = append(s.active, i)
	return nil
}

// Close removes entry i from the active panels. Closing an inactive entry is a no-op.
func (s *Session) Close(i int) {
	s.mu.Lock()
	s.active = lo.Without(s.active, i)
	s.mu.Unlock()
}

// Active returns the active panel indices in activation order
func (s *Session) Active() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.active...)
}

// CompareActive renders the active panels
func (s *Session) CompareActive() (*render.Comparison, error) {
	return s.Compare(s.Active())
}

func cloneEntries(entries []catalog.Entry) []catalog.Entry {
	return append([]catalog.Entry{}, entries...)
}
