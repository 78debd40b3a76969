package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const maxLabelLength = 45

// Entry is one GeoTIFF discovered in a product folder
type Entry struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Product   ProductType `json:"product"`
	Label     string      `json:"label"`
	Reference *time.Time  `json:"reference,omitempty"`
	Secondary *time.Time  `json:"secondary,omitempty"`
}

// ScanOptions controls how a folder is walked
type ScanOptions struct {
	// Recursive descends into subdirectories. Hidden directories are skipped.
	Recursive bool
}

// Scan lists the GeoTIFFs directly inside dir, classified and sorted by file name.
// An existing folder with no GeoTIFFs yields an empty, non-nil slice.
func Scan(dir string) ([]Entry, error) {
	return ScanWithOptions(dir, ScanOptions{})
}

// ScanWithOptions is Scan with explicit walk options.
func ScanWithOptions(dir string, opts ScanOptions) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &DirectoryError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &DirectoryError{Path: dir, Err: fmt.Errorf("not a directory")}
	}

	var paths []string
	if opts.Recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsGeoTIFF(d.Name()) {
				paths = append(paths, path)
			}
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(dir)
		for _, e := range entries {
			if !e.IsDir() && IsGeoTIFF(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	if err != nil {
		return nil, &DirectoryError{Path: dir, Err: err}
	}

	result := make([]Entry, 0, len(paths))
	for _, p := range paths {
		result = append(result, NewEntry(p))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Path < result[j].Path
	})
	return result, nil
}

// NewEntry classifies a single file path without touching the filesystem
func NewEntry(path string) Entry {
	name := filepath.Base(path)
	product := Classify(name)
	e := Entry{
		Path:    path,
		Name:    name,
		Product: product,
		Label:   Label(product, name),
	}
	if ref, sec, ok := ParseDatePair(name); ok {
		e.Reference = &ref
		e.Secondary = &sec
	}
	return e
}

// IsGeoTIFF reports whether a file name has a .tif or .tiff extension, in any case
func IsGeoTIFF(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// Label builds the display label "[TYPE] name", truncated to 45 characters
// with a trailing "..." when longer.
func Label(product ProductType, name string) string {
	label := fmt.Sprintf("[%s] %s", strings.ToUpper(product.String()), name)
	runes := []rune(label)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength-3]) + "..."
	}
	return label
}
