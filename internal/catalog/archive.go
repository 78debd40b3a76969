package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// MaxArchiveMember bounds the uncompressed size of one extracted GeoTIFF
const MaxArchiveMember = 4 << 30

// IsArchive reports whether path names a ZIP archive
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// ExtractArchive copies the GeoTIFF members of a ZIP archive into dest,
// flattened to their base names as HyP3 bundles are. When two members share
// a base name the first one wins. Other members, directories and "._"
// resource forks are ignored. It returns the extracted file names.
func ExtractArchive(zipPath, dest string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, &DirectoryError{Path: zipPath, Err: err}
	}
	defer zr.Close()

	var names []string
	seen := make(map[string]bool)
	for _, f := range zr.File {
		name := filepath.Base(filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() || !IsGeoTIFF(name) || strings.HasPrefix(name, "._") || seen[name] {
			continue
		}
		if f.UncompressedSize64 > MaxArchiveMember {
			return names, &DirectoryError{Path: zipPath, Err: fmt.Errorf("member %s is %d bytes", f.Name, f.UncompressedSize64)}
		}
		if err := extractMember(f, filepath.Join(dest, name)); err != nil {
			return names, &DirectoryError{Path: zipPath, Err: err}
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func extractMember(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open member %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64)+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && uint64(n) != f.UncompressedSize64 {
		err = fmt.Errorf("member %s holds %d bytes, header says %d", f.Name, n, f.UncompressedSize64)
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
