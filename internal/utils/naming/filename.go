package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExportFilename creates the default file name for an exported product
// Format: {product}_{stem}.{ext}
func ExportFilename(product, sourceName, ext string) string {
	stem := SanitizeStem(strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName)))
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%s.%s", product, stem, ext)
}

// ComparisonFilename creates the default file name for a comparison grid
// Format: comparison_{product1}-{product2}-..._{n}panels.png
func ComparisonFilename(products []string) string {
	return fmt.Sprintf("comparison_%s_%dpanels.png", strings.Join(products, "-"), len(products))
}

// SanitizeStem replaces characters that are awkward in file names on Windows
func SanitizeStem(stem string) string {
	replacer := strings.NewReplacer(
		" ", "_", ":", "-", "/", "-", "\\", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	stem = replacer.Replace(stem)
	if stem == "" {
		return "raster"
	}
	return stem
}
