package catalog

import "fmt"

// DirectoryError reports a catalog folder that is missing, unreadable or not a directory.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("cannot scan directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// UnsupportedProductError reports a product key that names no known product.
// Classification never returns it; unrecognized file names are Unknown.
type UnsupportedProductError struct {
	Name string
}

func (e *UnsupportedProductError) Error() string {
	return fmt.Sprintf("unsupported product type %q", e.Name)
}
