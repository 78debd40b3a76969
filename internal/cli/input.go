package cli

import (
	"insar-viewer/internal/catalog"
	"insar-viewer/internal/session"
)

// openInput scans a product folder, or extracts and scans a ZIP bundle.
// Callers must Cleanup the returned session to remove the extraction.
func openInput(path string, recursive bool) (*session.Session, []catalog.Entry, error) {
	sess := session.New(catalog.ScanOptions{Recursive: recursive})
	var (
		entries []catalog.Entry
		err     error
	)
	if catalog.IsArchive(path) {
		entries, err = sess.OpenArchive(path)
	} else {
		entries, err = sess.Open(path)
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, entries, nil
}
