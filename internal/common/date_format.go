package common

import (
	"fmt"
	"time"
)

// Standard date format constants
const (
	// CompactDate is the YYYYMMDD form embedded in ASF/HyP3 product names
	CompactDate = "20060102"

	// DisplayDate is the human-readable format used for UI display
	DisplayDate = "Jan 02, 2006"
)

// ParseCompactDate parses an 8-digit YYYYMMDD date as found in acquisition names
func ParseCompactDate(dateStr string) (time.Time, error) {
	if len(dateStr) != len(CompactDate) {
		return time.Time{}, fmt.Errorf("invalid compact date %q", dateStr)
	}
	return time.Parse(CompactDate, dateStr)
}

// FormatDisplay formats a time.Time to display format (Jan 02, 2006)
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayDate)
}

// FormatPair renders an interferometric pair as "Jan 02, 2006 → Feb 01, 2006"
// with the temporal baseline in days.
func FormatPair(reference, secondary time.Time) string {
	days := int(secondary.Sub(reference).Hours() / 24)
	return fmt.Sprintf("%s → %s (%dd)", FormatDisplay(reference), FormatDisplay(secondary), days)
}
