package catalog

import (
	"regexp"
	"time"

	"insar-viewer/internal/common"
)

// ASF HyP3 product names embed the acquisition pair as
// <reference>T<hhmmss>_<secondary>T<hhmmss>.
var datePairPattern = regexp.MustCompile(`(\d{8})T\d{6}_(\d{8})T\d{6}`)

// ParseDatePair extracts the reference and secondary acquisition dates from a
// file name. ok is false when the name carries no valid pair.
func ParseDatePair(name string) (reference, secondary time.Time, ok bool) {
	m := datePairPattern.FindStringSubmatch(name)
	if m == nil {
		return reference, secondary, false
	}
	ref, err := common.ParseCompactDate(m[1])
	if err != nil {
		return reference, secondary, false
	}
	sec, err := common.ParseCompactDate(m[2])
	if err != nil {
		return reference, secondary, false
	}
	return ref, sec, true
}
