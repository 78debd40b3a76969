package naming

import (
	"fmt"
	"math"
)

// FormatCoordinate renders a map coordinate for the readout bar.
// Geographic coordinates use hemisphere letters, projected ones plain metres.
func FormatCoordinate(x, y float64, geographic bool) string {
	if geographic {
		return fmt.Sprintf("%s, %s", SanitizeCoordinate(y, true), SanitizeCoordinate(x, false))
	}
	return fmt.Sprintf("%.2f E, %.2f N", x, y)
}

// SanitizeCoordinate formats a coordinate without a minus sign, using N/S/E/W
func SanitizeCoordinate(coord float64, isLat bool) string {
	dir := "E"
	if isLat {
		if coord < 0 {
			dir = "S"
		} else {
			dir = "N"
		}
	} else {
		if coord < 0 {
			dir = "W"
		} else {
			dir = "E"
		}
	}
	return fmt.Sprintf("%.4f°%s", math.Abs(coord), dir)
}

// FormatValue renders a pixel value for the readout, "NaN" for invalid pixels
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}
