package layout

import (
	"fmt"
	"math"
	"strings"
)

// ViewMode selects the row dimension. Colors encode the other dimension.
type ViewMode string

const (
	ViewEmployee ViewMode = "employee"
	ViewLine     ViewMode = "line"
)

// ParseViewMode accepts "employee" or "line" (case-insensitive).
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewEmployee:
		return ViewEmployee, nil
	case ViewLine:
		return ViewLine, nil
	}
	return "", fmt.Errorf("invalid view mode %q (want employee or line)", s)
}

const (
	MinZoom     = 0.25
	MaxZoom     = 4.0
	ZoomStep    = 1.25
	DefaultZoom = 4.0
)

// ClampZoom limits z to [MinZoom, MaxZoom]. Zero and NaN mean DefaultZoom.
func ClampZoom(z float64) float64 {
	if z == 0 || math.IsNaN(z) {
		return DefaultZoom
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ZoomIn returns z one step larger.
func ZoomIn(z float64) float64 {
	return ClampZoom(ClampZoom(z) * ZoomStep)
}

// ZoomOut returns z one step smaller.
func ZoomOut(z float64) float64 {
	return ClampZoom(ClampZoom(z) / ZoomStep)
}
