package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoverageGridSizes lists the supported coverage grid sizes in metres,
// smallest first.
var CoverageGridSizes = []int{20, 50, 250, 1000, 5000, 20000, 40000}

// DefaultCoverageGrid is the grid size used when none is requested.
const DefaultCoverageGrid = 50

// ValidCoverageGrid reports whether grid is one of CoverageGridSizes.
func ValidCoverageGrid(grid int) bool {
	for _, g := range CoverageGridSizes {
		if g == grid {
			return true
		}
	}
	return false
}

// CoverageCell is one visited grid cell.
type CoverageCell struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	GridMeters int     `json:"gridMeters"`
	SeenCount  int64   `json:"seenCount"`
}

// CoverageStatus is the state of coverage processing for the current user.
type CoverageStatus struct {
	UserEnabled         bool      `json:"userEnabled"`
	Processing          bool      `json:"processing"`
	HasCells            bool      `json:"hasCells"`
	LastProcessed       Timestamp `json:"lastProcessed"`
	ProcessingStartedAt Timestamp `json:"processingStartedAt"`
}

// CoverageSummary aggregates coverage for one grid size.
type CoverageSummary struct {
	GridMeters   int     `json:"gridMeters"`
	TotalCells   int64   `json:"totalCells"`
	AreaSquareKm float64 `json:"areaSquareKm"`
}

// BBox is a map viewport in degrees.
type BBox struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// String formats the box as the API's bbox parameter: minLon,minLat,maxLon,maxLat.
func (b BBox) String() string {
	return strconv.FormatFloat(b.MinLon, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MinLat, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64)
}

// ParseBBox reads "minLon,minLat,maxLon,maxLat". Corners given in either
// order are normalized so that Min <= Max.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat: %w", ErrValidation)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BBox{}, fmt.Errorf("bbox value %q is not a number: %w", p, ErrValidation)
		}
		v[i] = f
	}
	return BBox{
		MinLon: math.Min(v[0], v[2]),
		MinLat: math.Min(v[1], v[3]),
		MaxLon: math.Max(v[0], v[2]),
		MaxLat: math.Max(v[1], v[3]),
	}, nil
}
