// Package photomap turns geolocated photos into map markers and tracks the
// focus highlight and click reporting for the photo map layer.
package photomap

import (
	"math"
	"strconv"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// keyFactor rounds coordinates to 4 decimal places, about 11 m at the equator.
const keyFactor = 10000

// MarkerGroup is one map pin: the photos sharing a rounded coordinate.
// Indices[i] is the position of Photos[i] in the slice passed to GroupByLocation.
type MarkerGroup struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Photos    []domain.Photo `json:"photos"`
	Indices   []int          `json:"indices"`
}

// roundCoord rounds half toward positive infinity, as the web map does, so
// negative coordinates fall in the same buckets on both sides.
func roundCoord(v float64) float64 {
	return math.Floor(v*keyFactor+0.5) / keyFactor
}

func groupKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// GroupByLocation buckets photos by rounded coordinate. Photos without both
// coordinates are skipped. Groups come back in the order their first photo
// appears. The result is never nil.
func GroupByLocation(photos []domain.Photo) []MarkerGroup {
	groups := []MarkerGroup{}
	byKey := make(map[string]int)

	for i, p := range photos {
		lat, lng, ok := p.Coordinates()
		if !ok {
			continue
		}
		rlat, rlng := roundCoord(lat), roundCoord(lng)
		key := groupKey(rlat, rlng)

		idx, seen := byKey[key]
		if !seen {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, MarkerGroup{Latitude: rlat, Longitude: rlng})
		}
		groups[idx].Photos = append(groups[idx].Photos, p)
		groups[idx].Indices = append(groups[idx].Indices, i)
	}
	return groups
}
