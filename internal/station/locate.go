// Package station derives a representative point for every bike-share
// station and resolves it to the neighbourhood that contains it.
package station

import (
	"math"
	"slices"
	"sort"

	"github.com/sells-group/tripgeo/internal/geo"
	"github.com/sells-group/tripgeo/internal/trip"
)

// Location is the representative point of a station: the coordinate-wise
// median of every start coordinate observed for its name.
type Location struct {
	Station string         `json:"station"`
	Point   geo.Coordinate `json:"point"`
	Trips   int            `json:"trips"`
}

// Locate groups trips by start station and returns one Location per name,
// sorted by name. Stations without a finite median are dropped.
func Locate(trips []trip.Trip) []Location {
	type samples struct {
		lons, lats []float64
		trips      int
	}

	byName := make(map[string]*samples)
	for _, t := range trips {
		s, ok := byName[t.StartStation]
		if !ok {
			s = &samples{}
			byName[t.StartStation] = s
		}
		s.trips++
		if isFinite(t.Start.Lon) {
			s.lons = append(s.lons, t.Start.Lon)
		}
		if isFinite(t.Start.Lat) {
			s.lats = append(s.lats, t.Start.Lat)
		}
	}

	locations := make([]Location, 0, len(byName))
	for name, s := range byName {
		lon, okLon := median(s.lons)
		lat, okLat := median(s.lats)
		if !okLon || !okLat {
			continue
		}
		locations = append(locations, Location{
			Station: name,
			Point:   geo.Coordinate{Lon: lon, Lat: lat},
			Trips:   s.trips,
		})
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Station < locations[j].Station
	})
	return locations
}

// median returns the middle value of vals, averaging the two middle values
// for an even count. It reports false for an empty slice.
func median(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
