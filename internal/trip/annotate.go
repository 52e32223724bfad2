package trip

import "github.com/sells-group/tripgeo/internal/geo"

// Trip is a filtered record annotated with its great-circle distance.
type Trip struct {
	Record
	DistanceKM float64
}

// Annotate computes the start-to-end haversine distance of every record.
func Annotate(records []Record) []Trip {
	trips := make([]Trip, len(records))
	for i, r := range records {
		trips[i] = Trip{
			Record:     r,
			DistanceKM: geo.HaversineKM(r.Start, r.End),
		}
	}
	return trips
}
