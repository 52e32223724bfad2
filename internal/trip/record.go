// Package trip holds validated bike-share trip records and the stages that
// clean and annotate them before neighbourhood resolution.
package trip

import (
	"strings"
	"time"

	"github.com/sells-group/tripgeo/internal/geo"
)

// RawRow is a trip row as produced by an ingestion source. Pointer fields are
// nil when the source value was missing.
type RawRow struct {
	File         string
	Line         int
	BikeType     *string
	RiderType    *string
	StartedAt    *time.Time
	EndedAt      *time.Time
	StartStation *string
	EndStation   *string
	StartLon     *float64
	StartLat     *float64
	EndLon       *float64
	EndLat       *float64
}

// Record is a validated trip with every field required downstream present.
type Record struct {
	BikeType     string
	RiderType    string
	StartedAt    time.Time
	EndedAt      time.Time
	StartStation string
	EndStation   string
	Start        geo.Coordinate
	End          geo.Coordinate
}

// Duration returns the elapsed time between dock and undock.
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// FromRaw validates a raw row. Rows with a missing required field, an
// out-of-range coordinate, or an end time before the start time are rejected
// with an *UpstreamDataError.
func FromRaw(row RawRow) (Record, error) {
	var missing []string
	check := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	check(row.BikeType != nil, "rideable_type")
	check(row.RiderType != nil, "member_casual")
	check(row.StartedAt != nil, "started_at")
	check(row.EndedAt != nil, "ended_at")
	check(row.StartStation != nil && *row.StartStation != "", "start_station_name")
	check(row.EndStation != nil && *row.EndStation != "", "end_station_name")
	check(row.StartLon != nil, "start_lng")
	check(row.StartLat != nil, "start_lat")
	check(row.EndLon != nil, "end_lng")
	check(row.EndLat != nil, "end_lat")
	if len(missing) > 0 {
		return Record{}, &UpstreamDataError{
			File:   row.File,
			Line:   row.Line,
			Field:  strings.Join(missing, ","),
			Reason: ReasonMissingField,
		}
	}

	rec := Record{
		BikeType:     BikeCategory(*row.BikeType),
		RiderType:    *row.RiderType,
		StartedAt:    *row.StartedAt,
		EndedAt:      *row.EndedAt,
		StartStation: *row.StartStation,
		EndStation:   *row.EndStation,
		Start:        geo.Coordinate{Lon: *row.StartLon, Lat: *row.StartLat},
		End:          geo.Coordinate{Lon: *row.EndLon, Lat: *row.EndLat},
	}

	if !rec.Start.Valid() {
		return Record{}, &UpstreamDataError{File: row.File, Line: row.Line, Field: "start_lng,start_lat", Reason: ReasonBadCoordinate}
	}
	if !rec.End.Valid() {
		return Record{}, &UpstreamDataError{File: row.File, Line: row.Line, Field: "end_lng,end_lat", Reason: ReasonBadCoordinate}
	}
	if rec.EndedAt.Before(rec.StartedAt) {
		return Record{}, &UpstreamDataError{File: row.File, Line: row.Line, Field: "ended_at", Reason: ReasonNegativeDuration}
	}

	return rec, nil
}

// BikeCategory strips the suffix from a rideable type, so "classic_bike"
// becomes "classic" and "electric_bike" becomes "electric".
func BikeCategory(rideableType string) string {
	category, _, _ := strings.Cut(rideableType, "_")
	return category
}
