// Package summary computes run-level statistics over filtered trips.
package summary

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tripgeo/internal/trip"
)

// Output formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DateRange spans the earliest and latest trip start.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Summary describes a pipeline run.
type Summary struct {
	TotalTrips          int       `json:"total_trips" yaml:"total_trips"`
	TotalStations       int       `json:"total_stations" yaml:"total_stations"`
	TotalNeighbourhoods int       `json:"total_neighbourhoods" yaml:"total_neighbourhoods"`
	DateRange           DateRange `json:"date_range" yaml:"date_range"`
	AvgDistanceKM       float64   `json:"avg_distance_km" yaml:"avg_distance_km"`
	AvgDurationMinutes  float64   `json:"avg_duration_minutes" yaml:"avg_duration_minutes"`
}

// Compute summarises the filtered, distance-annotated trips, including those
// later dropped by the enrichment join. Stations and neighbourhoods are the
// resolved station count and catalog size. Averages are zero when there are
// no trips.
func Compute(trips []trip.Trip, stations, neighbourhoods int) Summary {
	s := Summary{
		TotalTrips:          len(trips),
		TotalStations:       stations,
		TotalNeighbourhoods: neighbourhoods,
	}
	if len(trips) == 0 {
		return s
	}

	// Minutes as float64: a year of trips overflows a time.Duration sum.
	var distance, minutes float64
	s.DateRange = DateRange{Start: trips[0].StartedAt, End: trips[0].StartedAt}
	for _, t := range trips {
		distance += t.DistanceKM
		minutes += t.Duration().Minutes()
		if t.StartedAt.Before(s.DateRange.Start) {
			s.DateRange.Start = t.StartedAt
		}
		if t.StartedAt.After(s.DateRange.End) {
			s.DateRange.End = t.StartedAt
		}
	}

	n := float64(len(trips))
	s.AvgDistanceKM = distance / n
	s.AvgDurationMinutes = minutes / n
	return s
}

// Write encodes the summary to w as JSON or YAML.
func Write(w io.Writer, s Summary, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(s), "summary: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "summary: encode yaml")
		}
		return eris.Wrap(enc.Close(), "summary: close yaml encoder")
	default:
		return eris.Errorf("summary: unknown format %q", format)
	}
}
