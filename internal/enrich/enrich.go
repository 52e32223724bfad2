// Package enrich joins resolved station neighbourhoods back onto trips.
package enrich

import (
	"time"

	"github.com/sells-group/tripgeo/internal/geo"
	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/trip"
)

// EnrichedTrip is a trip whose start and end stations both resolved to a
// neighbourhood.
type EnrichedTrip struct {
	BikeType           string         `json:"bike_type"`
	RiderType          string         `json:"rider_type"`
	StartedAt          time.Time      `json:"datetime_start"`
	EndedAt            time.Time      `json:"datetime_end"`
	Duration           time.Duration  `json:"duration"`
	StartStation       string         `json:"station_start"`
	EndStation         string         `json:"station_end"`
	StartNeighbourhood string         `json:"neighbourhood_start"`
	EndNeighbourhood   string         `json:"neighbourhood_end"`
	StartBorough       string         `json:"borough_start"`
	Start              geo.Coordinate `json:"start"`
	End                geo.Coordinate `json:"end"`
	DistanceKM         float64        `json:"distance_km"`
}

// Report counts what the join kept and dropped.
type Report struct {
	Input           int `json:"input" yaml:"input"`
	Output          int `json:"output" yaml:"output"`
	UnresolvedStart int `json:"unresolved_start" yaml:"unresolved_start"`
	UnresolvedEnd   int `json:"unresolved_end" yaml:"unresolved_end"`
	UnresolvedBoth  int `json:"unresolved_both" yaml:"unresolved_both"`
}

// Dropped returns the number of trips excluded by the join.
func (r Report) Dropped() int {
	return r.Input - r.Output
}

// Enrich inner-joins trips with the station resolution on both start and
// end station name. Trips referencing an unresolved station are dropped and
// counted in the report. Input order is preserved.
func Enrich(trips []trip.Trip, res *station.Resolution) ([]EnrichedTrip, Report) {
	rep := Report{Input: len(trips)}
	out := make([]EnrichedTrip, 0, len(trips))

	for _, t := range trips {
		start, okStart := res.Lookup(t.StartStation)
		end, okEnd := res.Lookup(t.EndStation)
		switch {
		case !okStart && !okEnd:
			rep.UnresolvedBoth++
			continue
		case !okStart:
			rep.UnresolvedStart++
			continue
		case !okEnd:
			rep.UnresolvedEnd++
			continue
		}

		out = append(out, EnrichedTrip{
			BikeType:           t.BikeType,
			RiderType:          t.RiderType,
			StartedAt:          t.StartedAt,
			EndedAt:            t.EndedAt,
			Duration:           t.Duration(),
			StartStation:       t.StartStation,
			EndStation:         t.EndStation,
			StartNeighbourhood: start.Neighbourhood,
			EndNeighbourhood:   end.Neighbourhood,
			StartBorough:       start.Borough,
			Start:              t.Start,
			End:                t.End,
			DistanceKM:         t.DistanceKM,
		})
	}

	rep.Output = len(out)
	return out, rep
}
