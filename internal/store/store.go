// Package store persists pipeline runs, station assignments and enriched
// trips so the API can serve them after a batch run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tripgeo/internal/config"
	"github.com/sells-group/tripgeo/internal/enrich"
	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/summary"
	"github.com/sells-group/tripgeo/internal/trip"
)

// ErrNotFound is returned when a run or station does not exist.
var ErrNotFound = errors.New("store: not found")

// Run is one completed pipeline execution.
type Run struct {
	ID             string           `json:"id"`
	TripsPath      string           `json:"trips_path"`
	BoundariesPath string           `json:"boundaries_path"`
	Ingest         trip.IngestStats `json:"ingest"`
	Report         enrich.Report    `json:"report"`
	Summary        summary.Summary  `json:"summary"`
	Unresolved     []string         `json:"unresolved,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// runStats is the JSON document stored alongside each run row.
type runStats struct {
	Ingest     trip.IngestStats `json:"ingest"`
	Report     enrich.Report    `json:"report"`
	Summary    summary.Summary  `json:"summary"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

func marshalStats(r *Run) ([]byte, error) {
	b, err := json.Marshal(runStats{Ingest: r.Ingest, Report: r.Report, Summary: r.Summary, Unresolved: r.Unresolved})
	return b, eris.Wrap(err, "store: marshal run stats")
}

func unmarshalStats(b []byte, r *Run) error {
	var s runStats
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "store: unmarshal run stats")
	}
	r.Ingest, r.Report, r.Summary, r.Unresolved = s.Ingest, s.Report, s.Summary, s.Unresolved
	return nil
}

// Store defines the persistence interface for pipeline output.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)

	// Stations
	SaveStations(ctx context.Context, runID string, assignments []station.Assignment) error
	ListStations(ctx context.Context, runID string) ([]station.Assignment, error)
	GetStation(ctx context.Context, runID, name string) (*station.Assignment, error)

	// Trips
	SaveTrips(ctx context.Context, runID string, trips []enrich.EnrichedTrip) (int64, error)
	CountTrips(ctx context.Context, runID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

var tripColumns = []string{
	"run_id", "bike_type", "rider_type", "datetime_start", "datetime_end", "duration_seconds",
	"station_start", "station_end", "neighbourhood_start", "neighbourhood_end", "borough_start",
	"start_lon", "start_lat", "end_lon", "end_lat", "distance_km",
}

func tripRow(runID string, t enrich.EnrichedTrip) []any {
	return []any{
		runID, t.BikeType, t.RiderType, t.StartedAt.UTC(), t.EndedAt.UTC(), t.Duration.Seconds(),
		t.StartStation, t.EndStation, t.StartNeighbourhood, t.EndNeighbourhood, t.StartBorough,
		t.Start.Lon, t.Start.Lat, t.End.Lon, t.End.Lat, t.DistanceKM,
	}
}

var stationColumns = []string{"run_id", "station", "borough", "neighbourhood", "lon", "lat"}

func stationRow(runID string, a station.Assignment) []any {
	return []any{runID, a.Station, a.Borough, a.Neighbourhood, a.Point.Lon, a.Point.Lat}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAssignment(row scannable) (station.Assignment, error) {
	var a station.Assignment
	err := row.Scan(&a.Station, &a.Borough, &a.Neighbourhood, &a.Point.Lon, &a.Point.Lat)
	return a, err
}
