package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tripgeo/internal/enrich"
	"github.com/sells-group/tripgeo/internal/station"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	trips_path      TEXT NOT NULL,
	boundaries_path TEXT NOT NULL,
	stats           TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stations (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	station       TEXT NOT NULL,
	borough       TEXT NOT NULL,
	neighbourhood TEXT NOT NULL,
	lon           REAL NOT NULL,
	lat           REAL NOT NULL,
	PRIMARY KEY (run_id, station)
);

CREATE TABLE IF NOT EXISTS trips (
	run_id              TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	bike_type           TEXT NOT NULL,
	rider_type          TEXT NOT NULL,
	datetime_start      DATETIME NOT NULL,
	datetime_end        DATETIME NOT NULL,
	duration_seconds    REAL NOT NULL,
	station_start       TEXT NOT NULL,
	station_end         TEXT NOT NULL,
	neighbourhood_start TEXT NOT NULL,
	neighbourhood_end   TEXT NOT NULL,
	borough_start       TEXT NOT NULL,
	start_lon           REAL NOT NULL,
	start_lat           REAL NOT NULL,
	end_lon             REAL NOT NULL,
	end_lat             REAL NOT NULL,
	distance_km         REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_trips_run_id ON trips(run_id);
CREATE INDEX IF NOT EXISTS idx_stations_neighbourhood ON stations(run_id, neighbourhood);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	stats, err := marshalStats(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, trips_path, boundaries_path, stats, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.TripsPath, run.BoundariesPath, string(stats), run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

const sqliteRunColumns = `SELECT id, trips_path, boundaries_path, stats, created_at FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, sqliteRunColumns+` WHERE id = ?`, id)
	return scanSQLiteRun(row)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, sqliteRunColumns+` ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanSQLiteRun(row)
}

func (s *SQLiteStore) SaveStations(ctx context.Context, runID string, assignments []station.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return s.inTx(ctx, "save stations", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO stations (`+strings.Join(stationColumns, ", ")+`) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, station) DO UPDATE SET
				borough = excluded.borough,
				neighbourhood = excluded.neighbourhood,
				lon = excluded.lon,
				lat = excluded.lat`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare station insert")
		}
		defer stmt.Close() //nolint:errcheck

		for _, a := range assignments {
			if _, err := stmt.ExecContext(ctx, stationRow(runID, a)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert station %s", a.Station)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListStations(ctx context.Context, runID string) ([]station.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station, borough, neighbourhood, lon, lat FROM stations WHERE run_id = ? ORDER BY station`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stations")
	}
	defer rows.Close() //nolint:errcheck

	var out []station.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan station")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate stations")
}

func (s *SQLiteStore) GetStation(ctx context.Context, runID, name string) (*station.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT station, borough, neighbourhood, lon, lat FROM stations WHERE run_id = ? AND station = ?`, runID, name)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get station %s", name)
	}
	return &a, nil
}

func (s *SQLiteStore) SaveTrips(ctx context.Context, runID string, trips []enrich.EnrichedTrip) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tripColumns)), ", ")

	var n int64
	err := s.inTx(ctx, "save trips", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO trips (`+strings.Join(tripColumns, ", ")+`) VALUES (`+placeholders+`)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare trip insert")
		}
		defer stmt.Close() //nolint:errcheck

		for _, t := range trips {
			if _, err := stmt.ExecContext(ctx, tripRow(runID, t)...); err != nil {
				return eris.Wrap(err, "sqlite: insert trip")
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) CountTrips(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips WHERE run_id = ?`, runID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count trips")
}

// helpers

func (s *SQLiteStore) inTx(ctx context.Context, action string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s: begin tx", action)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: %s: commit", action)
}

func scanSQLiteRun(row scannable) (*Run, error) {
	var r Run
	var stats string
	err := row.Scan(&r.ID, &r.TripsPath, &r.BoundariesPath, &stats, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := unmarshalStats([]byte(stats), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
