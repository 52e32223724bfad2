package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/db"
	"github.com/sells-group/tripgeo/internal/enrich"
	"github.com/sells-group/tripgeo/internal/station"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	trips_path      TEXT NOT NULL,
	boundaries_path TEXT NOT NULL,
	stats           JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stations (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	station       TEXT NOT NULL,
	borough       TEXT NOT NULL,
	neighbourhood TEXT NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, station)
);

CREATE TABLE IF NOT EXISTS trips (
	run_id              TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	bike_type           TEXT NOT NULL,
	rider_type          TEXT NOT NULL,
	datetime_start      TIMESTAMPTZ NOT NULL,
	datetime_end        TIMESTAMPTZ NOT NULL,
	duration_seconds    DOUBLE PRECISION NOT NULL,
	station_start       TEXT NOT NULL,
	station_end         TEXT NOT NULL,
	neighbourhood_start TEXT NOT NULL,
	neighbourhood_end   TEXT NOT NULL,
	borough_start       TEXT NOT NULL,
	start_lon           DOUBLE PRECISION NOT NULL,
	start_lat           DOUBLE PRECISION NOT NULL,
	end_lon             DOUBLE PRECISION NOT NULL,
	end_lat             DOUBLE PRECISION NOT NULL,
	distance_km         DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_trips_run_id ON trips(run_id);
CREATE INDEX IF NOT EXISTS idx_stations_neighbourhood ON stations(run_id, neighbourhood);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	stats, err := marshalStats(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, trips_path, boundaries_path, stats, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.TripsPath, run.BoundariesPath, stats, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

const postgresRunColumns = `SELECT id, trips_path, boundaries_path, stats, created_at FROM runs`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return scanPostgresRun(s.pool.QueryRow(ctx, postgresRunColumns+` WHERE id = $1`, id))
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*Run, error) {
	return scanPostgresRun(s.pool.QueryRow(ctx, postgresRunColumns+` ORDER BY created_at DESC, id DESC LIMIT 1`))
}

func (s *PostgresStore) SaveStations(ctx context.Context, runID string, assignments []station.Assignment) error {
	rows := make([][]any, len(assignments))
	for i, a := range assignments {
		rows[i] = stationRow(runID, a)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "stations",
		Columns:      stationColumns,
		ConflictKeys: []string{"run_id", "station"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save stations")
	}
	zap.L().Debug("postgres: stations saved", zap.String("run_id", runID), zap.Int64("rows", n))
	return nil
}

func (s *PostgresStore) ListStations(ctx context.Context, runID string) ([]station.Assignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT station, borough, neighbourhood, lon, lat FROM stations WHERE run_id = $1 ORDER BY station`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stations")
	}
	defer rows.Close()

	var out []station.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan station")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate stations")
}

func (s *PostgresStore) GetStation(ctx context.Context, runID, name string) (*station.Assignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx,
		`SELECT station, borough, neighbourhood, lon, lat FROM stations WHERE run_id = $1 AND station = $2`, runID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get station %s", name)
	}
	return &a, nil
}

func (s *PostgresStore) SaveTrips(ctx context.Context, runID string, trips []enrich.EnrichedTrip) (int64, error) {
	rows := make([][]any, len(trips))
	for i, t := range trips {
		rows[i] = tripRow(runID, t)
	}
	n, err := db.CopyFrom(ctx, s.pool, "trips", tripColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save trips")
	}
	return n, nil
}

func (s *PostgresStore) CountTrips(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE run_id = $1`, runID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count trips")
}

func scanPostgresRun(row pgx.Row) (*Run, error) {
	var r Run
	var stats []byte
	err := row.Scan(&r.ID, &r.TripsPath, &r.BoundariesPath, &stats, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	if err := unmarshalStats(stats, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
