package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stationUpsert = UpsertConfig{
	Table:        "stations",
	Columns:      []string{"run_id", "station", "neighbourhood"},
	ConflictKeys: []string{"run_id", "station"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, stationUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "stations",
		ConflictKeys: []string{"station"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "stations",
		Columns: []string{"station", "neighbourhood"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_stations" \(LIKE "stations" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_stations"}, stationUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "stations" .* ON CONFLICT \("run_id", "station"\) DO UPDATE SET "neighbourhood" = EXCLUDED."neighbourhood"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"run-1", "A", "Chelsea"}, {"run-1", "B", "Astoria"}}
	n, err := BulkUpsert(context.Background(), mock, stationUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_stations"}, stationUpsert.Columns).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, stationUpsert, [][]any{{"run-1", "A", "Chelsea"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for stations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{
			name: "update non-key columns",
			cfg:  stationUpsert,
			want: `INSERT INTO "stations" ("run_id", "station", "neighbourhood") SELECT "run_id", "station", "neighbourhood" FROM "_tmp" ON CONFLICT ("run_id", "station") DO UPDATE SET "neighbourhood" = EXCLUDED."neighbourhood"`,
		},
		{
			name: "keys only",
			cfg:  UpsertConfig{Table: "tripgeo.seen", Columns: []string{"station"}, ConflictKeys: []string{"station"}},
			want: `INSERT INTO "tripgeo"."seen" ("station") SELECT "station" FROM "_tmp" ON CONFLICT ("station") DO NOTHING`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upsertSQL(tt.cfg, "_tmp"))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"run_id", "station", "borough"`, quoteAndJoin([]string{"run_id", "station", "borough"}))
}
