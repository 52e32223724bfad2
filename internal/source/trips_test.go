package source

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tripgeo/internal/geo"
	"github.com/sells-group/tripgeo/internal/trip"
)

const header = "ride_id,rideable_type,started_at,ended_at,start_station_name,start_station_id,end_station_name,end_station_id,start_lat,start_lng,end_lat,end_lng,member_casual\n"

const sampleTrips = header +
	`A1,classic_bike,2024-03-01 08:00:00.000,2024-03-01 08:12:30.000,W 21 St & 6 Ave,6140.05,Broadway & E 14 St,5938.11,40.74174,-73.99416,40.73454,-73.99074,member
A2,electric_bike,2024-03-01 09:00:00,2024-03-01 09:01:00,,,Broadway & E 14 St,5938.11,40.74,-73.99,40.73,-73.99,casual
A3,electric_bike,2024-03-01 10:00:00,2024-03-01 10:20:00,Broadway & E 14 St,5938.11,Pier 40,5696.02,40.73,-73.99,,,casual
A4,classic_bike,2024-03-01 11:00:00,2024-03-01 11:20:00,Pier 40,5696.02,W 21 St & 6 Ave,6140.05,abc,-74.01,40.74,-73.99,member
A5,classic_bike,2024-03-01 12:00:00,2024-03-01 11:20:00,Pier 40,5696.02,W 21 St & 6 Ave,6140.05,40.72,-74.01,40.74,-73.99,member
A6,classic_bike,not-a-date,2024-03-01 11:20:00,Pier 40,5696.02,W 21 St & 6 Ave,6140.05,40.72,-74.01,40.74,-73.99,member
A7,classic_bike,2024-03-01T13:00:00Z,2024-03-01T13:30:00Z,  Pier 40 ,5696.02,W 21 St & 6 Ave,6140.05,40.72,-74.01,40.74,-73.99,member
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestTripCSV_ReadTrips(t *testing.T) {
	src := &TripCSV{Path: writeFile(t, "trips.csv", sampleTrips)}

	records, stats, err := src.ReadTrips(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "classic", first.BikeType)
	assert.Equal(t, "member", first.RiderType)
	assert.Equal(t, "W 21 St & 6 Ave", first.StartStation)
	assert.Equal(t, "Broadway & E 14 St", first.EndStation)
	assert.Equal(t, geo.Coordinate{Lon: -73.99416, Lat: 40.74174}, first.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), first.StartedAt)
	assert.Equal(t, 12*time.Minute+30*time.Second, first.Duration())

	assert.Equal(t, "Pier 40", records[1].StartStation, "station names are trimmed")

	assert.Equal(t, 7, stats.Rows)
	assert.Equal(t, map[string]int{
		trip.ReasonMissingField:     2,
		trip.ReasonMalformed:        2,
		trip.ReasonNegativeDuration: 1,
	}, stats.Rejected)
}

func TestTripCSV_RejectionsLocateRows(t *testing.T) {
	src := &TripCSV{Path: writeFile(t, "trips.csv", sampleTrips)}

	_, stats, err := src.ReadTrips(context.Background())
	require.NoError(t, err)

	// The header is line 1, so A2 is line 3 and A6 is line 7.
	require.Len(t, stats.Samples, 5)
	assert.Contains(t, stats.Samples[0], "trips.csv line 3: missing_field (start_station_name)")
	assert.Contains(t, stats.Samples[4], "trips.csv line 7: malformed (started_at)")
}

func TestTripCSV_ZIPRejectionsNameEntry(t *testing.T) {
	bad := header +
		"C1,classic_bike,2024-03-02 08:00:00,2024-03-02 08:30:00,Pier 40,1,Pier 40,1,40.72,-74.01,40.72,-74.01,member\n" +
		"C2,classic_bike,2024-03-02 09:00:00,2024-03-02 09:30:00,,,Pier 40,1,40.72,-74.01,40.72,-74.01,member\n"
	zipPath := filepath.Join(t.TempDir(), "trips.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{"a/202403_1.csv": sampleTrips, "a/202403_2.csv": bad} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, stats, err := (&TripCSV{Path: zipPath}).ReadTrips(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, stats.Rows)
	require.Len(t, stats.Samples, 6)
	assert.Contains(t, stats.Samples[5], "a/202403_2.csv line 3: missing_field (start_station_name)")
}

func TestTripCSV_Location(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	src := &TripCSV{Path: writeFile(t, "trips.csv", sampleTrips), Location: ny}

	records, _, err := src.ReadTrips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), records[0].StartedAt.UTC())
}

func TestTripCSV_NormalisesStationNames(t *testing.T) {
	// A combining accent must normalise to the precomposed form.
	content := header +
		"B1,classic_bike,2024-03-01 08:00:00,2024-03-01 08:30:00,Cafe\u0301 Pl,1,Caf\u00e9 Pl,1,40.7,-73.9,40.7,-73.9,member\n"
	src := &TripCSV{Path: writeFile(t, "trips.csv", content)}

	records, _, err := src.ReadTrips(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Caf\u00e9 Pl", records[0].StartStation)
	assert.Equal(t, records[0].StartStation, records[0].EndStation)
}

func TestTripCSV_ZIP(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "202403-citibike-tripdata.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"202403-citibike-tripdata_2.csv", "__MACOSX/._junk.csv", "202403-citibike-tripdata_1.csv", "README.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(sampleTrips))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	records, stats, err := (&TripCSV{Path: zipPath}).ReadTrips(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, 14, stats.Rows)
}

func TestTripCSV_ZIPWithoutCSV(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("notes.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, _, err = (&TripCSV{Path: zipPath}).ReadTrips(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no csv files")
}

func TestTripCSV_MissingFile(t *testing.T) {
	_, _, err := (&TripCSV{Path: filepath.Join(t.TempDir(), "nope.csv")}).ReadTrips(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open trips")
}

func TestTripCSV_EmptyFile(t *testing.T) {
	records, stats, err := (&TripCSV{Path: writeFile(t, "empty.csv", "")}).ReadTrips(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, stats.Rows)
}

func TestTripCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := (&TripCSV{Path: writeFile(t, "trips.csv", sampleTrips)}).ReadTrips(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
