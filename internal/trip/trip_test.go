package trip

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tripgeo/internal/geo"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func rec(start, end string, dur time.Duration) Record {
	return Record{
		BikeType:     "classic",
		RiderType:    "member",
		StartedAt:    t0,
		EndedAt:      t0.Add(dur),
		StartStation: start,
		EndStation:   end,
		Start:        geo.Coordinate{Lon: -73.99, Lat: 40.73},
		End:          geo.Coordinate{Lon: -73.98, Lat: 40.74},
	}
}

func ptr[T any](v T) *T { return &v }

func validRow() RawRow {
	return RawRow{
		Line:         7,
		BikeType:     ptr("electric_bike"),
		RiderType:    ptr("casual"),
		StartedAt:    ptr(t0),
		EndedAt:      ptr(t0.Add(12 * time.Minute)),
		StartStation: ptr("W 21 St & 6 Ave"),
		EndStation:   ptr("Broadway & E 14 St"),
		StartLon:     ptr(-73.994),
		StartLat:     ptr(40.741),
		EndLon:       ptr(-73.990),
		EndLat:       ptr(40.734),
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		in   Record
		kept bool
	}{
		{"same station, 2 minutes", rec("S1", "S1", 2*time.Minute), false},
		{"same station, 10 minutes", rec("S1", "S1", 10*time.Minute), true},
		{"same station, exactly 5 minutes", rec("S1", "S1", 5*time.Minute), true},
		{"different stations, 1 minute", rec("S1", "S2", time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Filter([]Record{tt.in}, FilterOptions{})
			if tt.kept {
				assert.Len(t, out, 1)
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	in := []Record{
		rec("A", "B", time.Minute),
		rec("C", "C", time.Minute),
		rec("D", "E", time.Minute),
		rec("F", "F", time.Hour),
	}

	out := Filter(in, FilterOptions{})
	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].StartStation)
	assert.Equal(t, "D", out[1].StartStation)
	assert.Equal(t, "F", out[2].StartStation)
}

func TestFilter_CustomThreshold(t *testing.T) {
	in := []Record{rec("S1", "S1", 7*time.Minute)}

	assert.Empty(t, Filter(in, FilterOptions{MinSameStationDuration: 10 * time.Minute}))
	assert.Len(t, Filter(in, FilterOptions{MinSameStationDuration: time.Minute}), 1)
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, FilterOptions{}))
}

func TestAnnotate(t *testing.T) {
	r := rec("A", "B", 10*time.Minute)
	r.Start = geo.Coordinate{Lon: 0, Lat: 0}
	r.End = geo.Coordinate{Lon: 1, Lat: 0}

	trips := Annotate([]Record{r})
	require.Len(t, trips, 1)
	assert.InDelta(t, 111.19, trips[0].DistanceKM, 0.1)
	assert.Equal(t, r, trips[0].Record)
}

func TestAnnotate_NonFinitePropagates(t *testing.T) {
	r := rec("A", "B", 10*time.Minute)
	r.End = geo.Coordinate{Lon: math.Inf(1), Lat: 40}

	trips := Annotate([]Record{r})
	assert.True(t, math.IsNaN(trips[0].DistanceKM) || math.IsInf(trips[0].DistanceKM, 0))
}

func TestFromRaw_Valid(t *testing.T) {
	r, err := FromRaw(validRow())
	require.NoError(t, err)

	assert.Equal(t, "electric", r.BikeType)
	assert.Equal(t, "casual", r.RiderType)
	assert.Equal(t, "W 21 St & 6 Ave", r.StartStation)
	assert.Equal(t, geo.Coordinate{Lon: -73.994, Lat: 40.741}, r.Start)
	assert.Equal(t, 12*time.Minute, r.Duration())
}

func TestFromRaw_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawRow)
		reason string
		field  string
	}{
		{"missing start station", func(r *RawRow) { r.StartStation = nil }, ReasonMissingField, "start_station_name"},
		{"blank end station", func(r *RawRow) { r.EndStation = ptr("") }, ReasonMissingField, "end_station_name"},
		{"missing end coords", func(r *RawRow) { r.EndLat, r.EndLon = nil, nil }, ReasonMissingField, "end_lng,end_lat"},
		{"latitude out of range", func(r *RawRow) { r.StartLat = ptr(-173.9) }, ReasonBadCoordinate, "start_lng,start_lat"},
		{"end before start", func(r *RawRow) { r.EndedAt = ptr(t0.Add(-time.Minute)) }, ReasonNegativeDuration, "ended_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.mutate(&row)

			_, err := FromRaw(row)
			require.Error(t, err)

			var ude *UpstreamDataError
			require.True(t, errors.As(err, &ude))
			assert.Equal(t, 7, ude.Line)
			assert.Equal(t, tt.reason, ude.Reason)
			assert.Equal(t, tt.field, ude.Field)
			assert.Contains(t, err.Error(), "line 7")
		})
	}
}

func TestFromRaw_ErrorNamesFile(t *testing.T) {
	row := validRow()
	row.File = "202403-citibike-tripdata_2.csv"
	row.EndStation = nil

	_, err := FromRaw(row)
	require.Error(t, err)

	var ude *UpstreamDataError
	require.ErrorAs(t, err, &ude)
	assert.Equal(t, "202403-citibike-tripdata_2.csv", ude.File)
	assert.Equal(t, "trip: 202403-citibike-tripdata_2.csv line 7: missing_field (end_station_name)", err.Error())
}

func TestBikeCategory(t *testing.T) {
	assert.Equal(t, "classic", BikeCategory("classic_bike"))
	assert.Equal(t, "electric", BikeCategory("electric_bike"))
	assert.Equal(t, "docked", BikeCategory("docked"))
}
