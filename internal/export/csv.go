// Package export writes enriched trips and station assignments to CSV and
// XLSX files.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tripgeo/internal/enrich"
	"github.com/sells-group/tripgeo/internal/station"
)

// TimeLayout is the timestamp format of exported trips, matching the Citi
// Bike input files.
const TimeLayout = "2006-01-02 15:04:05"

type tripRow struct {
	BikeType           string  `csv:"bike_type"`
	RiderType          string  `csv:"rider_type"`
	DatetimeStart      string  `csv:"datetime_start"`
	DatetimeEnd        string  `csv:"datetime_end"`
	DurationSeconds    float64 `csv:"duration"`
	StationStart       string  `csv:"station_start"`
	StationEnd         string  `csv:"station_end"`
	NeighbourhoodStart string  `csv:"neighborhood_start"`
	NeighbourhoodEnd   string  `csv:"neighborhood_end"`
	BoroughStart       string  `csv:"borough_start"`
	LatStart           float64 `csv:"lat_start"`
	LonStart           float64 `csv:"lon_start"`
	LatEnd             float64 `csv:"lat_end"`
	LonEnd             float64 `csv:"lon_end"`
	DistanceKM         float64 `csv:"distance"`
}

func toTripRow(t enrich.EnrichedTrip) tripRow {
	return tripRow{
		BikeType:           t.BikeType,
		RiderType:          t.RiderType,
		DatetimeStart:      t.StartedAt.Format(TimeLayout),
		DatetimeEnd:        t.EndedAt.Format(TimeLayout),
		DurationSeconds:    t.Duration.Round(time.Millisecond).Seconds(),
		StationStart:       t.StartStation,
		StationEnd:         t.EndStation,
		NeighbourhoodStart: t.StartNeighbourhood,
		NeighbourhoodEnd:   t.EndNeighbourhood,
		BoroughStart:       t.StartBorough,
		LatStart:           t.Start.Lat,
		LonStart:           t.Start.Lon,
		LatEnd:             t.End.Lat,
		LonEnd:             t.End.Lon,
		DistanceKM:         t.DistanceKM,
	}
}

type stationRow struct {
	Station       string  `csv:"station"`
	Borough       string  `csv:"borough"`
	Neighbourhood string  `csv:"neighborhood"`
	Lon           float64 `csv:"lon"`
	Lat           float64 `csv:"lat"`
}

func toStationRow(a station.Assignment) stationRow {
	return stationRow{
		Station:       a.Station,
		Borough:       a.Borough,
		Neighbourhood: a.Neighbourhood,
		Lon:           a.Point.Lon,
		Lat:           a.Point.Lat,
	}
}

// WriteTripsCSV writes enriched trips with a header row. An empty slice
// still produces the header.
func WriteTripsCSV(w io.Writer, trips []enrich.EnrichedTrip) error {
	rows := make([]tripRow, len(trips))
	for i, t := range trips {
		rows[i] = toTripRow(t)
	}
	return eris.Wrap(writeCSV(w, tripRow{}, rows), "export: write trips csv")
}

// WriteStationsCSV writes station assignments with a header row.
func WriteStationsCSV(w io.Writer, assignments []station.Assignment) error {
	rows := make([]stationRow, len(assignments))
	for i, a := range assignments {
		rows[i] = toStationRow(a)
	}
	return eris.Wrap(writeCSV(w, stationRow{}, rows), "export: write stations csv")
}

func writeCSV[T any](w io.Writer, header T, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
