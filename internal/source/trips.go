package source

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tripgeo/internal/trip"
)

// citiBikeRow mirrors the columns of a Citi Bike monthly trip export.
type citiBikeRow struct {
	RideableType csvString `csv:"rideable_type"`
	StartedAt    csvTime   `csv:"started_at"`
	EndedAt      csvTime   `csv:"ended_at"`
	StartStation csvString `csv:"start_station_name"`
	EndStation   csvString `csv:"end_station_name"`
	StartLat     csvFloat  `csv:"start_lat"`
	StartLng     csvFloat  `csv:"start_lng"`
	EndLat       csvFloat  `csv:"end_lat"`
	EndLng       csvFloat  `csv:"end_lng"`
	MemberCasual csvString `csv:"member_casual"`
}

// TripCSV reads trips from a Citi Bike CSV file, or from every CSV inside a
// ZIP archive in name order.
type TripCSV struct {
	Path string
	// Location interprets timestamps without a zone. Nil means UTC.
	Location *time.Location
	// ProgressInterval throttles progress logging. Zero means 5s.
	ProgressInterval time.Duration
}

// ReadTrips decodes and validates every row. Invalid rows are skipped and
// counted in the returned stats; only I/O failures abort the read.
func (s *TripCSV) ReadTrips(ctx context.Context) ([]trip.Record, trip.IngestStats, error) {
	var stats trip.IngestStats
	var records []trip.Record

	log := zap.L().With(zap.String("component", "source.trips"), zap.String("path", s.Path))

	interval := s.ProgressInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	progress := &rate.Sometimes{Interval: interval}

	read := func(name string, r io.Reader) error {
		n, err := s.decode(ctx, name, r, &stats, func(rec trip.Record) {
			records = append(records, rec)
			progress.Do(func() {
				log.Info("source: reading trips", zap.String("file", name), zap.Int("rows", stats.Rows))
			})
		})
		if err != nil {
			return eris.Wrapf(err, "source: read %s", name)
		}
		log.Debug("source: file done", zap.String("file", name), zap.Int("rows", n))
		return nil
	}

	if strings.EqualFold(filepath.Ext(s.Path), ".zip") {
		if err := s.readZIP(read); err != nil {
			return nil, stats, err
		}
	} else {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, stats, eris.Wrap(err, "source: open trips")
		}
		defer f.Close() //nolint:errcheck
		if err := read(filepath.Base(s.Path), f); err != nil {
			return nil, stats, err
		}
	}

	log.Info("source: trips loaded",
		zap.Int("rows", stats.Rows),
		zap.Int("accepted", len(records)),
		zap.Int("rejected", stats.TotalRejected()),
	)
	return records, stats, nil
}

func (s *TripCSV) readZIP(read func(string, io.Reader) error) error {
	zr, err := zip.OpenReader(s.Path)
	if err != nil {
		return eris.Wrap(err, "source: open trips zip")
	}
	defer zr.Close() //nolint:errcheck

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return eris.Errorf("source: no csv files in %s", s.Path)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for _, f := range entries {
		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "source: open zip entry %s", f.Name)
		}
		err = read(f.Name, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// decode streams rows from r, calling emit for each valid record. Rejections
// carry the file name and the line of the row within that file.
func (s *TripCSV) decode(ctx context.Context, name string, r io.Reader, stats *trip.IngestStats, emit func(trip.Record)) (int, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	cr := csv.NewReader(r)
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "decode header")
	}

	rows := 0
	for {
		if rows%1024 == 0 && ctx.Err() != nil {
			return rows, eris.Wrap(ctx.Err(), "context cancelled")
		}

		// Fresh value per row: csvutil leaves fields untouched for empty cells.
		var row citiBikeRow
		err := dec.Decode(&row)
		if err == io.EOF {
			return rows, nil
		}

		rows++
		stats.Rows++

		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return rows, eris.Wrapf(err, "decode row %d", rows)
			}
			stats.Reject(&trip.UpstreamDataError{File: name, Line: pe.StartLine, Reason: trip.ReasonMalformed, Field: "row", Err: err})
			continue
		}

		line, _ := cr.FieldPos(0)
		raw, err := row.toRaw(name, line, loc)
		if err == nil {
			var rec trip.Record
			rec, err = trip.FromRaw(raw)
			if err == nil {
				emit(rec)
				continue
			}
		}
		stats.Reject(err)
		zap.L().Debug("source: skipping trip row", zap.String("file", name), zap.Int("line", line), zap.Error(err))
	}
}

func (r citiBikeRow) toRaw(file string, line int, loc *time.Location) (trip.RawRow, error) {
	floats := []struct {
		field string
		val   csvFloat
	}{
		{"start_lat", r.StartLat}, {"start_lng", r.StartLng},
		{"end_lat", r.EndLat}, {"end_lng", r.EndLng},
	}
	for _, f := range floats {
		if f.val.Err != nil {
			return trip.RawRow{}, &trip.UpstreamDataError{File: file, Line: line, Field: f.field, Reason: trip.ReasonMalformed, Err: f.val.Err}
		}
	}
	started, err := r.StartedAt.parse(loc)
	if err != nil {
		return trip.RawRow{}, &trip.UpstreamDataError{File: file, Line: line, Field: "started_at", Reason: trip.ReasonMalformed, Err: err}
	}
	ended, err := r.EndedAt.parse(loc)
	if err != nil {
		return trip.RawRow{}, &trip.UpstreamDataError{File: file, Line: line, Field: "ended_at", Reason: trip.ReasonMalformed, Err: err}
	}

	return trip.RawRow{
		File:         file,
		Line:         line,
		BikeType:     r.RideableType.ptr(),
		RiderType:    r.MemberCasual.ptr(),
		StartedAt:    started,
		EndedAt:      ended,
		StartStation: r.StartStation.ptr(),
		EndStation:   r.EndStation.ptr(),
		StartLon:     r.StartLng.ptr(),
		StartLat:     r.StartLat.ptr(),
		EndLon:       r.EndLng.ptr(),
		EndLat:       r.EndLat.ptr(),
	}, nil
}
