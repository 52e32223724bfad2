// Package source reads trip logs and neighbourhood boundaries from files.
package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"1/2/2006 15:04:05",
}

// csvString is a trimmed, NFC-normalised CSV value. Blank means missing.
type csvString struct {
	Value string
	Valid bool
}

func (s *csvString) UnmarshalCSV(b []byte) error {
	v := norm.NFC.String(strings.TrimSpace(string(b)))
	*s = csvString{Value: v, Valid: v != ""}
	return nil
}

func (s csvString) ptr() *string {
	if !s.Valid {
		return nil
	}
	return &s.Value
}

// csvFloat is an optional float value. Parse failures are kept in Err so a
// single bad row does not abort the file.
type csvFloat struct {
	Value float64
	Valid bool
	Err   error
}

func (f *csvFloat) UnmarshalCSV(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		*f = csvFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*f = csvFloat{Err: eris.Wrapf(err, "parse float %q", raw)}
		return nil
	}
	*f = csvFloat{Value: v, Valid: true}
	return nil
}

func (f csvFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Value
}

// csvTime is an optional timestamp in one of timestampLayouts. The location
// is applied by the reader after decoding.
type csvTime struct {
	Raw   string
	Valid bool
}

func (t *csvTime) UnmarshalCSV(b []byte) error {
	raw := strings.TrimSpace(string(b))
	*t = csvTime{Raw: raw, Valid: raw != ""}
	return nil
}

func (t csvTime) parse(loc *time.Location) (*time.Time, error) {
	if !t.Valid {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, t.Raw, loc); err == nil {
			return &ts, nil
		}
	}
	return nil, eris.Errorf("unrecognised timestamp %q", t.Raw)
}
