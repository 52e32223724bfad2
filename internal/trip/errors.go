package trip

import "fmt"

// Rejection reasons reported by FromRaw.
const (
	ReasonMissingField     = "missing_field"
	ReasonBadCoordinate    = "bad_coordinate"
	ReasonNegativeDuration = "negative_duration"
	ReasonMalformed        = "malformed"
)

// UpstreamDataError describes a raw trip row that cannot enter the pipeline.
// File and Line locate the row in its source; Line counts the header as 1.
type UpstreamDataError struct {
	File   string
	Line   int
	Field  string
	Reason string
	Err    error
}

func (e *UpstreamDataError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.File != "" {
		loc = e.File + " " + loc
	}
	msg := fmt.Sprintf("trip: %s: %s (%s)", loc, e.Reason, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamDataError) Unwrap() error {
	return e.Err
}
