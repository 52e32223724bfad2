package trip

import "errors"

// MaxSamples bounds the rejection messages kept by IngestStats.
const MaxSamples = 20

// IngestStats counts raw rows seen by a source and why rows were rejected.
// Samples keeps the first rejection messages so bad rows can be found in the
// source files.
type IngestStats struct {
	Rows     int            `json:"rows"`
	Rejected map[string]int `json:"rejected"`
	Samples  []string       `json:"samples,omitempty"`
}

// Reject counts a rejected row under the reason carried by err.
func (s *IngestStats) Reject(err error) {
	if s.Rejected == nil {
		s.Rejected = make(map[string]int)
	}
	reason := ReasonMalformed
	var ude *UpstreamDataError
	if errors.As(err, &ude) && ude.Reason != "" {
		reason = ude.Reason
	}
	s.Rejected[reason]++
	if len(s.Samples) < MaxSamples {
		s.Samples = append(s.Samples, err.Error())
	}
}

// TotalRejected sums rejections over all reasons.
func (s IngestStats) TotalRejected() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// Accepted returns the number of rows that passed validation.
func (s IngestStats) Accepted() int {
	return s.Rows - s.TotalRejected()
}
