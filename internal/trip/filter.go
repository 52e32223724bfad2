package trip

import "time"

// DefaultMinSameStationDuration is the shortest same-station trip kept by Filter.
const DefaultMinSameStationDuration = 5 * time.Minute

// FilterOptions configures Filter.
type FilterOptions struct {
	// MinSameStationDuration drops trips that start and end at the same
	// station in less than this time. Zero means DefaultMinSameStationDuration.
	MinSameStationDuration time.Duration
}

// Filter drops same-station trips shorter than the configured minimum
// (bike checks, failed unlocks) and keeps everything else in input order.
func Filter(records []Record, opts FilterOptions) []Record {
	minDur := opts.MinSameStationDuration
	if minDur == 0 {
		minDur = DefaultMinSameStationDuration
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.StartStation == r.EndStation && r.Duration() < minDur {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
