package station

import (
	"sort"

	"github.com/sells-group/tripgeo/internal/geo"
)

// Assignment maps a station to the neighbourhood containing its point.
type Assignment struct {
	Station       string         `json:"station"`
	Borough       string         `json:"borough"`
	Neighbourhood string         `json:"neighbourhood"`
	Point         geo.Coordinate `json:"point"`
}

// Resolution is the station to neighbourhood table. It holds at most one
// assignment per station name.
type Resolution struct {
	byName map[string]Assignment

	// Unresolved lists stations whose point fell in no polygon, sorted.
	Unresolved []string
	// Ambiguous maps stations matching several polygons to every candidate
	// neighbourhood in catalog order. Only populated by an audited resolve.
	Ambiguous map[string][]string
}

// NewResolution builds a Resolution from assignments. When a station name
// repeats, the first assignment wins.
func NewResolution(assignments []Assignment) *Resolution {
	r := &Resolution{byName: make(map[string]Assignment, len(assignments))}
	for _, a := range assignments {
		if _, dup := r.byName[a.Station]; dup {
			continue
		}
		r.byName[a.Station] = a
	}
	return r
}

// Lookup returns the assignment for a station name.
func (r *Resolution) Lookup(station string) (Assignment, bool) {
	if r == nil {
		return Assignment{}, false
	}
	a, ok := r.byName[station]
	return a, ok
}

// Len returns the number of resolved stations.
func (r *Resolution) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byName)
}

// Assignments returns every assignment sorted by station name.
func (r *Resolution) Assignments() []Assignment {
	if r == nil {
		return nil
	}
	out := make([]Assignment, 0, len(r.byName))
	for _, a := range r.byName {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}
