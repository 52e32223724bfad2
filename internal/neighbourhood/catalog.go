// Package neighbourhood builds the ordered catalog of neighbourhood polygons
// that stations are resolved against.
package neighbourhood

import (
	"slices"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/tripgeo/internal/geo"
)

// DefaultExcludeBoroughs lists the boroughs without bike-share coverage.
var DefaultExcludeBoroughs = []string{"Staten Island"}

// Boundary is a raw boundary record as produced by a boundary source.
type Boundary struct {
	Neighbourhood string
	Borough       string
	Geometry      geom.T
	// Source identifies the record for error messages (feature id or index).
	Source string
}

// Entry is one neighbourhood polygon in the catalog.
type Entry struct {
	Neighbourhood string
	Borough       string
	Polygon       geo.Polygon

	bounds *geom.Bounds
}

// Contains reports whether the entry's polygon contains p.
func (e Entry) Contains(p geo.Coordinate) bool {
	if e.bounds != nil && !geo.InBounds(p, e.bounds) {
		return false
	}
	return geo.PointInPolygon(p, e.Polygon)
}

// Options configures NewCatalog.
type Options struct {
	// ExcludeBoroughs are dropped from the catalog by exact name match.
	ExcludeBoroughs []string
}

// DefaultOptions returns the options used for the NYC boundary dataset.
func DefaultOptions() Options {
	return Options{ExcludeBoroughs: slices.Clone(DefaultExcludeBoroughs)}
}

// Catalog is an immutable list of neighbourhood entries sorted by name.
// Iteration order decides which neighbourhood wins when polygons overlap.
type Catalog struct {
	entries []Entry
}

// NewCatalog projects boundaries to catalog entries, drops excluded boroughs
// and sorts by neighbourhood name. It returns a *ConfigurationError if a
// retained boundary has no usable ring or if nothing is left after exclusion.
func NewCatalog(boundaries []Boundary, opts Options) (*Catalog, error) {
	excluded := make(map[string]bool, len(opts.ExcludeBoroughs))
	for _, b := range opts.ExcludeBoroughs {
		excluded[b] = true
	}

	entries := make([]Entry, 0, len(boundaries))
	for _, b := range boundaries {
		if excluded[b.Borough] {
			continue
		}

		ring, err := firstRing(b)
		if err != nil {
			return nil, err
		}
		poly := geo.PolygonFromRing(ring)
		if poly.DistinctPoints() < 3 {
			return nil, &ConfigurationError{
				Neighbourhood: b.Neighbourhood,
				Source:        b.Source,
				Reason:        "ring has fewer than 3 distinct points",
			}
		}

		entries = append(entries, Entry{
			Neighbourhood: b.Neighbourhood,
			Borough:       b.Borough,
			Polygon:       poly,
			bounds:        poly.Bounds(),
		})
	}

	if len(entries) == 0 {
		return nil, &ConfigurationError{Reason: "catalog is empty after borough exclusion"}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Neighbourhood < entries[j].Neighbourhood
	})

	return &Catalog{entries: entries}, nil
}

// firstRing returns the outer ring of the first polygon in the geometry.
func firstRing(b Boundary) (*geom.LinearRing, error) {
	var poly *geom.Polygon
	switch g := b.Geometry.(type) {
	case *geom.Polygon:
		poly = g
	case *geom.MultiPolygon:
		if g.NumPolygons() > 0 {
			poly = g.Polygon(0)
		}
	case nil:
		return nil, &ConfigurationError{Neighbourhood: b.Neighbourhood, Source: b.Source, Reason: "missing geometry"}
	default:
		return nil, &ConfigurationError{Neighbourhood: b.Neighbourhood, Source: b.Source, Reason: "unsupported geometry type"}
	}

	if poly == nil || poly.NumLinearRings() == 0 {
		return nil, &ConfigurationError{Neighbourhood: b.Neighbourhood, Source: b.Source, Reason: "empty polygon"}
	}
	return poly.LinearRing(0), nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

// Boroughs returns the distinct boroughs present in the catalog, sorted.
func (c *Catalog) Boroughs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.entries {
		if !seen[e.Borough] {
			seen[e.Borough] = true
			out = append(out, e.Borough)
		}
	}
	sort.Strings(out)
	return out
}

// First returns the first entry in catalog order containing p.
func (c *Catalog) First(p geo.Coordinate) (Entry, bool) {
	for _, e := range c.entries {
		if e.Contains(p) {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup returns every entry containing p, in catalog order.
func (c *Catalog) Lookup(p geo.Coordinate) []Entry {
	var matches []Entry
	for _, e := range c.entries {
		if e.Contains(p) {
			matches = append(matches, e)
		}
	}
	return matches
}
