package geo

import (
	"github.com/twpayne/go-geom"
)

// Polygon is a single closed ring of coordinates. The ring may repeat its
// first vertex at the end; both forms are accepted.
type Polygon []Coordinate

// PolygonFromRing converts a go-geom linear ring to a Polygon.
func PolygonFromRing(ring *geom.LinearRing) Polygon {
	if ring == nil {
		return nil
	}
	coords := ring.Coords()
	poly := make(Polygon, 0, len(coords))
	for _, c := range coords {
		poly = append(poly, FromCoord(c))
	}
	return poly
}

// Ring returns the polygon as a go-geom linear ring.
func (p Polygon) Ring() *geom.LinearRing {
	flat := make([]float64, 0, len(p)*2)
	for _, c := range p {
		flat = append(flat, c.Lon, c.Lat)
	}
	return geom.NewLinearRingFlat(geom.XY, flat)
}

// Bounds returns the bounding box of the ring.
func (p Polygon) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Extend(p.Ring())
}

// DistinctPoints returns the number of distinct vertices in the ring.
func (p Polygon) DistinctPoints() int {
	seen := make(map[Coordinate]struct{}, len(p))
	for _, c := range p {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// PointInPolygon reports whether point lies inside poly using even-odd ray
// casting. Edges are half-open: an edge is crossed only when exactly one of
// its endpoints lies strictly above the point, and only when the crossing is
// strictly to the right of the point. Points on a ring's left or bottom edge
// therefore count as inside and points on its right or top edge as outside.
// Rings with fewer than 3 vertices contain nothing.
func PointInPolygon(point Coordinate, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	x, y := point.Lon, point.Lat
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i].Lon, poly[i].Lat
		xj, yj := poly[j].Lon, poly[j].Lat
		if (yi > y) != (yj > y) {
			xCross := xi + (y-yi)*(xj-xi)/(yj-yi)
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// InBounds reports whether point falls within b, inclusive of its edges.
func InBounds(point Coordinate, b *geom.Bounds) bool {
	if b == nil || b.IsEmpty() {
		return false
	}
	return point.Lon >= b.Min(0) && point.Lon <= b.Max(0) &&
		point.Lat >= b.Min(1) && point.Lat <= b.Max(1)
}
