// Package geo provides the geometric primitives used to attribute trips to
// neighbourhoods: great-circle distance and point-in-polygon testing.
//
// Coordinates are longitude-first everywhere, matching GeoJSON and go-geom's
// XY layout.
package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// Coordinate is a (longitude, latitude) pair in decimal degrees.
type Coordinate struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// FromCoord converts a go-geom XY coordinate to a Coordinate.
func FromCoord(c geom.Coord) Coordinate {
	return Coordinate{Lon: c.X(), Lat: c.Y()}
}

// Coord returns the coordinate in go-geom XY layout.
func (c Coordinate) Coord() geom.Coord {
	return geom.Coord{c.Lon, c.Lat}
}

// Valid reports whether both components are finite and within WGS84 ranges.
func (c Coordinate) Valid() bool {
	return c.Finite() &&
		c.Lat >= -90 && c.Lat <= 90 &&
		c.Lon >= -180 && c.Lon <= 180
}

// Finite reports whether neither component is NaN or infinite.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0) &&
		!math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lon, c.Lat)
}
