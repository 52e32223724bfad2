package geo

import "math"

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance in kilometers between a and b
// on a sphere of radius EarthRadiusKM. Non-finite inputs yield a non-finite
// result.
func HaversineKM(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h a hair above 1 for antipodal points.
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(math.Min(h, 1)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
