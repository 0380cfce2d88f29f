package domain

import "math"

// EarthRadiusKm is the spherical Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance in kilometres between two
// points. Coordinates are not range-checked; out-of-range input gives a
// defined but meaningless result, and NaN input gives NaN.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistancesKm computes the distance from every (lats[i], lons[i]) to ref.
// lats and lons must have the same length.
func DistancesKm(lats, lons []float64, ref Point) []float64 {
	out := make([]float64, len(lats))
	for i := range lats {
		out[i] = Haversine(lats[i], lons[i], ref.Lat, ref.Lon)
	}
	return out
}

// SelectWithin returns the indices whose distance is strictly below maxKm,
// in ascending order. NaN distances are never selected.
func SelectWithin(distances []float64, maxKm float64) []int {
	var idx []int
	for i, d := range distances {
		if d < maxKm {
			idx = append(idx, i)
		}
	}
	return idx
}
