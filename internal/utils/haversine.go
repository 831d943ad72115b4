package utils

import "math"

const earthRadiusKm = 6371.0

// avgDriveSpeedKmh approximates urban shuttle speed for drive-time
// estimates between pickup stops.
const avgDriveSpeedKmh = 30.0

func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DriveMinutes estimates door-to-door drive time between two points,
// never less than one minute for distinct stops.
func DriveMinutes(lat1, lon1, lat2, lon2 float64) int {
	km := HaversineKm(lat1, lon1, lat2, lon2)
	if km == 0 {
		return 0
	}
	m := int(math.Ceil(km / avgDriveSpeedKmh * 60))
	if m < 1 {
		m = 1
	}
	return m
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}
