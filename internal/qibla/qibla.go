// Package qibla computes the direction of the Kaaba from a position on Earth.
package qibla

import "math"

const (
	KaabaLat = 21.422487
	KaabaLon = 39.826206

	// AlignmentTolerance is the angular distance, in degrees, within which a
	// heading counts as facing the qibla
	AlignmentTolerance = 5.0

	earthRadiusKm = 6371.0
)

// Bearing returns the initial great-circle bearing from (lat, lon) to the
// Kaaba in degrees clockwise from true north, normalised to [0, 360).
func Bearing(lat, lon float64) float64 {
	phi := toRadians(lat)
	phiK := toRadians(KaabaLat)
	deltaLambda := toRadians(KaabaLon - lon)

	psi := math.Atan2(
		math.Sin(deltaLambda),
		math.Cos(phi)*math.Tan(phiK)-math.Sin(phi)*math.Cos(deltaLambda),
	)
	return Normalize(toDegrees(psi))
}

// Distance returns the great-circle distance to the Kaaba in kilometres
func Distance(lat, lon float64) float64 {
	phi1, phi2 := toRadians(lat), toRadians(KaabaLat)
	dPhi := phi2 - phi1
	dLambda := toRadians(KaabaLon - lon)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// AngularDistance returns the smallest angle between two bearings, in [0, 180]
func AngularDistance(a, b float64) float64 {
	diff := math.Abs(Normalize(a) - Normalize(b))
	return math.Min(diff, 360-diff)
}

// Aligned reports whether heading is within AlignmentTolerance of bearing
func Aligned(heading, bearing float64) bool {
	return AngularDistance(heading, bearing) <= AlignmentTolerance
}

// Normalize maps any angle in degrees into [0, 360)
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
