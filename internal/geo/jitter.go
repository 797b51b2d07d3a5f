package geo

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
)

const earthRadiusM = 6_371_000.0

// DefaultJitterRadiusM is the disk radius used to mask building-level
// precision on street-resolved postings.
const DefaultJitterRadiusM = 20.0

// Jitter offsets a WGS84 point by a random vector drawn uniformly from a disk
// of the given radius in meters. The radius is scaled by sqrt(u) so points
// are uniform over the disk area, not clustered at the center. The longitude
// delta is corrected by 1/cos(lat) for meridian convergence; within 1e-12 of
// a pole the longitude is left unchanged. The result is wrapped to
// [-180, 180) and clamped to [-90, 90].
func Jitter(p orb.Point, radiusM float64, rng *rand.Rand) orb.Point {
	theta := rng.Float64() * 2 * math.Pi
	r := radiusM * math.Sqrt(rng.Float64())

	dx := r * math.Cos(theta) // meters east
	dy := r * math.Sin(theta) // meters north

	latRad := p.Lat() * math.Pi / 180
	dLat := (dy / earthRadiusM) * (180 / math.Pi)

	var dLon float64
	if cosLat := math.Cos(latRad); math.Abs(cosLat) >= 1e-12 {
		dLon = (dx / (earthRadiusM * cosLat)) * (180 / math.Pi)
	}

	return orb.Point{wrapLon(p.Lon() + dLon), clampLat(p.Lat() + dLat)}
}

// wrapLon wraps a longitude to [-180, 180).
func wrapLon(lon float64) float64 {
	return math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}
