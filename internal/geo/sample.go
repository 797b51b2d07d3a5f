package geo

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// maxSampleAttempts bounds rejection sampling per point. District polygons
// cover a large fraction of their bound, so hitting this means broken data.
const maxSampleAttempts = 10_000

// SampleInPolygon draws one point uniformly at random inside the polygon by
// rejection sampling over its bounding box.
func SampleInPolygon(g orb.MultiPolygon, rng *rand.Rand) (orb.Point, error) {
	bound := g.Bound()
	if bound.IsEmpty() {
		return orb.Point{}, fmt.Errorf("empty polygon bound")
	}
	for range maxSampleAttempts {
		p := orb.Point{
			bound.Min.Lon() + rng.Float64()*(bound.Max.Lon()-bound.Min.Lon()),
			bound.Min.Lat() + rng.Float64()*(bound.Max.Lat()-bound.Min.Lat()),
		}
		if planar.MultiPolygonContains(g, p) {
			return p, nil
		}
	}
	return orb.Point{}, fmt.Errorf("no point found in polygon after %d attempts", maxSampleAttempts)
}

// SamplePoints draws n independent uniform points inside the polygon.
func SamplePoints(g orb.MultiPolygon, n int, rng *rand.Rand) ([]orb.Point, error) {
	points := make([]orb.Point, 0, n)
	for range n {
		p, err := SampleInPolygon(g, rng)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}
