// Package geocode turns posting candidates into point geometries. Street
// names resolve against the coordinate table and get a small random jitter;
// candidates with only a district fall back to a random point inside the
// district polygon when the caller enables that mode.
package geocode

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/paulmach/orb"

	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/geo"
)

// nameLimit is the display-name length for chat-sourced postings, in runes.
const nameLimit = 50

// Geocoder resolves candidates against the lookup table. Not safe for
// concurrent use; each ingestion consumer owns its own instance.
type Geocoder struct {
	table   *geo.Table
	radiusM float64
	rng     *rand.Rand
}

// New creates a geocoder with the default jitter radius.
func New(table *geo.Table, rng *rand.Rand) *Geocoder {
	return &Geocoder{
		table:   table,
		radiusM: geo.DefaultJitterRadiusM,
		rng:     rng,
	}
}

// Geocode resolves a single candidate through the street path. Candidates
// without a resolvable street are ErrMissingCoordinates; use GeocodeBatch
// with district fallback to also place district-only candidates.
func (g *Geocoder) Geocode(candidate *domain.PostingCandidate) (*domain.GeocodedPosting, error) {
	if point, ok := g.streetPoint(candidate); ok {
		return g.build(candidate, point), nil
	}
	return nil, domain.ErrMissingCoordinates
}

// GeocodeBatch resolves a batch of candidates. Street-resolvable candidates
// are jittered; with districtFallback enabled, the rest are grouped by
// district and assigned independently uniform points sampled inside the
// district polygon, with a strict count check: a mismatch between sampled
// points and candidates is ErrSampleCountMismatch and aborts the whole batch.
// Candidates with no producible geometry are returned as rejected. The
// returned postings preserve the input order of the accepted candidates.
func (g *Geocoder) GeocodeBatch(candidates []*domain.PostingCandidate, districtFallback bool) (geocoded []*domain.GeocodedPosting, rejected []*domain.PostingCandidate, err error) {
	resolved := make(map[*domain.PostingCandidate]orb.Point, len(candidates))
	byDistrict := make(map[string][]*domain.PostingCandidate)

	for _, candidate := range candidates {
		if point, ok := g.streetPoint(candidate); ok {
			resolved[candidate] = point
			continue
		}
		if districtFallback && candidate.Zip != "" {
			if _, ok := g.table.DistrictPolygon(candidate.Zip); ok {
				byDistrict[candidate.Zip] = append(byDistrict[candidate.Zip], candidate)
				continue
			}
		}
		rejected = append(rejected, candidate)
	}

	for district, group := range byDistrict {
		polygon, _ := g.table.DistrictPolygon(district)
		points, err := geo.SamplePoints(polygon, len(group), g.rng)
		if err != nil {
			return nil, nil, fmt.Errorf("sample district %q: %w", district, err)
		}
		if len(points) != len(group) {
			return nil, nil, fmt.Errorf("district %q: %d candidates, %d points: %w",
				district, len(group), len(points), domain.ErrSampleCountMismatch)
		}
		for i, candidate := range group {
			resolved[candidate] = points[i]
		}
	}

	for _, candidate := range candidates {
		if point, ok := resolved[candidate]; ok {
			geocoded = append(geocoded, g.build(candidate, point))
		}
	}
	return geocoded, rejected, nil
}

// streetPoint looks up the candidate's street (first word, case-insensitive)
// and applies jitter on a hit.
func (g *Geocoder) streetPoint(candidate *domain.PostingCandidate) (orb.Point, bool) {
	if candidate.Street == "" {
		return orb.Point{}, false
	}
	bare := strings.Fields(candidate.Street)[0]
	point, ok := g.table.Street(bare)
	if !ok {
		return orb.Point{}, false
	}
	return geo.Jitter(point, g.radiusM, g.rng), true
}

func (g *Geocoder) build(candidate *domain.PostingCandidate, point orb.Point) *domain.GeocodedPosting {
	return &domain.GeocodedPosting{
		PostingCandidate: *candidate,
		Geometry:         &point,
		Address:          ComposeAddress(candidate.Street, candidate.Zip),
		Name:             DisplayName(candidate.MessageText),
	}
}

// ComposeAddress joins street and district into the display address:
// space-separated, trimmed, empty when neither is present.
func ComposeAddress(street, zip string) string {
	return strings.TrimSpace(street + " " + zip)
}

// DisplayName derives the feed title from message text: first 50 characters,
// embedded newlines replaced by spaces.
func DisplayName(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) > nameLimit {
		runes = runes[:nameLimit]
	}
	return string(runes)
}
