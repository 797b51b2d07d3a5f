// Package geo holds the static geographic reference data and the random
// point operations used by the geocoder: a street-name coordinate table, the
// district polygons with their lookup vocabulary, point jitter, and uniform
// polygon sampling.
package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// District is one named area polygon (postal code or city district).
type District struct {
	Name     string
	Geometry orb.MultiPolygon
}

// VocabEntry is one token of the district vocabulary. Tokens are matched
// against message text in slice order; Canonical is the district name the
// token resolves to.
type VocabEntry struct {
	Token     string
	Canonical string
}

// Table is the read-only lookup table for geocoding. Loaded once at startup
// and never mutated afterwards, so it is safe for concurrent readers.
type Table struct {
	streets   map[string]orb.Point
	districts map[string]orb.MultiPolygon
	vocab     []VocabEntry
}

// NewTable builds a table from in-memory data. District order defines the
// vocabulary priority: canonical names first, in the given order, then the
// "kreisN"-style aliases.
func NewTable(streets map[string]orb.Point, districts []District) *Table {
	t := &Table{
		streets:   make(map[string]orb.Point, len(streets)),
		districts: make(map[string]orb.MultiPolygon, len(districts)),
	}
	for name, p := range streets {
		t.streets[strings.ToLower(name)] = p
	}

	// Canonical names first; alias tokens are appended after all of them
	// so a canonical match always wins over a nickname.
	var aliases []VocabEntry
	for _, d := range districts {
		name := strings.ToLower(d.Name)
		t.districts[name] = d.Geometry
		t.vocab = append(t.vocab, VocabEntry{Token: name, Canonical: name})
		if strings.Contains(name, "kreis") {
			parts := strings.Split(name, " ")
			number := parts[len(parts)-1]
			aliases = append(aliases,
				VocabEntry{Token: "k" + number, Canonical: name},
				VocabEntry{Token: "kreis" + number, Canonical: name},
			)
		}
	}
	t.vocab = append(t.vocab, aliases...)
	return t
}

// Street returns the coordinate for a street name (matched case-insensitively
// on the bare name, without house number).
func (t *Table) Street(name string) (orb.Point, bool) {
	p, ok := t.streets[strings.ToLower(name)]
	return p, ok
}

// DistrictPolygon returns the polygon for a canonical district name.
func (t *Table) DistrictPolygon(name string) (orb.MultiPolygon, bool) {
	g, ok := t.districts[strings.ToLower(name)]
	return g, ok
}

// Vocabulary returns the ordered district token list. The order is a
// deliberate match priority, not alphabetical.
func (t *Table) Vocabulary() []VocabEntry {
	return t.vocab
}

// Load reads the street coordinate CSV and the district polygon GeoJSON from
// disk and builds the lookup table.
func Load(streetsPath, districtsPath string) (*Table, error) {
	streets, err := loadStreets(streetsPath)
	if err != nil {
		return nil, fmt.Errorf("load streets: %w", err)
	}
	districts, err := loadDistricts(districtsPath)
	if err != nil {
		return nil, fmt.Errorf("load districts: %w", err)
	}
	return NewTable(streets, districts), nil
}

// loadStreets parses the precomputed "name,x,y" CSV (x=lon, y=lat). A header
// row is skipped when present.
func loadStreets(path string) (map[string]orb.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	streets := make(map[string]orb.Point)
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lon, lonErr := strconv.ParseFloat(record[1], 64)
		lat, latErr := strconv.ParseFloat(record[2], 64)
		if lonErr != nil || latErr != nil {
			if first {
				first = false
				continue // header row
			}
			return nil, fmt.Errorf("bad coordinate row %q", record)
		}
		first = false
		streets[strings.ToLower(record[0])] = orb.Point{lon, lat}
	}
	return streets, nil
}

// loadDistricts parses a GeoJSON feature collection whose features carry a
// "name" property and a polygon or multipolygon geometry.
func loadDistricts(path string) ([]District, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	districts := make([]District, 0, len(fc.Features))
	for _, feature := range fc.Features {
		name, _ := feature.Properties["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("district feature without name property")
		}
		var geometry orb.MultiPolygon
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			geometry = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geometry = g
		default:
			return nil, fmt.Errorf("district %q: unsupported geometry %T", name, feature.Geometry)
		}
		districts = append(districts, District{Name: name, Geometry: geometry})
	}
	return districts, nil
}
