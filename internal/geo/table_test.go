package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableVocabularyOrder(t *testing.T) {
	table := NewTable(nil, []District{
		{Name: "Wipkingen", Geometry: squarePolygon(8.4, 47.3, 8.6, 47.5)},
		{Name: "Kreis 5", Geometry: squarePolygon(8.4, 47.3, 8.6, 47.5)},
		{Name: "Kreis 10", Geometry: squarePolygon(8.4, 47.3, 8.6, 47.5)},
	})

	tokens := make([]string, 0, len(table.Vocabulary()))
	for _, entry := range table.Vocabulary() {
		tokens = append(tokens, entry.Token)
	}
	// Canonical names first in input order, then the aliases.
	assert.Equal(t, []string{
		"wipkingen", "kreis 5", "kreis 10",
		"k5", "kreis5", "k10", "kreis10",
	}, tokens)

	for _, entry := range table.Vocabulary() {
		if entry.Token == "k5" || entry.Token == "kreis5" {
			assert.Equal(t, "kreis 5", entry.Canonical)
		}
	}
}

func TestTableLookupsAreCaseInsensitive(t *testing.T) {
	table := NewTable(
		map[string]orb.Point{"Bahnhofstrasse": {8.54, 47.37}},
		[]District{{Name: "Wipkingen", Geometry: squarePolygon(8.4, 47.3, 8.6, 47.5)}},
	)

	p, ok := table.Street("bahnhofstrasse")
	require.True(t, ok)
	assert.Equal(t, orb.Point{8.54, 47.37}, p)

	_, ok = table.Street("langstrasse")
	assert.False(t, ok)

	_, ok = table.DistrictPolygon("WIPKINGEN")
	assert.True(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	streetsPath := filepath.Join(dir, "streets.csv")
	require.NoError(t, os.WriteFile(streetsPath, []byte(
		"name,x,y\nBahnhofstrasse,8.5390,47.3720\nLangstrasse,8.5290,47.3790\n",
	), 0o644))

	districtsPath := filepath.Join(dir, "districts.geojson")
	require.NoError(t, os.WriteFile(districtsPath, []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "Kreis 5"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[8.4,47.3],[8.6,47.3],[8.6,47.5],[8.4,47.5],[8.4,47.3]]]
			}
		}]
	}`), 0o644))

	table, err := Load(streetsPath, districtsPath)
	require.NoError(t, err)

	p, ok := table.Street("Bahnhofstrasse")
	require.True(t, ok)
	assert.InDelta(t, 8.5390, p.Lon(), 1e-9)
	assert.InDelta(t, 47.3720, p.Lat(), 1e-9)

	_, ok = table.DistrictPolygon("kreis 5")
	assert.True(t, ok)
	assert.Len(t, table.Vocabulary(), 3) // canonical + two aliases
}

func TestLoadStreetsRejectsBadRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streets.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"name,x,y\nBahnhofstrasse,8.5,47.3\nBroken,notanumber,47.3\n",
	), 0o644))

	_, err := loadStreets(path)
	assert.Error(t, err)
}

func TestLoadDistrictsRequiresName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "districts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0,0],[1,0],[1,1],[0,0]]]
			}
		}]
	}`), 0o644))

	_, err := loadDistricts(path)
	assert.Error(t, err)
}
