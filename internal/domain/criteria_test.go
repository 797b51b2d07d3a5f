package domain

import (
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriteriaDefaults(t *testing.T) {
	c := ParseCriteria(url.Values{})
	assert.Equal(t, DefaultCriteria(), c)
	assert.Nil(t, c.Box)
	assert.True(t, c.ShowGoods)
	assert.True(t, c.ShowFood)
	assert.True(t, c.ShowPermanent)
	assert.Equal(t, DefaultMaxAgeDays, c.MaxAgeDays)
}

func TestParseCriteriaFullQuery(t *testing.T) {
	c := ParseCriteria(url.Values{
		"nelat":                []string{"47.5"},
		"nelng":                []string{"8.6"},
		"swlat":                []string{"47.3"},
		"swlng":                []string{"8.4"},
		"show_goods":           []string{"false"},
		"show_food":            []string{"true"},
		"show_permanent":       []string{"false"},
		"food_subcategory":     []string{"Fridge"},
		"time_posted_max_days": []string{"7"},
	})

	require.NotNil(t, c.Box)
	assert.Equal(t, BoundingBox{NELat: 47.5, NELng: 8.6, SWLat: 47.3, SWLng: 8.4}, *c.Box)
	assert.False(t, c.ShowGoods)
	assert.True(t, c.ShowFood)
	assert.False(t, c.ShowPermanent)
	assert.Equal(t, "Fridge", c.FoodSubcategory)
	assert.Equal(t, SubcategoryAll, c.GoodsSubcategory)
	assert.Equal(t, 7, c.MaxAgeDays)
}

func TestParseCriteriaMalformedFallsBack(t *testing.T) {
	c := ParseCriteria(url.Values{
		"nelat":                []string{"47.5"}, // box incomplete
		"show_goods":           []string{"maybe"},
		"time_posted_max_days": []string{"-3"},
	})

	assert.Nil(t, c.Box, "a partial bounding box is ignored")
	assert.True(t, c.ShowGoods, "unparseable boolean degrades to the default")
	assert.Equal(t, DefaultMaxAgeDays, c.MaxAgeDays, "negative window is rejected")
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{NELat: 47.5, NELng: 8.6, SWLat: 47.3, SWLng: 8.4}
	assert.True(t, box.Contains(8.5, 47.4))
	assert.True(t, box.Contains(8.4, 47.3), "corner is inclusive")
	assert.False(t, box.Contains(8.7, 47.4))
	assert.False(t, box.Contains(8.5, 47.2))
}

func TestMatches(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-24 * time.Hour)

	posting := func(mutate func(*Posting)) *Posting {
		p := &Posting{
			Category:    CategoryGoods,
			Subcategory: SubcategoryAll,
			Status:      StatusTemporary,
			TimePosted:  fresh,
			Geometry:    orb.Point{8.5, 47.4},
		}
		if mutate != nil {
			mutate(p)
		}
		return p
	}

	tests := []struct {
		name     string
		criteria func(*FilterCriteria)
		posting  func(*Posting)
		want     bool
	}{
		{"defaults match", nil, nil, true},
		{"both categories off matches nothing", func(c *FilterCriteria) {
			c.ShowGoods = false
			c.ShowFood = false
		}, nil, false},
		{"goods hidden", func(c *FilterCriteria) { c.ShowGoods = false }, nil, false},
		{"food hidden excludes food", func(c *FilterCriteria) { c.ShowFood = false },
			func(p *Posting) { p.Category = CategoryFood }, false},
		{"food hidden keeps goods", func(c *FilterCriteria) { c.ShowFood = false }, nil, true},
		{"subcategory mismatch", func(c *FilterCriteria) { c.GoodsSubcategory = "Clothes" }, nil, false},
		{"subcategory match", func(c *FilterCriteria) { c.GoodsSubcategory = "Clothes" },
			func(p *Posting) { p.Subcategory = "Clothes" }, true},
		{"subcategory of hidden category is ignored", func(c *FilterCriteria) { c.FoodSubcategory = "Fridge" }, nil, true},
		{"permanent hidden", func(c *FilterCriteria) { c.ShowPermanent = false },
			func(p *Posting) { p.Status = StatusPermanent }, false},
		{"too old", nil, func(p *Posting) { p.TimePosted = now.AddDate(0, 0, -21) }, false},
		{"exactly at the window edge", nil, func(p *Posting) { p.TimePosted = now.AddDate(0, 0, -20) }, true},
		{"zero window excludes yesterday", func(c *FilterCriteria) { c.MaxAgeDays = 0 }, nil, false},
		{"outside the box", func(c *FilterCriteria) {
			c.Box = &BoundingBox{NELat: 47.5, NELng: 8.6, SWLat: 47.3, SWLng: 8.4}
		}, func(p *Posting) { p.Geometry = orb.Point{9.0, 47.4} }, false},
		{"inside the box", func(c *FilterCriteria) {
			c.Box = &BoundingBox{NELat: 47.5, NELng: 8.6, SWLat: 47.3, SWLng: 8.4}
		}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria()
			if tt.criteria != nil {
				tt.criteria(&c)
			}
			assert.Equal(t, tt.want, c.Matches(posting(tt.posting), now))
		})
	}
}
