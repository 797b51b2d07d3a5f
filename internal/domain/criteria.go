package domain

import (
	"net/url"
	"strconv"
	"time"
)

// MaxResults caps any single feed query regardless of match count.
const MaxResults = 200

// DefaultMaxAgeDays is the default recency window for the feed.
const DefaultMaxAgeDays = 20

// BoundingBox is a lat/lng box given by its north-east and south-west
// corners.
type BoundingBox struct {
	NELat float64
	NELng float64
	SWLat float64
	SWLng float64
}

// Contains reports whether the point lies within the box.
func (b BoundingBox) Contains(lng, lat float64) bool {
	return lat >= b.SWLat && lat <= b.NELat && lng >= b.SWLng && lng <= b.NELng
}

// FilterCriteria is the feed query filter. All fields are optional with
// defaults; malformed request values degrade to the default rather than
// erroring.
type FilterCriteria struct {
	// Box restricts results spatially. Nil means no restriction; it is
	// only set when all four corners were supplied.
	Box *BoundingBox

	// ShowGoods and ShowFood gate the two categories. Both default to
	// true. When both are false the feed is empty (the legacy behavior of
	// skipping the category filter entirely was judged unintended).
	ShowGoods bool
	ShowFood  bool

	// GoodsSubcategory and FoodSubcategory restrict within a category when
	// set to something other than "All" and the category is shown.
	GoodsSubcategory string
	FoodSubcategory  string

	// ShowPermanent includes postings without an expiration date.
	ShowPermanent bool

	// MaxAgeDays excludes postings older than now minus this many days.
	// Always applied; 0 excludes everything posted before "now".
	MaxAgeDays int
}

// DefaultCriteria returns the criteria applied when a request carries no
// filter parameters.
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		ShowGoods:        true,
		ShowFood:         true,
		GoodsSubcategory: SubcategoryAll,
		FoodSubcategory:  SubcategoryAll,
		ShowPermanent:    true,
		MaxAgeDays:       DefaultMaxAgeDays,
	}
}

// ParseCriteria builds criteria from request query values. Unknown or
// malformed values fall back to their defaults; this never fails.
func ParseCriteria(values url.Values) FilterCriteria {
	c := DefaultCriteria()

	if b, ok := parseBox(values); ok {
		c.Box = &b
	}
	c.ShowGoods = parseBoolDefault(values.Get("show_goods"), c.ShowGoods)
	c.ShowFood = parseBoolDefault(values.Get("show_food"), c.ShowFood)
	c.ShowPermanent = parseBoolDefault(values.Get("show_permanent"), c.ShowPermanent)

	if v := values.Get("goods_subcategory"); v != "" {
		c.GoodsSubcategory = v
	}
	if v := values.Get("food_subcategory"); v != "" {
		c.FoodSubcategory = v
	}
	if v := values.Get("time_posted_max_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxAgeDays = n
		}
	}
	return c
}

// parseBox returns a bounding box only when all four corners parse.
func parseBox(values url.Values) (BoundingBox, bool) {
	var b BoundingBox
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"nelat", &b.NELat},
		{"nelng", &b.NELng},
		{"swlat", &b.SWLat},
		{"swlng", &b.SWLng},
	} {
		v := values.Get(f.key)
		if v == "" {
			return BoundingBox{}, false
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return BoundingBox{}, false
		}
		*f.dst = n
	}
	return b, true
}

func parseBoolDefault(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Matches is the canonical filter predicate. The SQL translation in the
// postgres store mirrors it clause for clause.
func (c FilterCriteria) Matches(p *Posting, now time.Time) bool {
	if !c.ShowGoods && !c.ShowFood {
		return false
	}
	if !c.ShowGoods && p.Category == CategoryGoods {
		return false
	}
	if !c.ShowFood && p.Category == CategoryFood {
		return false
	}
	if c.ShowGoods && p.Category == CategoryGoods && subcategorySet(c.GoodsSubcategory) && p.Subcategory != c.GoodsSubcategory {
		return false
	}
	if c.ShowFood && p.Category == CategoryFood && subcategorySet(c.FoodSubcategory) && p.Subcategory != c.FoodSubcategory {
		return false
	}
	if !c.ShowPermanent && p.Status == StatusPermanent {
		return false
	}
	if p.TimePosted.Before(now.AddDate(0, 0, -c.MaxAgeDays)) {
		return false
	}
	if c.Box != nil && !c.Box.Contains(p.Geometry.Lon(), p.Geometry.Lat()) {
		return false
	}
	return true
}

func subcategorySet(s string) bool {
	return s != "" && s != SubcategoryAll
}
