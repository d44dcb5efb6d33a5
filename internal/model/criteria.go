package model

import (
	"net/url"
	"strconv"
	"strings"
)

// Listing categories the extractor can recognize.
const (
	CategoryRoom      = "phong_tro"
	CategoryApartment = "can_ho"
	CategoryHouse     = "nha_nguyen_can"
	CategoryShared    = "o_ghep"
)

// CanonicalRef is a reference-vocabulary entity resolved from free text.
// When resolution fails the raw mention is kept with Resolved=false so
// user intent is never dropped on the floor.
type CanonicalRef struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Resolved bool   `json:"resolved"`
}

// RawRef wraps an unresolved mention.
func RawRef(name string) CanonicalRef {
	return CanonicalRef{Name: name, Resolved: false}
}

// ResolvedRef wraps a canonical directory record.
func ResolvedRef(id, name string) CanonicalRef {
	return CanonicalRef{ID: id, Name: name, Resolved: true}
}

// Key returns the identifier used for downstream queries: the canonical id
// when resolved, the raw name otherwise.
func (r CanonicalRef) Key() string {
	if r.Resolved {
		return r.ID
	}
	return r.Name
}

// Range is a numeric interval with optional bounds.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r *Range) IsZero() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// Normalize swaps bounds so that min <= max always holds.
func (r *Range) Normalize() {
	if r == nil || r.Min == nil || r.Max == nil {
		return
	}
	if *r.Min > *r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
}

// SearchCriteria is the output contract of the extraction pipeline.
type SearchCriteria struct {
	IsInScopeQuery bool           `json:"is_in_scope_query"`
	Category       *string        `json:"category,omitempty"`
	Province       *CanonicalRef  `json:"province,omitempty"`
	Ward           *CanonicalRef  `json:"ward,omitempty"`
	PriceRange     *Range         `json:"price_range,omitempty"`
	AreaRange      *Range         `json:"area_range,omitempty"`
	Amenities      []CanonicalRef `json:"amenities,omitempty"`

	// CompletenessScore counts populated structural slots and drives the
	// escalation decision; call Recount after mutating slots.
	CompletenessScore int `json:"completeness_score"`
}

// Recount recomputes CompletenessScore from the five structural slots
// (category, location, price, area, amenities) and returns it.
func (c *SearchCriteria) Recount() int {
	score := 0
	if c.Category != nil {
		score++
	}
	if c.Province != nil || c.Ward != nil {
		score++
	}
	if !c.PriceRange.IsZero() {
		score++
	}
	if !c.AreaRange.IsZero() {
		score++
	}
	if len(c.Amenities) > 0 {
		score++
	}
	c.CompletenessScore = score
	return score
}

// QueryParams flattens the criteria into the downstream listing-search
// parameter set.
func (c *SearchCriteria) QueryParams(page, limit int) url.Values {
	params := url.Values{}
	if c.Category != nil {
		params.Set("category", *c.Category)
	}
	if c.Province != nil {
		params.Set("province", c.Province.Key())
	}
	if c.Ward != nil {
		params.Set("ward", c.Ward.Key())
	}
	if c.PriceRange != nil {
		if c.PriceRange.Min != nil {
			params.Set("priceMin", strconv.FormatFloat(*c.PriceRange.Min, 'f', -1, 64))
		}
		if c.PriceRange.Max != nil {
			params.Set("priceMax", strconv.FormatFloat(*c.PriceRange.Max, 'f', -1, 64))
		}
	}
	if c.AreaRange != nil {
		if c.AreaRange.Min != nil {
			params.Set("areaMin", strconv.FormatFloat(*c.AreaRange.Min, 'f', -1, 64))
		}
		if c.AreaRange.Max != nil {
			params.Set("areaMax", strconv.FormatFloat(*c.AreaRange.Max, 'f', -1, 64))
		}
	}
	if len(c.Amenities) > 0 {
		keys := make([]string, 0, len(c.Amenities))
		for _, a := range c.Amenities {
			keys = append(keys, a.Key())
		}
		params.Set("amenities", strings.Join(keys, ","))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	return params
}
