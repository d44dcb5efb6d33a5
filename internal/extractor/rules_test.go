package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentcore/internal/config"
	"rentcore/internal/model"
	"rentcore/internal/refdata"
)

// stubResolver resolves "quận 1"-ish mentions and a small amenity list
// without touching the network.
type stubResolver struct{}

func (stubResolver) ResolveLocation(ctx context.Context, raw string) (*model.CanonicalRef, *model.CanonicalRef) {
	if refdata.Fold(raw) == "quan 1" {
		p := model.ResolvedRef("79", "Hồ Chí Minh")
		w := model.ResolvedRef("760", "Quận 1")
		return &p, &w
	}
	w := model.RawRef(raw)
	return nil, &w
}

func (stubResolver) ResolveAmenities(ctx context.Context, raws []string) []model.CanonicalRef {
	refs := make([]model.CanonicalRef, 0, len(raws))
	for _, raw := range raws {
		if refdata.Fold(raw) == "may lanh" {
			refs = append(refs, model.ResolvedRef("a1", "Máy lạnh"))
			continue
		}
		refs = append(refs, model.RawRef(raw))
	}
	return refs
}

func testExtractorConfig() *config.ExtractorConfig {
	return &config.ExtractorConfig{
		LocationThreshold: 0.72,
		AmenityThreshold:  0.55,
		EscalateBelow:     2,
		MaxMessageRunes:   200,
		MaxCommas:         3,
	}
}

func newTestRules() *RuleExtractor {
	return NewRuleExtractor(stubResolver{}, testExtractorConfig(), zap.NewNop().Sugar())
}

func TestRuleExtractor_FullScenario(t *testing.T) {
	e := newTestRules()

	c := e.Extract(context.Background(), "tìm phòng trọ dưới 3 triệu ở Quận 1")

	assert.True(t, c.IsInScopeQuery)
	require.NotNil(t, c.Category)
	assert.Equal(t, model.CategoryRoom, *c.Category)

	require.NotNil(t, c.PriceRange)
	assert.Nil(t, c.PriceRange.Min)
	require.NotNil(t, c.PriceRange.Max)
	assert.InDelta(t, 3_000_000, *c.PriceRange.Max, 1)

	require.NotNil(t, c.Ward)
	assert.True(t, c.Ward.Resolved)
	assert.Equal(t, "760", c.Ward.ID)

	assert.GreaterOrEqual(t, c.CompletenessScore, 2)
	assert.False(t, e.NeedsEscalation("tìm phòng trọ dưới 3 triệu ở Quận 1", c),
		"a well-structured query must not pay for the model call")
}

func TestRuleExtractor_GibberishOutOfScope(t *testing.T) {
	e := newTestRules()

	for _, msg := range []string{"aaaaaaaa", "?!?!?!", "", "   "} {
		c := e.Extract(context.Background(), msg)
		assert.False(t, c.IsInScopeQuery, "message %q must be out of scope", msg)
		assert.Equal(t, 0, c.CompletenessScore)
	}
}

func TestRuleExtractor_UnrelatedWinsOverDomain(t *testing.T) {
	e := newTestRules()

	// mentions both football and a room; declining beats mis-answering
	c := e.Extract(context.Background(), "kết quả trận bóng đá ở nhà thi đấu quận 1")
	assert.False(t, c.IsInScopeQuery)
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name    string
		message string
		min     *float64
		max     *float64
	}{
		{"range", "phòng trọ từ 2 đến 3 triệu", f(2_000_000), f(3_000_000)},
		{"upper bound only", "phòng dưới 3 triệu", nil, f(3_000_000)},
		{"lower bound only", "căn hộ trên 5 triệu", f(5_000_000), nil},
		{"single value with margin", "phòng trọ giá 2 triệu", f(2_000_000), f(2_600_000)},
		{"bare value with unit", "thuê phòng 3tr quận 1", f(3_000_000), f(3_900_000)},
		{"raw digits", "phòng trọ 2500000 đồng", f(2_500_000), f(3_250_000)},
		{"thousands", "ở ghép 800k", f(800_000), f(1_040_000)},
		{"decimal", "phòng trọ giá 2,5 triệu", f(2_500_000), f(3_250_000)},
		{"no price", "phòng trọ gần chợ", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPrice(refdata.Fold(tt.message))
			assertRange(t, got, tt.min, tt.max)
		})
	}
}

func TestExtractArea(t *testing.T) {
	tests := []struct {
		name    string
		message string
		min     *float64
		max     *float64
	}{
		{"range", "phòng từ 20 đến 30 m2", f(20), f(30)},
		{"lower bound", "phòng trên 25 m2", f(25), nil},
		{"upper bound", "phòng dưới 40 m2", nil, f(40)},
		{"around expands symmetrically", "phòng khoảng 30 m2", f(25), f(35)},
		{"bare value expands upward", "phòng 20 m2", f(20), f(30)},
		{"no area", "phòng trọ quận 1", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractArea(refdata.Fold(tt.message))
			assertRange(t, got, tt.min, tt.max)
		})
	}
}

// Bound invariant: min <= max for every extracted range, including the
// auto-derived ones.
func TestExtract_BoundInvariant(t *testing.T) {
	e := newTestRules()
	messages := []string{
		"phòng trọ từ 5 đến 2 triệu",
		"phòng từ 40 đến 20 m2",
		"phòng trọ giá 3 triệu khoảng 10 m2",
		"căn hộ 2 triệu",
	}
	for _, msg := range messages {
		c := e.Extract(context.Background(), msg)
		for _, r := range []*model.Range{c.PriceRange, c.AreaRange} {
			if r == nil || r.Min == nil || r.Max == nil {
				continue
			}
			assert.LessOrEqual(t, *r.Min, *r.Max, "message %q", msg)
		}
	}
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"tìm phòng trọ giá rẻ", model.CategoryRoom},
		{"thuê căn hộ 2 phòng ngủ", model.CategoryApartment},
		{"chung cư mini", model.CategoryApartment},
		{"nhà nguyên căn cho thuê", model.CategoryHouse},
		{"tìm người ở ghép", model.CategoryShared},
	}
	for _, tt := range tests {
		got := extractCategory(refdata.Fold(tt.message))
		require.NotNil(t, got, "message %q", tt.message)
		assert.Equal(t, tt.want, *got, "message %q", tt.message)
	}

	assert.Nil(t, extractCategory(refdata.Fold("thuê chỗ ở gần trường")))
}

func TestExtractAmenities(t *testing.T) {
	e := newTestRules()

	c := e.Extract(context.Background(), "phòng trọ có máy lạnh và gác lửng")
	require.Len(t, c.Amenities, 2)
	assert.True(t, c.Amenities[0].Resolved)
	assert.Equal(t, "a1", c.Amenities[0].ID)
	// unresolved mention kept verbatim
	assert.False(t, c.Amenities[1].Resolved)

	c = e.Extract(context.Background(), "phòng trọ tiện nghi: máy lạnh, wifi, ban công")
	assert.GreaterOrEqual(t, len(c.Amenities), 3)
}

func TestNeedsEscalation(t *testing.T) {
	e := newTestRules()
	empty := &model.SearchCriteria{IsInScopeQuery: true}

	assert.True(t, e.NeedsEscalation("tìm phòng cách trường đại học 10 phút đi xe", empty),
		"distance qualifier should escalate")
	assert.True(t, e.NeedsEscalation("tìm phòng không cần máy lạnh nhưng thoáng", empty),
		"negation should escalate")
	assert.True(t, e.NeedsEscalation("phòng rẻ nhất khu này", empty),
		"superlative should escalate")
	assert.False(t, e.NeedsEscalation("tìm phòng", empty),
		"short structured query stays on rules")

	full := &model.SearchCriteria{IsInScopeQuery: true, CompletenessScore: 3}
	assert.False(t, e.NeedsEscalation("tìm phòng cách trường 10 phút", full),
		"sufficient completeness never escalates")
}

// helpers

func f(v float64) *float64 { return &v }

func assertRange(t *testing.T, got *model.Range, min, max *float64) {
	t.Helper()
	if min == nil && max == nil {
		assert.True(t, got.IsZero(), "expected no range, got %+v", got)
		return
	}
	require.NotNil(t, got)
	if min == nil {
		assert.Nil(t, got.Min)
	} else {
		require.NotNil(t, got.Min)
		assert.InDelta(t, *min, *got.Min, 1)
	}
	if max == nil {
		assert.Nil(t, got.Max)
	} else {
		require.NotNil(t, got.Max)
		assert.InDelta(t, *max, *got.Max, 1)
	}
}
