package extractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rentcore/internal/config"
	"rentcore/internal/model"
	"rentcore/internal/refdata"
)

// Auto-derived bound rules.
const (
	priceMarginFactor = 1.3 // bare price value expands to [v, v*1.3]
	areaMarginPlus    = 10  // bare area value expands to [v, v+10]
	areaAroundDelta   = 5   // "khoảng X m2" expands to [v-5, v+5]
)

// VocabularyResolver is the slice of the reference resolver the extractors
// need; tests substitute a stub.
type VocabularyResolver interface {
	ResolveLocation(ctx context.Context, raw string) (province, ward *model.CanonicalRef)
	ResolveAmenities(ctx context.Context, raws []string) []model.CanonicalRef
}

// RuleExtractor turns raw text into partial structured criteria with
// deterministic patterns. No network calls besides resolver lookups.
type RuleExtractor struct {
	resolver VocabularyResolver
	config   *config.ExtractorConfig
	log      *zap.SugaredLogger
}

// NewRuleExtractor creates a rule-based extractor.
func NewRuleExtractor(resolver VocabularyResolver, cfg *config.ExtractorConfig, log *zap.SugaredLogger) *RuleExtractor {
	return &RuleExtractor{
		resolver: resolver,
		config:   cfg,
		log:      log,
	}
}

// Extract runs the full rule pipeline on one message.
func (e *RuleExtractor) Extract(ctx context.Context, message string) *model.SearchCriteria {
	message = strings.TrimSpace(message)
	criteria := &model.SearchCriteria{}

	if !InScope(message) {
		criteria.IsInScopeQuery = false
		return criteria
	}
	criteria.IsInScopeQuery = true

	folded := refdata.Fold(message)

	criteria.Category = extractCategory(folded)
	criteria.PriceRange = extractPrice(folded)
	criteria.AreaRange = extractArea(folded)

	if raw := extractLocationMention(message); raw != "" {
		criteria.Province, criteria.Ward = e.resolver.ResolveLocation(ctx, raw)
	}

	if mentions := extractAmenityMentions(folded); len(mentions) > 0 {
		criteria.Amenities = e.resolver.ResolveAmenities(ctx, mentions)
	}

	criteria.Recount()
	return criteria
}

// NeedsEscalation decides whether the language-model extractor should run:
// only when the rules produced too little structure AND the message shows
// linguistic complexity worth paying for.
func (e *RuleExtractor) NeedsEscalation(message string, criteria *model.SearchCriteria) bool {
	if criteria.CompletenessScore >= e.config.EscalateBelow {
		return false
	}

	folded := refdata.Fold(message)
	for _, p := range complexPatterns {
		if p.MatchString(folded) {
			return true
		}
	}
	if len([]rune(message)) > e.config.MaxMessageRunes {
		return true
	}
	if strings.Count(message, ",") > e.config.MaxCommas {
		return true
	}
	return false
}

// --- category ---

// Ordered keyword lists over folded text; first match wins.
var categoryKeywords = []struct {
	pattern  *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`phong tro|nha tro|\btro\b`), model.CategoryRoom},
	{regexp.MustCompile(`can ho|chung cu|\bcondo\b`), model.CategoryApartment},
	{regexp.MustCompile(`nha nguyen can|nguyen can|\bnha rieng\b`), model.CategoryHouse},
	{regexp.MustCompile(`o ghep|\bghep\b|o chung`), model.CategoryShared},
}

func extractCategory(folded string) *string {
	for _, kw := range categoryKeywords {
		if kw.pattern.MatchString(folded) {
			category := kw.category
			return &category
		}
	}
	return nil
}

// --- price ---

const numPattern = `(\d+(?:[.,]\d+)*)`
const moneyUnitPattern = `\s*(trieu|tr|cu|nghin|ngan|k|dong|vnd|d)?\b`

var (
	priceRangePattern  = regexp.MustCompile(`tu\s*` + numPattern + moneyUnitPattern + `\s*(?:den|toi|-)\s*` + numPattern + moneyUnitPattern)
	priceUpperPattern  = regexp.MustCompile(`(?:duoi|khong qua|toi da|max)\s*` + numPattern + moneyUnitPattern)
	priceLowerPattern  = regexp.MustCompile(`(?:tren|hon|toi thieu)\s*` + numPattern + moneyUnitPattern)
	priceSinglePattern = regexp.MustCompile(`(?:gia|tam|khoang)\s*` + numPattern + moneyUnitPattern)
	priceBarePattern   = regexp.MustCompile(numPattern + `\s*(trieu|tr|cu|nghin|ngan|k)\b`)
	priceDigitsPattern = regexp.MustCompile(`\b(\d{6,})\b`)
)

// extractPrice tries the ordered price patterns; the first hit wins.
// All monetary values are normalized to VND.
func extractPrice(folded string) *model.Range {
	if m := priceRangePattern.FindStringSubmatch(folded); m != nil {
		// a bare lower number inherits the upper bound's unit: "từ 2 đến 3 triệu"
		lowUnit := m[2]
		if lowUnit == "" {
			lowUnit = m[4]
		}
		low, okLow := parseMoney(m[1], lowUnit)
		high, okHigh := parseMoney(m[3], m[4])
		if okLow && okHigh {
			r := &model.Range{Min: &low, Max: &high}
			r.Normalize()
			return r
		}
	}
	if m := priceUpperPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseMoney(m[1], m[2]); ok {
			return &model.Range{Max: &v}
		}
	}
	if m := priceLowerPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseMoney(m[1], m[2]); ok {
			return &model.Range{Min: &v}
		}
	}
	if m := priceSinglePattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseMoney(m[1], m[2]); ok {
			max := v * priceMarginFactor
			return &model.Range{Min: &v, Max: &max}
		}
	}
	if m := priceBarePattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseMoney(m[1], m[2]); ok {
			max := v * priceMarginFactor
			return &model.Range{Min: &v, Max: &max}
		}
	}
	if m := priceDigitsPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseMoney(m[1], ""); ok {
			max := v * priceMarginFactor
			return &model.Range{Min: &v, Max: &max}
		}
	}
	return nil
}

// parseMoney converts a number plus colloquial unit to VND. A bare number
// only counts as money when it is already VND-sized; that keeps ward
// numbers and areas out of the price slot.
func parseMoney(num, unit string) (float64, bool) {
	v, ok := parseNumber(num)
	if !ok {
		return 0, false
	}
	switch unit {
	case "trieu", "tr", "cu":
		return v * 1_000_000, true
	case "nghin", "ngan", "k":
		return v * 1_000, true
	case "dong", "vnd", "d":
		return v, true
	default:
		if v >= 100_000 {
			return v, true
		}
		return 0, false
	}
}

// --- area ---

const areaUnitPattern = `\s*(?:m2|m²|met vuong)`

var (
	areaRangePattern  = regexp.MustCompile(`tu\s*` + numPattern + `(?:` + areaUnitPattern + `)?\s*(?:den|toi|-)\s*` + numPattern + areaUnitPattern)
	areaLowerPattern  = regexp.MustCompile(`(?:tren|toi thieu|it nhat)\s*` + numPattern + areaUnitPattern)
	areaUpperPattern  = regexp.MustCompile(`(?:duoi|toi da|khong qua)\s*` + numPattern + areaUnitPattern)
	areaAroundPattern = regexp.MustCompile(`(?:khoang|tam|co)\s*` + numPattern + areaUnitPattern)
	areaBarePattern   = regexp.MustCompile(numPattern + areaUnitPattern)
)

// extractArea tries the ordered area patterns; the first hit wins. Values
// are m².
func extractArea(folded string) *model.Range {
	if m := areaRangePattern.FindStringSubmatch(folded); m != nil {
		low, okLow := parseNumber(m[1])
		high, okHigh := parseNumber(m[2])
		if okLow && okHigh {
			r := &model.Range{Min: &low, Max: &high}
			r.Normalize()
			return r
		}
	}
	if m := areaLowerPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			return &model.Range{Min: &v}
		}
	}
	if m := areaUpperPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			return &model.Range{Max: &v}
		}
	}
	if m := areaAroundPattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			min := v - areaAroundDelta
			if min < 0 {
				min = 0
			}
			max := v + areaAroundDelta
			return &model.Range{Min: &min, Max: &max}
		}
	}
	if m := areaBarePattern.FindStringSubmatch(folded); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			max := v + areaMarginPlus
			return &model.Range{Min: &v, Max: &max}
		}
	}
	return nil
}

var thousandSepPattern = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// parseNumber handles both "3,5" decimals and "3.000.000" thousand
// separators.
func parseNumber(s string) (float64, bool) {
	if thousandSepPattern.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// --- location ---

// Ordered mention patterns over the original message: explicit
// district/ward numbering, named district/ward, then prepositional phrase.
var locationPatterns = []struct {
	re        *regexp.Regexp
	group     int // 0 = whole match
	trimsTail bool
}{
	{regexp.MustCompile(`(?i)\b(?:quận|quan|q)\.?\s*(\d{1,2})\b`), 0, false},
	{regexp.MustCompile(`(?i)\b(?:phường|phuong|p)\.?\s*(\d{1,2})\b`), 0, false},
	{regexp.MustCompile(`(?i)\b(?:quận|quan|phường|phuong)\s+([^\d,.;!?]+)`), 1, true},
	// \b is ASCII-only in RE2, so anchor the Vietnamese prepositions on whitespace
	{regexp.MustCompile(`(?i)(?:^|\s)(?:ở|tại|khu vực|gần|quanh)\s+([^,.;!?]+)`), 1, true},
}

// Folded words that end a captured place name.
var locationTailStopwords = map[string]bool{
	"gia": true, "duoi": true, "tren": true, "khoang": true, "tu": true,
	"tam": true, "co": true, "voi": true, "va": true, "can": true,
	"phong": true, "dien": true, "m2": true, "trieu": true, "cho": true,
}

func extractLocationMention(message string) string {
	for _, p := range locationPatterns {
		m := p.re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		raw := m[p.group]
		if p.trimsTail {
			raw = trimLocationTail(raw)
		}
		raw = strings.TrimSpace(raw)
		if raw != "" {
			return raw
		}
	}
	return ""
}

// trimLocationTail cuts a captured phrase at the first word that clearly
// starts another clause ("... Bình Thạnh giá dưới 3 triệu").
func trimLocationTail(raw string) string {
	fields := strings.Fields(raw)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if locationTailStopwords[refdata.Fold(f)] {
			break
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// --- amenities ---

// amenityAliases maps folded keywords to the display mention handed to the
// vocabulary resolver. Ordered so the more specific phrasing wins.
var amenityAliases = []struct {
	keyword string
	name    string
}{
	{"may lanh", "Máy lạnh"},
	{"dieu hoa", "Máy lạnh"},
	{"gac lung", "Gác lửng"},
	{"ban cong", "Ban công"},
	{"may giat", "Máy giặt"},
	{"cho de xe", "Chỗ để xe"},
	{"giu xe", "Chỗ để xe"},
	{"toilet rieng", "Toilet riêng"},
	{"wc rieng", "Toilet riêng"},
	{"noi that", "Nội thất"},
	{"tu lanh", "Tủ lạnh"},
	{"thang may", "Thang máy"},
	{"an ninh", "An ninh"},
	{"bao ve", "An ninh"},
	{"ho boi", "Hồ bơi"},
	{"wifi", "Wifi"},
	{"gym", "Gym"},
}

var amenityListPattern = regexp.MustCompile(`tien nghi\s*:?\s*([^.;!?]+)`)

func extractAmenityMentions(folded string) []string {
	var mentions []string
	seen := make(map[string]bool)

	add := func(name string) {
		key := refdata.Fold(name)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		mentions = append(mentions, name)
	}

	for _, alias := range amenityAliases {
		if strings.Contains(folded, alias.keyword) {
			add(alias.name)
		}
	}

	// generic "tiện nghi: a, b, c" list
	if m := amenityListPattern.FindStringSubmatch(folded); m != nil {
		list := strings.ReplaceAll(m[1], " va ", ",")
		for _, item := range strings.Split(list, ",") {
			if item = strings.TrimSpace(item); item != "" {
				add(item)
			}
		}
	}

	return mentions
}

// --- escalation complexity ---

var complexPatterns = []*regexp.Regexp{
	regexp.MustCompile(`cach\s+.{0,40}(phut|km|met|m)\b`), // distance qualifiers
	regexp.MustCompile(`\bkhong\s+(co|can|muon|lay)\b`),   // negations
	regexp.MustCompile(`ngoai tru|loai tru|\btru\b`),      // exclusions
	regexp.MustCompile(`(re|lon|nho|gan|rong|tot)\s+nhat`),
	regexp.MustCompile(`it nhat|nhieu nhat`),
}
