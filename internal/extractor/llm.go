package extractor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rentcore/internal/metrics"
	"rentcore/internal/model"
	"rentcore/internal/utils"
)

// GenerateClient is the slice of the inference client the escalation
// extractor needs.
type GenerateClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMExtractor asks the language model for structured criteria. It is
// strictly best-effort: any endpoint failure or unparseable output degrades
// to the deterministic result the caller already holds.
type LLMExtractor struct {
	client   GenerateClient
	resolver VocabularyResolver
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// NewLLMExtractor creates the escalation extractor.
func NewLLMExtractor(client GenerateClient, resolver VocabularyResolver, log *zap.SugaredLogger, m *metrics.Metrics) *LLMExtractor {
	return &LLMExtractor{
		client:   client,
		resolver: resolver,
		log:      log,
		metrics:  m,
	}
}

// llmCriteria is the strict JSON schema requested from the model.
type llmCriteria struct {
	IsRentalQuery bool     `json:"is_rental_query"`
	Category      string   `json:"category,omitempty"`
	Location      string   `json:"location,omitempty"`
	PriceMin      *float64 `json:"price_min,omitempty"`
	PriceMax      *float64 `json:"price_max,omitempty"`
	AreaMin       *float64 `json:"area_min,omitempty"`
	AreaMax       *float64 `json:"area_max,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
}

const promptTemplate = `You are a rental-listing search assistant for Vietnam. Extract structured search criteria from the user's message.

Respond ONLY with a JSON object using this schema:
- is_rental_query: boolean, true when the user is looking for a place to rent
- category: one of "phong_tro", "can_ho", "nha_nguyen_can", "o_ghep"; omit when unclear
- location: the district/ward/city name mentioned, verbatim; omit when absent
- price_min, price_max: monthly rent bounds in VND ("3 triệu" = 3000000, "800k" = 800000)
- area_min, area_max: floor area bounds in square meters
- amenities: array of requested amenity names ("máy lạnh", "gác lửng", "wifi", ...)

Rules:
- Omit every field that is not mentioned; never invent values
- A single price becomes price_min with price_max = price_min * 1.3
- "dưới X" sets only the maximum, "trên X" only the minimum
- Negated amenities ("không cần máy lạnh") must NOT appear in amenities

Message: %s`

// Extract runs the escalation. fallback is the deterministic result to
// return when the model cannot do better.
func (e *LLMExtractor) Extract(ctx context.Context, message string, fallback *model.SearchCriteria) *model.SearchCriteria {
	e.metrics.RecordEscalation()

	output, err := e.client.Generate(ctx, fmt.Sprintf(promptTemplate, message))
	if err != nil {
		e.log.Warnw("generation failed, keeping rule-based criteria", "error", err)
		return fallback
	}

	var parsed llmCriteria
	if err := utils.ParseModelJSON(output, &parsed); err != nil {
		e.log.Warnw("model output unparseable, keeping rule-based criteria", "error", err)
		return fallback
	}

	return e.toCriteria(ctx, &parsed, fallback)
}

// toCriteria converts the model's answer into the pipeline contract,
// re-resolving names through the vocabulary resolver and enforcing the
// min<=max invariant.
func (e *LLMExtractor) toCriteria(ctx context.Context, parsed *llmCriteria, fallback *model.SearchCriteria) *model.SearchCriteria {
	criteria := &model.SearchCriteria{IsInScopeQuery: parsed.IsRentalQuery}
	if !parsed.IsRentalQuery {
		// The scope gate already let this through; trust the cheaper signal.
		criteria.IsInScopeQuery = fallback.IsInScopeQuery
	}

	if validCategory(parsed.Category) {
		category := parsed.Category
		criteria.Category = &category
	} else {
		criteria.Category = fallback.Category
	}

	if parsed.Location != "" {
		criteria.Province, criteria.Ward = e.resolver.ResolveLocation(ctx, parsed.Location)
	} else {
		criteria.Province, criteria.Ward = fallback.Province, fallback.Ward
	}

	if parsed.PriceMin != nil || parsed.PriceMax != nil {
		r := &model.Range{Min: parsed.PriceMin, Max: parsed.PriceMax}
		r.Normalize()
		criteria.PriceRange = r
	} else {
		criteria.PriceRange = fallback.PriceRange
	}

	if parsed.AreaMin != nil || parsed.AreaMax != nil {
		r := &model.Range{Min: parsed.AreaMin, Max: parsed.AreaMax}
		r.Normalize()
		criteria.AreaRange = r
	} else {
		criteria.AreaRange = fallback.AreaRange
	}

	if len(parsed.Amenities) > 0 {
		criteria.Amenities = e.resolver.ResolveAmenities(ctx, parsed.Amenities)
	} else {
		criteria.Amenities = fallback.Amenities
	}

	criteria.Recount()
	return criteria
}

func validCategory(category string) bool {
	switch category {
	case model.CategoryRoom, model.CategoryApartment, model.CategoryHouse, model.CategoryShared:
		return true
	}
	return false
}
