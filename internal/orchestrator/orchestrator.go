package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rentcore/internal/extractor"
	"rentcore/internal/model"
)

// ErrEmptyMessage rejects blank input before any work is done.
var ErrEmptyMessage = errors.New("message must not be empty")

const outOfScopeReply = "Mình chỉ hỗ trợ tìm phòng trọ, căn hộ và nhà cho thuê. Bạn mô tả chỗ ở bạn cần nhé!"

// CacheStore is the similarity cache surface the pipeline needs.
type CacheStore interface {
	Lookup(ctx context.Context, question string) *model.CacheMatch
	Upsert(ctx context.Context, entry *model.CacheEntry) error
	EvictExcess(ctx context.Context) (int, error)
}

// RuleEngine is the deterministic extraction pass.
type RuleEngine interface {
	Extract(ctx context.Context, message string) *model.SearchCriteria
	NeedsEscalation(message string, criteria *model.SearchCriteria) bool
}

// EscalationEngine is the model-backed extraction pass.
type EscalationEngine interface {
	Extract(ctx context.Context, message string, fallback *model.SearchCriteria) *model.SearchCriteria
}

// ListingSearcher runs the downstream listing query.
type ListingSearcher interface {
	Search(ctx context.Context, criteria *model.SearchCriteria, page, limit int) (*model.ListingResult, error)
}

// Orchestrator wires cache, extraction and search into the chat pipeline:
// serve from cache when a similar question exists, otherwise extract as
// cheaply as possible, search, answer, and remember the answer.
type Orchestrator struct {
	cache  CacheStore
	rules  RuleEngine
	llm    EscalationEngine
	search ListingSearcher
	log    *zap.SugaredLogger
}

// New creates the pipeline.
func New(cache CacheStore, rules RuleEngine, llm EscalationEngine, search ListingSearcher, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		cache:  cache,
		rules:  rules,
		llm:    llm,
		search: search,
		log:    log,
	}
}

// Handle answers one chat message.
func (o *Orchestrator) Handle(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	start := time.Now()

	// Noise never reaches the embedding call; every gibberish string is
	// unique, so there is nothing worth looking up or remembering either.
	if extractor.Gibberish(message) {
		return &model.ChatResponse{
			Reply:  outOfScopeReply,
			Source: model.ReplySourceOutOfScope,
			Took:   time.Since(start).Milliseconds(),
		}, nil
	}

	if match := o.cache.Lookup(ctx, message); match != nil {
		resp := o.serveFromCache(ctx, match, req)
		resp.Took = time.Since(start).Milliseconds()
		return resp, nil
	}

	criteria := o.rules.Extract(ctx, message)
	if !criteria.IsInScopeQuery {
		o.remember(message, model.AnswerKindOutOfScope, model.AnswerSourceRules,
			model.ResponsePayload{Type: model.PayloadText, Text: outOfScopeReply}, nil)
		return &model.ChatResponse{
			Reply:  outOfScopeReply,
			Source: model.ReplySourceOutOfScope,
			Took:   time.Since(start).Milliseconds(),
		}, nil
	}

	source := model.AnswerSourceRules
	if o.rules.NeedsEscalation(message, criteria) {
		criteria = o.llm.Extract(ctx, message, criteria)
		source = model.AnswerSourceLLM
	}

	results, err := o.search.Search(ctx, criteria, req.Page, req.Limit)
	if err != nil {
		o.log.Warnw("listing search failed, answering without results", "error", err)
		results = &model.ListingResult{Items: []byte("[]"), Page: 1}
	}

	reply := buildReply(criteria, results)

	// Answers that found nothing are not worth replaying to the next user.
	if results.Total > 0 {
		o.remember(message, model.AnswerKindSearch, source, model.ResponsePayload{
			Type:     model.PayloadSearch,
			Text:     reply,
			Criteria: criteria,
			Results:  results.Items,
		}, criteria)
	}

	return &model.ChatResponse{
		Reply:    reply,
		Source:   model.ReplySourceGenerated,
		Criteria: criteria,
		Results:  results,
		Took:     time.Since(start).Milliseconds(),
	}, nil
}

// serveFromCache turns a similarity hit into a reply. Search answers are
// refreshed against the live listing index so the user never sees a stale
// page; plain text answers replay as stored. Replayed answers are never
// re-admitted.
func (o *Orchestrator) serveFromCache(ctx context.Context, match *model.CacheMatch, req *model.ChatRequest) *model.ChatResponse {
	payload := match.Entry.Response

	if payload.Type == model.PayloadSearch && payload.Criteria != nil {
		results, err := o.search.Search(ctx, payload.Criteria, req.Page, req.Limit)
		if err == nil {
			return &model.ChatResponse{
				Reply:      buildReply(payload.Criteria, results),
				Source:     model.ReplySourceCacheRefresh,
				Similarity: match.Similarity,
				Criteria:   payload.Criteria,
				Results:    results,
				Took:       0,
			}
		}
		o.log.Warnw("refresh search failed, replaying cached snapshot", "error", err)
		return &model.ChatResponse{
			Reply:      payload.Text,
			Source:     model.ReplySourceCacheDirect,
			Similarity: match.Similarity,
			Criteria:   payload.Criteria,
			Results:    &model.ListingResult{Items: payload.Results, Page: 1},
		}
	}

	source := model.ReplySourceCacheDirect
	if match.Entry.Kind == model.AnswerKindOutOfScope {
		source = model.ReplySourceOutOfScope
	}
	return &model.ChatResponse{
		Reply:      payload.Text,
		Source:     source,
		Similarity: match.Similarity,
	}
}

// remember admits an answer in the background and reconciles the ceiling.
// The reply never waits on cache writes.
func (o *Orchestrator) remember(question, kind, source string, payload model.ResponsePayload, criteria *model.SearchCriteria) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		entry := &model.CacheEntry{
			Question:       question,
			Response:       payload,
			Kind:           kind,
			SourceOfAnswer: source,
			Criteria:       model.CriteriaJSON{SearchCriteria: criteria},
			Tags:           admissionTags(kind, criteria),
		}
		if err := o.cache.Upsert(ctx, entry); err != nil {
			o.log.Warnw("failed to admit answer to cache", "error", err)
			return
		}
		if _, err := o.cache.EvictExcess(ctx); err != nil {
			o.log.Warnw("cache eviction failed", "error", err)
		}
	}()
}

// admissionTags derives coarse labels for later inspection.
func admissionTags(kind string, criteria *model.SearchCriteria) model.JSONArray {
	tags := model.JSONArray{kind}
	if criteria == nil {
		return tags
	}
	if criteria.Category != nil {
		tags = append(tags, *criteria.Category)
	}
	if criteria.Ward != nil && criteria.Ward.Resolved {
		tags = append(tags, "ward:"+criteria.Ward.ID)
	}
	return tags
}

// buildReply renders the conversational answer for a search result.
func buildReply(criteria *model.SearchCriteria, results *model.ListingResult) string {
	var b strings.Builder
	if results.Total == 0 {
		b.WriteString("Mình chưa tìm thấy tin nào khớp")
	} else {
		fmt.Fprintf(&b, "Mình tìm thấy %d tin phù hợp", results.Total)
	}

	if criteria.Category != nil {
		b.WriteString(" cho ")
		b.WriteString(categoryLabel(*criteria.Category))
	}
	if criteria.Ward != nil {
		b.WriteString(" ở ")
		b.WriteString(criteria.Ward.Name)
	} else if criteria.Province != nil {
		b.WriteString(" ở ")
		b.WriteString(criteria.Province.Name)
	}
	if criteria.PriceRange != nil && criteria.PriceRange.Max != nil {
		fmt.Fprintf(&b, " với giá tới %s", formatVND(*criteria.PriceRange.Max))
	}
	b.WriteString(".")

	if results.Total == 0 {
		b.WriteString(" Bạn thử nới rộng khu vực hoặc mức giá xem sao nhé.")
	} else if results.HasMore {
		b.WriteString(" Còn nhiều tin nữa, bạn xem tiếp trang sau nhé.")
	}
	return b.String()
}

func categoryLabel(category string) string {
	switch category {
	case model.CategoryRoom:
		return "phòng trọ"
	case model.CategoryApartment:
		return "căn hộ"
	case model.CategoryHouse:
		return "nhà nguyên căn"
	case model.CategoryShared:
		return "ở ghép"
	}
	return category
}

func formatVND(amount float64) string {
	if amount >= 1_000_000 {
		millions := amount / 1_000_000
		if millions == float64(int(millions)) {
			return fmt.Sprintf("%d triệu", int(millions))
		}
		return fmt.Sprintf("%.1f triệu", millions)
	}
	return fmt.Sprintf("%dđ", int(amount))
}
