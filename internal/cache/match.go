package cache

import (
	"math"
	"strings"

	"rentcore/internal/model"
	"rentcore/internal/refdata"
)

// Retrieval strategy names, reported on hits and in metrics.
const (
	StrategyVector  = "vector"
	StrategyLexical = "lexical"
)

// findMatch runs the ordered retrieval strategies over the working set:
// vector top-1 first, token-overlap fallback when no vector clears the bar.
func findMatch(question string, embedding []float32, entries []model.CacheEntry, serveThreshold, lexicalThreshold float64) *model.CacheMatch {
	if m := bestVectorMatch(embedding, entries, serveThreshold); m != nil {
		return m
	}
	return bestLexicalMatch(question, entries, lexicalThreshold)
}

// CosineSimilarity computes the cosine of two vectors. Returns 0 for
// mismatched dimensions or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// bestVectorMatch returns the top-1 entry by cosine similarity at or above
// threshold. Entries embedded under a different dimension are foreign and
// skipped without penalty, never averaged or padded.
func bestVectorMatch(embedding []float32, entries []model.CacheEntry, threshold float64) *model.CacheMatch {
	var best *model.CacheMatch
	for i := range entries {
		stored := entries[i].Embedding.Slice()
		if len(stored) != len(embedding) {
			continue
		}
		sim := CosineSimilarity(embedding, stored)
		if sim < threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &model.CacheMatch{
				Entry:      &entries[i],
				Similarity: clamp01(sim),
				Strategy:   StrategyVector,
			}
		}
	}
	return best
}

// bestLexicalMatch is the degradation path when no vector clears the bar:
// token-overlap search over the same corpus with its own, lower threshold.
func bestLexicalMatch(question string, entries []model.CacheEntry, threshold float64) *model.CacheMatch {
	queryTokens := tokenSet(question)
	if len(queryTokens) == 0 {
		return nil
	}

	var best *model.CacheMatch
	for i := range entries {
		overlap := tokenOverlap(queryTokens, tokenSet(entries[i].Question))
		if overlap < threshold {
			continue
		}
		if best == nil || overlap > best.Similarity {
			best = &model.CacheMatch{
				Entry:      &entries[i],
				Similarity: clamp01(overlap),
				Strategy:   StrategyLexical,
			}
		}
	}
	return best
}

// tokenOverlap computes Jaccard similarity of two token sets.
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(refdata.Fold(s)) {
		set[token] = true
	}
	return set
}

// clamp01 defends the reported similarity against floating-point overshoot.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
