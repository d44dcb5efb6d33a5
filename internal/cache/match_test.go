package cache

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/model"
)

func entry(id, question string, embedding []float32) model.CacheEntry {
	return model.CacheEntry{
		ID:        id,
		Question:  question,
		Embedding: pgvector.NewVector(embedding),
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}), "dimension mismatch")
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}), "zero vector")
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestBestVectorMatch_PicksHighest(t *testing.T) {
	entries := []model.CacheEntry{
		entry("a", "q1", []float32{1, 0, 0}),
		entry("b", "q2", []float32{0.9, 0.1, 0}),
		entry("c", "q3", []float32{0, 1, 0}),
	}

	m := bestVectorMatch([]float32{1, 0, 0}, entries, 0.85)
	require.NotNil(t, m)
	assert.Equal(t, "a", m.Entry.ID)
	assert.Equal(t, StrategyVector, m.Strategy)
	assert.InDelta(t, 1.0, m.Similarity, 1e-9)
}

// Raising the threshold can only shrink the set of served matches, never
// change which entry wins.
func TestBestVectorMatch_ThresholdMonotonicity(t *testing.T) {
	entries := []model.CacheEntry{
		entry("a", "q1", []float32{1, 0.2, 0}),
		entry("b", "q2", []float32{0.2, 1, 0}),
	}
	query := []float32{1, 0.1, 0}

	low := bestVectorMatch(query, entries, 0.5)
	require.NotNil(t, low)

	mid := bestVectorMatch(query, entries, low.Similarity)
	require.NotNil(t, mid, "threshold equal to the best similarity still serves")
	assert.Equal(t, low.Entry.ID, mid.Entry.ID)

	high := bestVectorMatch(query, entries, low.Similarity+1e-6)
	assert.Nil(t, high, "threshold above the best similarity serves nothing")
}

// Entries embedded under a different model dimension must be invisible, not
// near-misses.
func TestBestVectorMatch_DimensionIsolation(t *testing.T) {
	entries := []model.CacheEntry{
		entry("foreign", "q1", []float32{1, 0}),
		entry("native", "q2", []float32{0.7, 0.7, 0}),
	}

	m := bestVectorMatch([]float32{1, 0, 0}, entries, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, "native", m.Entry.ID)

	onlyForeign := bestVectorMatch([]float32{1, 0, 0}, entries[:1], 0.0)
	assert.Nil(t, onlyForeign)
}

func TestBestVectorMatch_SimilarityClamped(t *testing.T) {
	entries := []model.CacheEntry{entry("a", "q", []float32{0.1, 0.1, 0.1})}

	m := bestVectorMatch([]float32{0.1, 0.1, 0.1}, entries, 0.5)
	require.NotNil(t, m)
	assert.LessOrEqual(t, m.Similarity, 1.0)
	assert.GreaterOrEqual(t, m.Similarity, 0.0)
}

// When the vector bar is set above the best real similarity, the chain falls
// through to the lexical strategy instead of giving up.
func TestFindMatch_LexicalAfterVectorFailure(t *testing.T) {
	entries := []model.CacheEntry{
		entry("a", "tìm phòng trọ giá rẻ quận 1", []float32{0.8, 0.6, 0}),
	}
	query := []float32{1, 0, 0} // cosine 0.8 against the stored vector

	m := findMatch("tìm phòng trọ giá rẻ quận 1", query, entries, 0.97, 0.55)
	require.NotNil(t, m)
	assert.Equal(t, StrategyLexical, m.Strategy)
	assert.Equal(t, "a", m.Entry.ID)

	m = findMatch("tìm phòng trọ giá rẻ quận 1", query, entries, 0.75, 0.55)
	require.NotNil(t, m)
	assert.Equal(t, StrategyVector, m.Strategy, "vector wins whenever it clears the bar")
}

func TestBestLexicalMatch(t *testing.T) {
	entries := []model.CacheEntry{
		entry("a", "tìm phòng trọ giá rẻ quận 1", nil),
		entry("b", "căn hộ cao cấp quận 7", nil),
	}

	m := bestLexicalMatch("phòng trọ giá rẻ ở quận 1", entries, 0.55)
	require.NotNil(t, m)
	assert.Equal(t, "a", m.Entry.ID)
	assert.Equal(t, StrategyLexical, m.Strategy)

	assert.Nil(t, bestLexicalMatch("mua xe máy cũ", entries, 0.55))
	assert.Nil(t, bestLexicalMatch("", entries, 0.55))
}

// Diacritics must not defeat the token overlap.
func TestBestLexicalMatch_FoldsDiacritics(t *testing.T) {
	entries := []model.CacheEntry{entry("a", "tim phong tro quan 1", nil)}

	m := bestLexicalMatch("tìm phòng trọ quận 1", entries, 0.9)
	require.NotNil(t, m)
	assert.Equal(t, "a", m.Entry.ID)
}

func TestTokenOverlap(t *testing.T) {
	a := tokenSet("phong tro quan 1")
	assert.InDelta(t, 1.0, tokenOverlap(a, tokenSet("quan 1 phong tro")), 1e-9)
	assert.Zero(t, tokenOverlap(a, tokenSet("xe may")))
	assert.Zero(t, tokenOverlap(a, tokenSet("")))
}
