package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"go.uber.org/zap"

	"rentcore/internal/metrics"
)

// TextEmbedder produces a raw embedding for a text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingProvider wraps the remote embedder with a deterministic
// bag-of-words hash fallback so the similarity space degrades instead of
// failing closed.
type EmbeddingProvider struct {
	remote     TextEmbedder
	dimensions int
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// NewEmbeddingProvider creates an embedding provider. remote may be nil, in
// which case every embedding comes from the hash fallback.
func NewEmbeddingProvider(remote TextEmbedder, dimensions int, log *zap.SugaredLogger, m *metrics.Metrics) *EmbeddingProvider {
	return &EmbeddingProvider{
		remote:     remote,
		dimensions: dimensions,
		log:        log,
		metrics:    m,
	}
}

// Dimensions returns the globally agreed vector dimension D.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// Embed returns a vector for the text, never an error: remote failures and
// dimension mismatches degrade to the hash embedding.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) []float32 {
	if p.remote != nil {
		vec, err := p.remote.Embed(ctx, text)
		if err == nil && len(vec) == p.dimensions {
			return vec
		}
		if err != nil {
			p.log.Warnw("remote embedding failed, using hash fallback", "error", err)
		} else {
			p.log.Warnw("remote embedding has wrong dimension, using hash fallback",
				"got", len(vec), "want", p.dimensions)
		}
	}
	p.metrics.RecordEmbeddingFallback()
	return HashEmbedding(text, p.dimensions)
}

// HashEmbedding builds a deterministic bag-of-words vector: each whitespace
// token is hashed into one of dims buckets, weighted by 1/token_count, and
// the result is L2-normalized.
func HashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(tokens) == 0 {
		return vec
	}

	weight := 1.0 / float32(len(tokens))
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(dims)] += weight
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
