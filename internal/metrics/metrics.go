package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the assistant's Prometheus collectors. Registered once at
// startup and injected where needed; a nil *Metrics disables recording,
// which keeps tests quiet.
type Metrics struct {
	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	CacheEvictions     prometheus.Counter
	Escalations        prometheus.Counter
	EmbeddingFallbacks prometheus.Counter
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_cache_hits_total",
			Help: "Semantic cache hits by retrieval strategy.",
		}, []string{"strategy"}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assistant_cache_misses_total",
			Help: "Semantic cache lookups that fell through to extraction.",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assistant_cache_evictions_total",
			Help: "Cache entries soft-deleted by the eviction policy.",
		}),
		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assistant_llm_escalations_total",
			Help: "Messages escalated to the language-model extractor.",
		}),
		EmbeddingFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assistant_embedding_fallbacks_total",
			Help: "Embeddings produced by the deterministic hash fallback.",
		}),
	}
}

// RecordHit increments the hit counter for a strategy.
func (m *Metrics) RecordHit(strategy string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(strategy).Inc()
}

// RecordMiss increments the miss counter.
func (m *Metrics) RecordMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordEvictions adds to the eviction counter.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

// RecordEscalation increments the escalation counter.
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.Escalations.Inc()
}

// RecordEmbeddingFallback increments the fallback counter.
func (m *Metrics) RecordEmbeddingFallback() {
	if m == nil {
		return
	}
	m.EmbeddingFallbacks.Inc()
}
