package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"rentcore/internal/config"
	"rentcore/internal/metrics"
	"rentcore/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS semantic_cache (
	id UUID PRIMARY KEY,
	question TEXT NOT NULL,
	embedding vector,
	response JSONB NOT NULL,
	kind VARCHAR(32) NOT NULL,
	source_of_answer VARCHAR(32) NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 1,
	last_used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	priority_level INTEGER NOT NULL DEFAULT 0,
	extracted_criteria JSONB,
	tags JSONB,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_semantic_cache_usage
	ON semantic_cache (usage_count DESC, last_used_at DESC)
	WHERE is_deleted = FALSE;
`

// Embedder is the infallible embedding source the store compares against.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Store is the similarity cache over PostgreSQL. Lookups are strictly
// best-effort: any infrastructure error is reported as a miss so the caller
// falls through to the full pipeline.
type Store struct {
	db       *sqlx.DB
	embedder Embedder
	config   *config.CacheConfig
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// NewStore creates the cache store.
func NewStore(db *sqlx.DB, embedder Embedder, cfg *config.CacheConfig, log *zap.SugaredLogger, m *metrics.Metrics) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		config:   cfg,
		log:      log,
		metrics:  m,
	}
}

// EnsureSchema creates the cache table and supporting index. The vector
// extension must already be installed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// Lookup searches the working set for a reusable answer. Returns nil on a
// miss; never returns an error, a broken cache must not break the chat.
func (s *Store) Lookup(ctx context.Context, question string) *model.CacheMatch {
	embedding := s.embedder.Embed(ctx, question)

	entries, err := s.loadWorkingSet(ctx)
	if err != nil {
		s.log.Warnw("cache scan failed, treating as miss", "error", err)
		s.metrics.RecordMiss()
		return nil
	}

	match := findMatch(question, embedding, entries, s.config.ServeThreshold, s.config.LexicalThreshold)
	if match == nil {
		s.metrics.RecordMiss()
		return nil
	}

	s.touch(ctx, match.Entry.ID)
	s.metrics.RecordHit(match.Strategy)
	return match
}

// Upsert admits an answer. A stored question similar enough to be a duplicate
// is refreshed in place, keeping its id, embedding and usage history;
// otherwise a new row is inserted.
func (s *Store) Upsert(ctx context.Context, entry *model.CacheEntry) error {
	embedding := s.embedder.Embed(ctx, entry.Question)

	entries, err := s.loadWorkingSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan cache for duplicates: %w", err)
	}

	if dup := bestVectorMatch(embedding, entries, s.config.DedupThreshold); dup != nil {
		_, err := s.db.ExecContext(ctx, `
			UPDATE semantic_cache
			SET response = $1, kind = $2, source_of_answer = $3,
			    extracted_criteria = $4, tags = $5,
			    usage_count = usage_count + 1, last_used_at = NOW(), updated_at = NOW()
			WHERE id = $6`,
			entry.Response, entry.Kind, entry.SourceOfAnswer,
			entry.Criteria, entry.Tags, dup.Entry.ID)
		if err != nil {
			return fmt.Errorf("failed to refresh cache entry %s: %w", dup.Entry.ID, err)
		}
		return nil
	}

	entry.ID = uuid.NewString()
	entry.Embedding = pgvector.NewVector(embedding)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO semantic_cache
			(id, question, embedding, response, kind, source_of_answer,
			 usage_count, last_used_at, priority_level, extracted_criteria, tags,
			 verified, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), $7, $8, $9, $10, FALSE, NOW(), NOW())`,
		entry.ID, entry.Question, entry.Embedding, entry.Response, entry.Kind,
		entry.SourceOfAnswer, entry.PriorityLevel, entry.Criteria, entry.Tags,
		entry.Verified)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// EvictExcess soft-deletes the least valuable active entries until the
// active count is back under the ceiling. Returns how many were evicted.
func (s *Store) EvictExcess(ctx context.Context) (int, error) {
	var candidates []evictionCandidate
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT id, usage_count, last_used_at
		FROM semantic_cache
		WHERE is_deleted = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to load eviction candidates: %w", err)
	}

	victims := selectEvictionVictims(candidates, s.config.MaxEntries)
	if len(victims) == 0 {
		return 0, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE semantic_cache
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = ANY($1)`, pq.Array(victims))
	if err != nil {
		return 0, fmt.Errorf("failed to evict cache entries: %w", err)
	}

	s.metrics.RecordEvictions(len(victims))
	return len(victims), nil
}

// Stats reports occupancy and cumulative usage.
func (s *Store) Stats(ctx context.Context) (*model.CacheStats, error) {
	var stats model.CacheStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_deleted) AS active_entries,
			COUNT(*) FILTER (WHERE is_deleted) AS deleted_entries,
			COALESCE(SUM(usage_count) FILTER (WHERE NOT is_deleted), 0) AS total_usage
		FROM semantic_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return &stats, nil
}

// EntryFilter scopes a maintenance listing.
type EntryFilter struct {
	Kind           string
	Source         string
	Verified       *bool
	IncludeDeleted bool
	Limit          int
}

// ListEntries returns entries for inspection, most-used first. Deleted rows
// stay hidden unless explicitly requested.
func (s *Store) ListEntries(ctx context.Context, filter EntryFilter) ([]model.CacheEntry, error) {
	query := `SELECT * FROM semantic_cache WHERE 1=1`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	if filter.Kind != "" {
		query += ` AND kind = ` + arg(filter.Kind)
	}
	if filter.Source != "" {
		query += ` AND source_of_answer = ` + arg(filter.Source)
	}
	if filter.Verified != nil {
		query += ` AND verified = ` + arg(*filter.Verified)
	}
	query += ` ORDER BY usage_count DESC, last_used_at DESC LIMIT ` + arg(filter.Limit)

	entries := []model.CacheEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return entries, nil
}

// SetVerified marks entries as reviewed (or revokes the mark).
func (s *Store) SetVerified(ctx context.Context, ids []string, verified bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE semantic_cache
		SET verified = $1, updated_at = NOW()
		WHERE id = ANY($2) AND is_deleted = FALSE`,
		verified, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to update verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// loadWorkingSet reads the hottest active entries, the only slice of the
// table lookups ever compare against.
func (s *Store) loadWorkingSet(ctx context.Context) ([]model.CacheEntry, error) {
	entries := []model.CacheEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM semantic_cache
		WHERE is_deleted = FALSE
		ORDER BY usage_count DESC, last_used_at DESC
		LIMIT $1`, s.config.ScanLimit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// touch bumps usage in the background; a hit should not wait on the write.
func (s *Store) touch(ctx context.Context, id string) {
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.db.ExecContext(touchCtx, `
			UPDATE semantic_cache
			SET usage_count = usage_count + 1, last_used_at = NOW()
			WHERE id = $1`, id)
		if err != nil {
			s.log.Warnw("failed to record cache usage", "id", id, "error", err)
		}
	}()
}
