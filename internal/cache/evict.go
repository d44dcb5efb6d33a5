package cache

import (
	"sort"
	"time"
)

// evictionCandidate is the slim row eviction decides over.
type evictionCandidate struct {
	ID         string    `db:"id"`
	UsageCount int       `db:"usage_count"`
	LastUsedAt time.Time `db:"last_used_at"`
}

// selectEvictionVictims picks the ids to soft-delete so that at most
// maxEntries candidates survive. Lowest usage goes first; among equals the
// longest-idle entry goes first.
func selectEvictionVictims(candidates []evictionCandidate, maxEntries int) []string {
	if maxEntries < 0 {
		maxEntries = 0
	}
	excess := len(candidates) - maxEntries
	if excess <= 0 {
		return nil
	}

	sorted := make([]evictionCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UsageCount != sorted[j].UsageCount {
			return sorted[i].UsageCount < sorted[j].UsageCount
		}
		return sorted[i].LastUsedAt.Before(sorted[j].LastUsedAt)
	})

	victims := make([]string, 0, excess)
	for _, c := range sorted[:excess] {
		victims = append(victims, c.ID)
	}
	return victims
}
