package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentcore/internal/cache"
)

// CacheHandler exposes the maintenance surface of the similarity cache.
type CacheHandler struct {
	store *cache.Store
	log   *zap.SugaredLogger
}

// NewCacheHandler creates a new cache maintenance handler.
func NewCacheHandler(store *cache.Store, log *zap.SugaredLogger) *CacheHandler {
	return &CacheHandler{store: store, log: log}
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.Errorw("failed to read cache stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Entries handles GET /api/v1/cache/entries
func (h *CacheHandler) Entries(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	filter := cache.EntryFilter{
		Kind:           c.Query("kind"),
		Source:         c.Query("source"),
		IncludeDeleted: c.Query("deleted") == "true",
		Limit:          limit,
	}
	if v := c.Query("verified"); v != "" {
		verified := v == "true"
		filter.Verified = &verified
	}

	entries, err := h.store.ListEntries(c.Request.Context(), filter)
	if err != nil {
		h.log.Errorw("failed to list cache entries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cache entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// Evict handles POST /api/v1/cache/evict
func (h *CacheHandler) Evict(c *gin.Context) {
	evicted, err := h.store.EvictExcess(c.Request.Context())
	if err != nil {
		h.log.Errorw("eviction failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evict cache entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}

// verifyRequest marks entries as human-reviewed.
type verifyRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1"`
	Verified *bool    `json:"verified" binding:"required"`
}

// Verify handles POST /api/v1/cache/verify
func (h *CacheHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	updated, err := h.store.SetVerified(c.Request.Context(), req.IDs, *req.Verified)
	if err != nil {
		h.log.Errorw("verification update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
