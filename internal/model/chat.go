package model

import "encoding/json"

// Reply sources reported to the caller.
const (
	ReplySourceCacheDirect  = "cache-direct"
	ReplySourceCacheRefresh = "cache-refresh"
	ReplySourceGenerated    = "generated"
	ReplySourceOutOfScope   = "out-of-scope"
)

// ChatRequest is an incoming assistant message.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// ChatResponse is the shaped assistant reply.
type ChatResponse struct {
	Reply      string          `json:"reply"`
	Source     string          `json:"source"`
	Similarity float64         `json:"similarity,omitempty"`
	Criteria   *SearchCriteria `json:"criteria,omitempty"`
	Results    *ListingResult  `json:"results,omitempty"`
	Took       int64           `json:"took_ms"`
}

// ListingResult is the paginated answer of the downstream listing search,
// treated as opaque apart from pagination bookkeeping.
type ListingResult struct {
	Items   json.RawMessage `json:"items"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	HasMore bool            `json:"has_more"`
}

// DirectoryRecord is one canonical {id,name} row from the reference
// directory service.
type DirectoryRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
