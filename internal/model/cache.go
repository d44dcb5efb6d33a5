package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Answer kinds stored in the cache.
const (
	AnswerKindSearch     = "search"
	AnswerKindText       = "text"
	AnswerKindOutOfScope = "out_of_scope"
)

// Answer sources.
const (
	AnswerSourceRules = "rules"
	AnswerSourceLLM   = "llm"
	AnswerSourceCache = "cache"
)

// Payload types for ResponsePayload.
const (
	PayloadText   = "text"
	PayloadSearch = "search"
)

// ResponsePayload is the tagged union stored as the cached answer: either a
// plain conversational text or a search answer carrying reusable criteria
// plus an opaque results snapshot.
type ResponsePayload struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Criteria *SearchCriteria `json:"criteria,omitempty"`
	Results  json.RawMessage `json:"results,omitempty"`
}

// Value implements driver.Valuer interface
func (p ResponsePayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface
func (p *ResponsePayload) Scan(value interface{}) error {
	if value == nil {
		*p = ResponsePayload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported payload column type %T", value)
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, p)
}

// CriteriaJSON wraps SearchCriteria for a JSONB column.
type CriteriaJSON struct {
	*SearchCriteria
}

// Value implements driver.Valuer interface
func (c CriteriaJSON) Value() (driver.Value, error) {
	if c.SearchCriteria == nil {
		return nil, nil
	}
	return json.Marshal(c.SearchCriteria)
}

// Scan implements sql.Scanner interface
func (c *CriteriaJSON) Scan(value interface{}) error {
	if value == nil {
		c.SearchCriteria = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported criteria column type %T", value)
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, &c.SearchCriteria)
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported tags column type %T", value)
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, j)
}

// CacheEntry is one stored question/answer pair with its embedding.
type CacheEntry struct {
	ID             string          `json:"id" db:"id"`
	Question       string          `json:"question" db:"question"`
	Embedding      pgvector.Vector `json:"-" db:"embedding"`
	Response       ResponsePayload `json:"response" db:"response"`
	Kind           string          `json:"kind" db:"kind"`
	SourceOfAnswer string          `json:"source_of_answer" db:"source_of_answer"`
	UsageCount     int             `json:"usage_count" db:"usage_count"`
	LastUsedAt     time.Time       `json:"last_used_at" db:"last_used_at"`
	PriorityLevel  int             `json:"priority_level" db:"priority_level"`
	Criteria       CriteriaJSON    `json:"extracted_criteria,omitempty" db:"extracted_criteria"`
	Tags           JSONArray       `json:"tags,omitempty" db:"tags"`
	Verified       bool            `json:"verified" db:"verified"`
	IsDeleted      bool            `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// CacheMatch is a lookup result: the entry plus how and how well it matched.
type CacheMatch struct {
	Entry      *CacheEntry `json:"entry"`
	Similarity float64     `json:"similarity"`
	Strategy   string      `json:"strategy"`
}

// CacheStats reports cache occupancy and usage.
type CacheStats struct {
	ActiveEntries  int `json:"active_entries" db:"active_entries"`
	DeletedEntries int `json:"deleted_entries" db:"deleted_entries"`
	TotalUsage     int `json:"total_usage" db:"total_usage"`
}
