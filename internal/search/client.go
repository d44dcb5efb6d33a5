package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rentcore/internal/config"
	"rentcore/internal/model"
)

// Client calls the downstream listing-search service. The assistant only
// shapes the query and relays the result page; it never interprets listings.
type Client struct {
	config     *config.SearchConfig
	httpClient *http.Client
}

// NewClient creates the listing-search client.
func NewClient(cfg *config.SearchConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Search runs a listing query for the extracted criteria. Page and limit are
// clamped to the configured bounds before leaving the process.
func (c *Client) Search(ctx context.Context, criteria *model.SearchCriteria, page, limit int) (*model.ListingResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = c.config.DefaultLimit
	}
	if limit > c.config.MaxLimit {
		limit = c.config.MaxLimit
	}

	url := fmt.Sprintf("%s/listings?%s", c.config.BaseURL, criteria.QueryParams(page, limit).Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call listing search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing search returned status %d: %s", resp.StatusCode, string(body))
	}

	var result model.ListingResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	if result.Page == 0 {
		result.Page = page
	}
	return &result, nil
}
