package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rentcore/internal/config"
	"rentcore/internal/model"
)

// DirectoryClient fetches canonical vocabularies from the reference
// directory service, following its hasMore cursor per scope.
type DirectoryClient struct {
	config     *config.DirectoryConfig
	httpClient *http.Client
}

// NewDirectoryClient creates a directory client.
func NewDirectoryClient(cfg *config.DirectoryConfig) *DirectoryClient {
	return &DirectoryClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// directoryPage is one page of a scoped listing
type directoryPage struct {
	Items   []model.DirectoryRecord `json:"items"`
	HasMore bool                    `json:"hasMore"`
}

// FetchProvinces returns the global province list.
func (c *DirectoryClient) FetchProvinces(ctx context.Context) ([]model.DirectoryRecord, error) {
	return c.fetchAll(ctx, "/provinces")
}

// FetchWards returns the ward list of one province.
func (c *DirectoryClient) FetchWards(ctx context.Context, provinceID string) ([]model.DirectoryRecord, error) {
	return c.fetchAll(ctx, fmt.Sprintf("/provinces/%s/wards", provinceID))
}

// FetchAmenities returns the global amenity list.
func (c *DirectoryClient) FetchAmenities(ctx context.Context) ([]model.DirectoryRecord, error) {
	return c.fetchAll(ctx, "/amenities")
}

// fetchAll pages through a scope until hasMore is false. MaxPages is a hard
// ceiling against a directory that never stops paginating.
func (c *DirectoryClient) fetchAll(ctx context.Context, path string) ([]model.DirectoryRecord, error) {
	var all []model.DirectoryRecord

	for page := 1; page <= c.config.MaxPages; page++ {
		url := fmt.Sprintf("%s%s?page=%d", c.config.BaseURL, path, page)
		httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("directory request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var result directoryPage
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		all = append(all, result.Items...)
		if !result.HasMore {
			break
		}
	}

	return all, nil
}
