package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/config"
	"rentcore/internal/model"
)

func testConfig(baseURL string) *config.SearchConfig {
	return &config.SearchConfig{
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		DefaultLimit: 10,
		MaxLimit:     50,
	}
}

func testCriteria() *model.SearchCriteria {
	category := model.CategoryRoom
	max := 3_000_000.0
	ward := model.ResolvedRef("760", "Quận 1")
	return &model.SearchCriteria{
		IsInScopeQuery: true,
		Category:       &category,
		Ward:           &ward,
		PriceRange:     &model.Range{Max: &max},
	}
}

func TestClient_Search_BuildsQuery(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/listings", r.URL.Path)
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [{"id": "l1"}], "total": 1, "page": 1, "has_more": false}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	result, err := client.Search(context.Background(), testCriteria(), 1, 10)
	require.NoError(t, err)

	assert.Equal(t, "phong_tro", gotQuery["category"])
	assert.Equal(t, "760", gotQuery["ward"])
	assert.Equal(t, "3000000", gotQuery["priceMax"])
	assert.Equal(t, "1", gotQuery["page"])
	assert.Equal(t, "10", gotQuery["limit"])

	assert.Equal(t, 1, result.Total)
	assert.False(t, result.HasMore)
	assert.JSONEq(t, `[{"id": "l1"}]`, string(result.Items))
}

func TestClient_Search_ClampsPagination(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{
			"page":  r.URL.Query().Get("page"),
			"limit": r.URL.Query().Get("limit"),
		}
		w.Write([]byte(`{"items": [], "total": 0, "page": 1, "has_more": false}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.Search(context.Background(), testCriteria(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", got["page"])
	assert.Equal(t, "10", got["limit"], "zero limit takes the default")

	_, err = client.Search(context.Background(), testCriteria(), 2, 500)
	require.NoError(t, err)
	assert.Equal(t, "2", got["page"])
	assert.Equal(t, "50", got["limit"], "oversized limit is capped")
}

func TestClient_Search_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Search(context.Background(), testCriteria(), 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Search_FillsMissingPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [], "total": 0, "has_more": false}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	result, err := client.Search(context.Background(), testCriteria(), 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Page)
}
