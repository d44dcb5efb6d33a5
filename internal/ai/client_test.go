package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/config"
)

func testConfig(baseURL string) *config.InferenceConfig {
	return &config.InferenceConfig{
		BaseURL:             baseURL,
		GenerateModel:       "test-model",
		Temperature:         0.1,
		GenerateTimeout:     2 * time.Second,
		EmbeddingModel:      "test-embed",
		EmbeddingDimensions: 4,
		EmbeddingTimeout:    2 * time.Second,
	}
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)

		json.NewEncoder(w).Encode(GenerateResponse{
			Model:    req.Model,
			Response: `{"category":"phong_tro"}`,
			Done:     true,
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	out, err := client.Generate(context.Background(), "parse this")
	require.NoError(t, err)
	assert.Equal(t, `{"category":"phong_tro"}`, out)
}

func TestClient_Generate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Generate(context.Background(), "parse this")
	assert.Error(t, err)
}

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)

		json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float32{0.1, 0.2, 0.3, 0.4}})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	vec, err := client.Embed(context.Background(), "phòng trọ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vec)
}

func TestClient_Embed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbeddingResponse{})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Embed(context.Background(), "phòng trọ")
	assert.Error(t, err)
}
