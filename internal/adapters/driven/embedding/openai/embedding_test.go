package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func TestNewEmbeddingService_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestNewEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		model string
		dims  int
		want  int
	}{
		{"text-embedding-3-small", 0, 1536},
		{"text-embedding-3-large", 0, 3072},
		{"text-embedding-3-small", 384, 384},
		{"custom-model", 0, 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			svc, err := NewEmbeddingService(Config{APIKey: "k", Model: tt.model, Dimensions: tt.dims})
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.Dimensions())
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestEmbed(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0,2,0]}]}`))
	}))
	defer srv.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "secret", BaseURL: srv.URL + "/", Dimensions: 3})
	require.NoError(t, err)

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, got.Input)
	assert.Equal(t, 3, got.Dimensions)
	assert.Equal(t, []float32{0, 1, 0}, vec)
}

func TestEmbed_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, domain.ErrEmbeddingUnavailable},
		{"rate limited", http.StatusTooManyRequests, `slow down`, domain.ErrRateLimited},
		{"empty data", http.StatusOK, `{"data":[]}`, domain.ErrEmbeddingUnavailable},
		{"wrong size", http.StatusOK, `{"data":[{"index":0,"embedding":[1,2]}]}`, domain.ErrInvalidInput},
		{"not json", http.StatusBadGateway, `<html>`, domain.ErrEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 3})
			require.NoError(t, err)

			_, err = svc.Embed(context.Background(), "hello")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
