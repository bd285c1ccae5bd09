package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func TestCheckProviders_AllHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	settings := domain.DefaultAppSettings()
	settings.Embedding.BaseURL = srv.URL
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL, Model: "llama3.1:8b"}

	checks := CheckProviders(context.Background(), settings)
	require.Len(t, checks, 2)
	assert.True(t, checks[0].OK())
	assert.True(t, checks[1].OK())
	assert.NoError(t, ChecksError(checks))
}

func TestCheckProviders_ReportsEveryFailure(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.BaseURL = "http://127.0.0.1:1"
	settings.LLM.APIKey = ""

	checks := CheckProviders(context.Background(), settings)
	require.Len(t, checks, 2)

	assert.Equal(t, "embedding", checks[0].Role)
	assert.ErrorIs(t, checks[0].Err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, "llm", checks[1].Role)
	assert.ErrorIs(t, checks[1].Err, domain.ErrMissingCredential)

	err := ChecksError(checks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding (ollama/all-minilm)")
	assert.Contains(t, err.Error(), "llm (openai/llama-3.1-8b-instant)")
}
