// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/kbchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/kbchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/kbchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/kbchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/kbchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the embedding service selected by settings,
// wrapped with the configured rate limit and retry policy.
func CreateEmbeddingService(
	settings *domain.EmbeddingSettings,
	resilience domain.ResilienceSettings,
) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no embedding settings", domain.ErrInvalidInput)
	}

	var svc driven.EmbeddingService
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = createOllamaEmbedding(settings)

	case domain.AIProviderOpenAI:
		openai, err := createOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
		svc = openai

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use ollama or openai",
			domain.ErrInvalidInput)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrInvalidInput, settings.Provider)
	}

	return WithEmbeddingResilience(svc, resilience), nil
}

// CreateLLMService creates the LLM service selected by settings, wrapped
// with the configured rate limit and retry policy.
func CreateLLMService(settings *domain.LLMSettings, resilience domain.ResilienceSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no llm settings", domain.ErrInvalidInput)
	}

	var svc driven.LLMService
	var err error
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = createOllamaLLM(settings)

	case domain.AIProviderOpenAI:
		svc, err = createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		svc, err = createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrInvalidInput, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithLLMResilience(svc, resilience), nil
}

// PingEmbedding validates connectivity of an embedding service.
func PingEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", domain.ErrEmbeddingUnavailable, svc.ModelName(), err)
	}
	return nil
}

// PingLLM validates connectivity of an LLM service.
func PingLLM(ctx context.Context, svc driven.LLMService) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", domain.ErrLLMUnavailable, svc.ModelName(), err)
	}
	return nil
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI-compatible embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI-compatible LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
