package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// ProviderCheck is the outcome of checking one AI provider.
type ProviderCheck struct {
	// Role is "embedding" or "llm".
	Role string

	// Provider is the configured provider.
	Provider domain.AIProvider

	// Model is the configured model.
	Model string

	// Err is nil when the provider was created and answered a ping.
	Err error
}

// OK reports whether the check passed.
func (c ProviderCheck) OK() bool {
	return c.Err == nil
}

// CheckProviders creates the embedding and LLM services from settings and
// pings each. Both are always checked so every problem is reported at once.
func CheckProviders(ctx context.Context, settings domain.AppSettings) []ProviderCheck {
	embedding := ProviderCheck{Role: "embedding", Provider: settings.Embedding.Provider, Model: settings.Embedding.Model}
	if svc, err := CreateEmbeddingService(&settings.Embedding, domain.ResilienceSettings{}); err != nil {
		embedding.Err = err
	} else {
		embedding.Err = PingEmbedding(ctx, svc)
		_ = svc.Close()
	}

	llm := ProviderCheck{Role: "llm", Provider: settings.LLM.Provider, Model: settings.LLM.Model}
	if svc, err := CreateLLMService(&settings.LLM, domain.ResilienceSettings{}); err != nil {
		llm.Err = err
	} else {
		llm.Err = PingLLM(ctx, svc)
		_ = svc.Close()
	}

	return []ProviderCheck{embedding, llm}
}

// ChecksError joins the failed checks into one error, or returns nil.
func ChecksError(checks []ProviderCheck) error {
	var errs []error
	for _, c := range checks {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("%s (%s/%s): %w", c.Role, c.Provider, c.Model, c.Err))
		}
	}
	return errors.Join(errs...)
}
