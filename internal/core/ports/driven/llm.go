// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// LLMService invokes a language model on an ordered list of role-tagged messages.
//
// Implementations may include:
//   - OpenAI-compatible APIs (Groq, OpenAI)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat sends the messages in order and returns the generated text.
	Chat(ctx context.Context, messages []domain.Message, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
