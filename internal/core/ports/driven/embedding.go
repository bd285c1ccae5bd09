// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// Ingestion and query-time retrieval must use the same service so that
// chunk and query vectors live in the same space.
//
// Implementations may include:
//   - Ollama (all-minilm, nomic-embed-text)
//   - OpenAI-compatible APIs (text-embedding-3-small)
type EmbeddingService interface {
	// Embed generates a unit-length vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536).
	// This is determined by the model and must match the VectorIndex.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
