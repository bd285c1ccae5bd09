package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.RetrieverService = (*Retriever)(nil)

// contextSeparator separates chunk texts in the assembled context.
const contextSeparator = "\n\n"

// Retriever embeds a question and collects the text of its nearest chunks.
type Retriever struct {
	embedder    driven.EmbeddingService
	vectorIndex driven.VectorIndex
}

// NewRetriever creates a retriever. It must share its embedder with ingestion.
func NewRetriever(deps *Dependencies) *Retriever {
	return &Retriever{
		embedder:    deps.Embedder,
		vectorIndex: deps.VectorIndex,
	}
}

// Retrieve returns the texts of the topK nearest chunks in ranked order,
// separated by a blank line. An index with no matches yields "".
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	if topK < 1 {
		return "", fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidInput, topK)
	}
	if r.embedder == nil {
		return "", domain.ErrEmbeddingUnavailable
	}
	if r.vectorIndex == nil {
		return "", domain.ErrVectorIndexUnavailable
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.vectorIndex.Query(ctx, vector, topK)
	if err != nil {
		return "", fmt.Errorf("query vector index: %w", err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		logger.Debug("Match %s score=%.4f source=%s", m.ID, m.Score, m.Metadata[domain.MetadataSource])
		if text := m.Text(); text != "" {
			texts = append(texts, text)
		}
	}
	logger.Debug("Retrieved %d of %d requested chunks", len(texts), topK)

	return strings.Join(texts, contextSeparator), nil
}
