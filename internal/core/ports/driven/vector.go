package driven

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// VectorIndex stores chunk vectors and answers nearest-neighbour queries.
// Records carry the chunk text in their metadata so a query needs no
// second lookup in the text store.
type VectorIndex interface {
	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns up to topK matches ranked by descending similarity,
	// metadata included. An empty index returns no matches and no error.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// DeleteSource removes the records whose source metadata equals source
	// and whose id is not in keep. A nil keep removes every record of source.
	DeleteSource(ctx context.Context, source string, keep []string) error

	// Close releases resources.
	Close() error
}
