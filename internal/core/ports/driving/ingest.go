package driving

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// IngestService populates the knowledge base from a corpus directory.
type IngestService interface {
	// Ingest extracts, chunks, persists, embeds and upserts every supported
	// file in corpusDir. The report's Chunks field is the number of chunks ingested.
	Ingest(ctx context.Context, corpusDir string) (*domain.IngestReport, error)
}
