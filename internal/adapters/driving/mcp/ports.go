package mcp

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
)

// IndexStats reports the size of the knowledge base.
// driven.VectorIndex satisfies it.
type IndexStats interface {
	Count(ctx context.Context) (int, error)
}

// ChunkReader returns stored chunk text by id.
// driven.TextStore satisfies it.
type ChunkReader interface {
	Get(ctx context.Context, id string) (string, error)
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers questions. Required.
	Answer driving.AnswerService

	// Retriever exposes raw retrieval context. Optional.
	Retriever driving.RetrieverService

	// Ingest rebuilds the knowledge base. Optional.
	Ingest driving.IngestService

	// Index reports the number of indexed chunks. Optional.
	Index IndexStats

	// Chunks serves chunk text by id. Optional.
	Chunks ChunkReader

	// CorpusDir is ingested when the ingest tool is called without a directory.
	CorpusDir string

	// TopK is the default retrieval depth.
	TopK int
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
