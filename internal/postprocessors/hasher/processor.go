// Package hasher stamps chunks with a content hash so that re-ingesting an
// unchanged corpus maps every chunk to the id it was stored under before.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor sets Chunk.Hash on every chunk it receives.
type Processor struct{}

// New creates a new hasher processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "hasher"
}

// Process hashes each chunk's source, position and content.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		chunks[i].Hash = Hash(chunks[i].Source, chunks[i].Position, chunks[i].Content)
	}
	return chunks, nil
}

// Hash returns the hex SHA-256 of source, position and content.
func Hash(source string, position int, content string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
