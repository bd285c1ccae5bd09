package plaintext

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatPlain}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise returns the file content verbatim. The content must be valid UTF-8.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrExtraction, raw.Path)
	}

	return &domain.Document{
		ID:      uuid.New().String(),
		Path:    raw.Path,
		Format:  domain.FormatPlain,
		Content: string(raw.Content),
		Metadata: map[string]any{
			"bytes": len(raw.Content),
		},
	}, nil
}
