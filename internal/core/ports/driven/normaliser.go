package driven

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// Normaliser extracts plain text from raw corpus files.
// Each normaliser handles specific formats (e.g., PDF, Word).
type Normaliser interface {
	// SupportedFormats returns the formats this normaliser handles.
	SupportedFormats() []domain.Format

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}

// NormaliserRegistry selects the appropriate normaliser for a document.
type NormaliserRegistry interface {
	// Normalise extracts text using the highest-priority normaliser for the
	// document's format. Returns domain.ErrUnsupportedType when none matches.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedFormats returns all formats that can be normalised.
	SupportedFormats() []domain.Format
}
