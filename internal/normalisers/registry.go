package normalisers

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/normalisers/docx"
	"github.com/custodia-labs/kbchat/internal/normalisers/pdf"
	"github.com/custodia-labs/kbchat/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw documents to the highest-priority normaliser
// registered for their format.
type Registry struct {
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Defaults returns a registry holding the built-in plain text, PDF and Word normalisers.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(pdf.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser, keeping the list ordered by descending priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise extracts text with the best normaliser for raw.Format.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	for _, n := range r.normalisers {
		for _, f := range n.SupportedFormats() {
			if f == raw.Format {
				return n.Normalise(ctx, raw)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, raw.Path)
}

// SupportedFormats returns all formats that can be normalised.
func (r *Registry) SupportedFormats() []domain.Format {
	seen := make(map[domain.Format]bool)
	var formats []domain.Format
	for _, n := range r.normalisers {
		for _, f := range n.SupportedFormats() {
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	return formats
}

// ReadFile loads a corpus file as a raw document.
// Files with an unrecognised extension return domain.ErrUnsupportedType
// without being read.
func ReadFile(path string) (*domain.RawDocument, error) {
	format, ok := domain.FormatForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrExtraction, err)
	}
	return &domain.RawDocument{Path: path, Format: format, Content: content}, nil
}
