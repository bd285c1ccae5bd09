// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lpdf "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Pages is a parsed PDF whose pages can be read one at a time.
type Pages interface {
	// NumPage returns the number of pages.
	NumPage() int

	// PageText returns the plain text of page i (1-based).
	PageText(i int) (string, error)
}

// OpenFunc parses PDF bytes.
type OpenFunc func(content []byte) (Pages, error)

// Normaliser handles PDF documents.
type Normaliser struct {
	open OpenFunc
}

// New creates a PDF normaliser backed by github.com/ledongthuc/pdf.
func New() *Normaliser {
	return &Normaliser{open: openPDF}
}

// NewWithOpener creates a PDF normaliser with a custom parser (for testing).
func NewWithOpener(open OpenFunc) *Normaliser {
	return &Normaliser{open: open}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text page by page. Pages yielding no text are skipped;
// the remaining pages are joined with a newline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (doc *domain.Document, err error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrExtraction, raw.Path, r)
		}
	}()

	pages, err := n.open(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrExtraction, raw.Path, err)
	}

	var texts []string
	for i := 1; i <= pages.NumPage(); i++ {
		text, err := pages.PageText(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", domain.ErrExtraction, raw.Path, i, err)
		}
		if strings.TrimSpace(text) == "" {
			logger.Debug("pdf: %s page %d has no text", raw.Path, i)
			continue
		}
		texts = append(texts, text)
	}

	return &domain.Document{
		ID:      uuid.New().String(),
		Path:    raw.Path,
		Format:  domain.FormatPDF,
		Content: strings.Join(texts, "\n"),
		Metadata: map[string]any{
			"pages":      pages.NumPage(),
			"text_pages": len(texts),
		},
	}, nil
}

// ledongthucPages adapts *pdf.Reader to Pages.
type ledongthucPages struct {
	r *lpdf.Reader
}

func openPDF(content []byte) (Pages, error) {
	r, err := lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	return &ledongthucPages{r: r}, nil
}

func (p *ledongthucPages) NumPage() int {
	return p.r.NumPage()
}

func (p *ledongthucPages) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
