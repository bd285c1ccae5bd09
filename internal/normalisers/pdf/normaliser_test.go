package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// mockPages is a test double for Pages.
type mockPages struct {
	pages []string
	err   error
	errAt int
}

func (m *mockPages) NumPage() int { return len(m.pages) }

func (m *mockPages) PageText(i int) (string, error) {
	if m.err != nil && i == m.errAt {
		return "", m.err
	}
	return m.pages[i-1], nil
}

func opener(p Pages, err error) OpenFunc {
	return func([]byte) (Pages, error) { return p, err }
}

func rawPDF() *domain.RawDocument {
	return &domain.RawDocument{Path: "data/handbook.pdf", Format: domain.FormatPDF, Content: []byte("%PDF-1.4")}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
	assert.Equal(t, []domain.Format{domain.FormatPDF}, New().SupportedFormats())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_SkipsEmptyPages(t *testing.T) {
	n := NewWithOpener(opener(&mockPages{pages: []string{"Intro", "   ", "", "Appendix"}}, nil))

	doc, err := n.Normalise(context.Background(), rawPDF())

	require.NoError(t, err)
	assert.Equal(t, "Intro\nAppendix", doc.Content)
	assert.Equal(t, domain.FormatPDF, doc.Format)
	assert.Equal(t, 4, doc.Metadata["pages"])
	assert.Equal(t, 2, doc.Metadata["text_pages"])
}

func TestNormalise_NoTextAtAll(t *testing.T) {
	n := NewWithOpener(opener(&mockPages{pages: []string{"", ""}}, nil))

	doc, err := n.Normalise(context.Background(), rawPDF())

	require.NoError(t, err)
	assert.Empty(t, doc.Content)
}

func TestNormalise_OpenError(t *testing.T) {
	n := NewWithOpener(opener(nil, errors.New("malformed xref")))

	doc, err := n.Normalise(context.Background(), rawPDF())

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "malformed xref")
}

func TestNormalise_PageError(t *testing.T) {
	n := NewWithOpener(opener(&mockPages{pages: []string{"a", "b"}, err: errors.New("bad font"), errAt: 2}, nil))

	_, err := n.Normalise(context.Background(), rawPDF())

	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "page 2")
}

func TestNormalise_ParserPanic(t *testing.T) {
	n := NewWithOpener(func([]byte) (Pages, error) { panic("index out of range") })

	doc, err := n.Normalise(context.Background(), rawPDF())

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestNormalise_CorruptFileWithRealParser(t *testing.T) {
	raw := &domain.RawDocument{Path: "broken.pdf", Format: domain.FormatPDF, Content: []byte("not a pdf at all")}

	doc, err := New().Normalise(context.Background(), raw)

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestNormalise_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
