package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// buildDOCX creates a minimal Word package in memory.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const twoParagraphs = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Welcome to the </w:t></w:r><w:r><w:t>internship.</w:t></w:r></w:p>
<w:p><w:r><w:t>Stand-up is at 10:00.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
	assert.Equal(t, []domain.Format{domain.FormatWord}, New().SupportedFormats())
}

func TestNormalise_ParagraphsJoinedByNewline(t *testing.T) {
	raw := &domain.RawDocument{Path: "data/onboarding.docx", Format: domain.FormatWord, Content: buildDOCX(t, twoParagraphs)}

	doc, err := New().Normalise(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, "Welcome to the internship.\nStand-up is at 10:00.", doc.Content)
	assert.Equal(t, 2, doc.Metadata["paragraphs"])
	assert.Equal(t, domain.FormatWord, doc.Format)
}

func TestNormalise_EmptyBody(t *testing.T) {
	xmlDoc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body></w:body></w:document>`
	raw := &domain.RawDocument{Path: "empty.docx", Content: buildDOCX(t, xmlDoc)}

	doc, err := New().Normalise(context.Background(), raw)

	require.NoError(t, err)
	assert.Empty(t, doc.Content)
}

func TestNormalise_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content func(t *testing.T) []byte
	}{
		{"legacy binary doc", func(*testing.T) []byte { return []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1} }},
		{"missing document.xml", func(t *testing.T) []byte { return buildDOCX(t, "") }},
		{"malformed xml", func(t *testing.T) []byte { return buildDOCX(t, "<w:document><w:body>") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &domain.RawDocument{Path: "bad.doc", Content: tt.content(t)}

			doc, err := New().Normalise(context.Background(), raw)

			assert.Nil(t, doc)
			assert.ErrorIs(t, err, domain.ErrExtraction)
		})
	}
}

func TestNormalise_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
