// Package docx extracts paragraph text from Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Word documents in the Office Open XML package format.
// Legacy binary .doc files are not zip packages and fail extraction.
type Normaliser struct{}

// New creates a new Word normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatWord}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the body paragraphs of word/document.xml, one per line.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a Word package: %w", domain.ErrExtraction, raw.Path, err)
	}

	paragraphs, err := readParagraphs(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, raw.Path, err)
	}

	return &domain.Document{
		ID:      uuid.New().String(),
		Path:    raw.Path,
		Format:  domain.FormatWord,
		Content: strings.TrimSpace(strings.Join(paragraphs, "\n")),
		Metadata: map[string]any{
			"paragraphs": len(paragraphs),
		},
	}, nil
}

// readParagraphs returns the text of each body paragraph of word/document.xml.
func readParagraphs(reader *zip.Reader) ([]string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		return parseDocumentXML(content)
	}
	return nil, fmt.Errorf("word/document.xml missing")
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) ([]string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return paragraphs, nil
}
