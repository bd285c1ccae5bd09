// Package chunker provides a recursive text chunking processor.
//
// Text is split on the largest structural boundary present (paragraph,
// line, sentence, word, then single character) until every piece fits the
// chunk size. Pieces are then merged back greedily into chunks no longer
// than the chunk size, each new chunk starting with the trailing overlap of
// the previous one. Lengths are counted in characters (runes).
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// Processor splits document content into overlapping chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	texts := p.Split(doc.Content)
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Source:     doc.Path,
			Content:    text,
			Position:   i,
			Metadata: map[string]any{
				"format": doc.Format.String(),
			},
		})
	}
	return chunks, nil
}

// Split returns the chunk texts for text. Empty or whitespace-only text yields none.
func (p *Processor) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return p.split(text, 0)
}

// boundary splits text after each occurrence of a structural separator.
// Separators stay attached to the piece they end.
type boundary func(text string) []string

var boundaries = []boundary{
	splitAfter("\n\n"),
	splitAfter("\n"),
	splitSentences,
	splitAfter(" "),
	splitRunes,
}

func (p *Processor) split(text string, level int) []string {
	var pieces []string
	next := len(boundaries)
	for i := level; i < len(boundaries); i++ {
		parts := boundaries[i](text)
		if len(parts) > 1 || i == len(boundaries)-1 {
			pieces = parts
			next = i + 1
			break
		}
	}

	var out, fitting []string
	for _, piece := range pieces {
		if runeLen(piece) < p.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, p.merge(fitting)...)
			fitting = nil
		}
		if next < len(boundaries) {
			out = append(out, p.split(piece, next)...)
		} else if text := strings.TrimSpace(piece); text != "" {
			out = append(out, text)
		}
	}
	if len(fitting) > 0 {
		out = append(out, p.merge(fitting)...)
	}
	return out
}

// merge joins consecutive pieces into chunks of at most chunkSize characters.
// After emitting a chunk, leading pieces are dropped until at most overlap
// characters remain; those open the next chunk.
func (p *Processor) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	emit := func() {
		if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
			chunks = append(chunks, text)
		}
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > p.chunkSize && len(current) > 0 {
			emit()
			for total > p.overlap || (total+n > p.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	emit()
	return chunks
}

func splitAfter(sep string) boundary {
	return func(text string) []string {
		return nonEmpty(strings.SplitAfter(text, sep))
	}
}

// splitSentences cuts after '.', '!' or '?' when followed by a space.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				parts = append(parts, text[start:i+2])
				start = i + 2
			}
		}
	}
	parts = append(parts, text[start:])
	return nonEmpty(parts)
}

func splitRunes(text string) []string {
	parts := make([]string, 0, len(text))
	for _, r := range text {
		parts = append(parts, string(r))
	}
	return parts
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
