package domain

import (
	"path/filepath"
	"strings"
)

// Format tags the file format a document was read from.
type Format string

// Supported corpus formats.
const (
	// FormatPlain is UTF-8 text (.txt).
	FormatPlain Format = "plain"

	// FormatPDF is a PDF document (.pdf).
	FormatPDF Format = "pdf"

	// FormatWord is a Word document (.docx, .doc).
	FormatWord Format = "word"
)

// formatsByExtension maps lower-case file extensions to formats.
var formatsByExtension = map[string]Format{
	".txt":  FormatPlain,
	".pdf":  FormatPDF,
	".docx": FormatWord,
	".doc":  FormatWord,
}

// FormatForPath returns the format for a corpus file based on its extension.
// The boolean is false for extensions the system does not ingest.
func FormatForPath(path string) (Format, bool) {
	f, ok := formatsByExtension[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// SupportedExtensions returns the file extensions ingestion recognises.
func SupportedExtensions() []string {
	return []string{".txt", ".pdf", ".docx", ".doc"}
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// Document is the plain text extracted from one corpus file.
// Documents are not persisted; only their chunks are.
type Document struct {
	// ID identifies the document for the duration of one ingestion run.
	ID string

	// Path is the corpus file the text came from.
	Path string

	// Format is the file format the text was extracted from.
	Format Format

	// Content is the extracted text. May be empty.
	Content string

	// Metadata contains extractor-specific key-value pairs (page count, etc).
	Metadata map[string]any
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	// ID is assigned by the text store when the chunk is persisted.
	// It is reused as the vector record id.
	ID string

	// DocumentID links to the originating Document.
	DocumentID string

	// Source is the corpus path of the originating document.
	Source string

	// Content is the chunk text.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Hash is a content hash over source, position and text.
	// Text stores use it to return the same id when a chunk is ingested again.
	Hash string

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// StoreMetadata returns the metadata persisted with the chunk text.
func (c *Chunk) StoreMetadata() map[string]string {
	md := map[string]string{
		MetadataSource: c.Source,
	}
	if c.Hash != "" {
		md[MetadataHash] = c.Hash
	}
	return md
}
