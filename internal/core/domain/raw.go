package domain

// RawDocument is a corpus file read from disk, before text extraction.
type RawDocument struct {
	// Path is the file location.
	Path string

	// Format is derived from the file extension.
	Format Format

	// Content is the raw bytes.
	Content []byte
}
