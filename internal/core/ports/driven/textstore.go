package driven

import "context"

// TextStore persists chunk text and issues the ids shared with the vector index.
type TextStore interface {
	// Insert stores content with its metadata and returns the record id.
	// When metadata carries a content hash already stored, the existing id
	// is returned and nothing new is written.
	Insert(ctx context.Context, content string, metadata map[string]string) (string, error)

	// Get returns the content stored under id.
	Get(ctx context.Context, id string) (string, error)

	// Sources returns every distinct non-empty source with stored chunks.
	Sources(ctx context.Context) ([]string, error)

	// DeleteSource removes the chunks of source whose id is not in keep.
	// A nil keep removes every chunk of source.
	DeleteSource(ctx context.Context, source string, keep []string) error

	// Close releases resources.
	Close() error
}
