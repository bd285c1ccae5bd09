package driven

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// CorpusWatcher reports file changes in the corpus directory.
type CorpusWatcher interface {
	// Watch starts watching and returns a channel of changes.
	// The channel is closed when ctx is cancelled or the watcher is closed.
	Watch(ctx context.Context) (<-chan domain.CorpusChange, error)

	// Close stops watching and releases resources. It is safe to call more than once.
	Close() error
}
