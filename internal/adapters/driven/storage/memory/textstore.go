package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure TextStore implements the interface.
var _ driven.TextStore = (*TextStore)(nil)

// storedChunk is one chunk held by the text store.
type storedChunk struct {
	content string
	source  string
	hash    string
}

// TextStore is an in-memory implementation of driven.TextStore.
// Contents are lost when the process exits.
type TextStore struct {
	mu     sync.RWMutex
	chunks map[string]storedChunk
	byHash map[string]string
	closed bool
}

// NewTextStore creates a new in-memory text store.
func NewTextStore() *TextStore {
	return &TextStore{
		chunks: make(map[string]storedChunk),
		byHash: make(map[string]string),
	}
}

// Insert stores content and returns its id. A known content hash returns
// the id it was first stored under.
func (s *TextStore) Insert(_ context.Context, content string, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrClosed
	}

	hash := metadata[domain.MetadataHash]
	if hash != "" {
		if id, ok := s.byHash[hash]; ok {
			return id, nil
		}
	}

	id := uuid.New().String()
	s.chunks[id] = storedChunk{content: content, source: metadata[domain.MetadataSource], hash: hash}
	if hash != "" {
		s.byHash[hash] = id
	}
	return id, nil
}

// Get returns the content stored under id.
func (s *TextStore) Get(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return c.content, nil
}

// Sources returns the distinct sources of stored chunks in sorted order.
func (s *TextStore) Sources(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, c := range s.chunks {
		if c.source == "" || seen[c.source] {
			continue
		}
		seen[c.source] = true
		out = append(out, c.source)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSource removes the chunks of source whose id is not in keep.
func (s *TextStore) DeleteSource(_ context.Context, source string, keep []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	for id, c := range s.chunks {
		if c.source != source || slices.Contains(keep, id) {
			continue
		}
		delete(s.chunks, id)
		if c.hash != "" {
			delete(s.byHash, c.hash)
		}
	}
	return nil
}

// Len returns the number of stored chunks.
func (s *TextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close marks the store closed. Later inserts fail with domain.ErrClosed.
func (s *TextStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
