package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu    sync.RWMutex
	turns map[string][]domain.Turn
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		turns: make(map[string][]domain.Turn),
	}
}

// Append records one turn in arrival order.
func (s *HistoryStore) Append(_ context.Context, turn domain.Turn) error {
	if !turn.Role.IsValid() {
		return fmt.Errorf("%w: role %q", domain.ErrInvalidInput, turn.Role)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.UserID] = append(s.turns[turn.UserID], turn)
	return nil
}

// Recent returns up to limit turns for userID, most recent first.
func (s *HistoryStore) Recent(_ context.Context, userID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[userID]
	if limit > len(all) {
		limit = len(all)
	}
	out := make([]domain.Turn, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *HistoryStore) Close() error {
	return nil
}
