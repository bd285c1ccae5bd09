package driven

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// HistoryStore is an append-only log of conversation turns keyed by user.
// It is optional; callers treat every failure as recoverable.
type HistoryStore interface {
	// Append records one turn.
	Append(ctx context.Context, turn domain.Turn) error

	// Recent returns up to limit turns for userID, most recent first.
	Recent(ctx context.Context, userID string, limit int) ([]domain.Turn, error)

	// Close releases resources.
	Close() error
}
