package services

import (
	"context"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// historyWriteTimeout bounds one background append.
const historyWriteTimeout = 5 * time.Second

// HistoryWriter persists conversation turns in the background.
// Callers never wait for a write and never see its errors.
type HistoryWriter struct {
	store driven.HistoryStore
	pool  *WorkerPool
}

// NewHistoryWriter creates a writer that appends to store using pool.
func NewHistoryWriter(store driven.HistoryStore, pool *WorkerPool) *HistoryWriter {
	return &HistoryWriter{store: store, pool: pool}
}

// Record queues turns for appending, in order, without blocking.
// A full queue drops the turns and logs a warning.
func (w *HistoryWriter) Record(turns ...domain.Turn) {
	if w == nil || w.store == nil || len(turns) == 0 {
		return
	}

	err := w.pool.TrySubmit(func(ctx context.Context) {
		for _, t := range turns {
			if err := w.append(ctx, t); err != nil {
				logger.Warn("history: %v", domain.Recoverable("append "+t.Role.String()+" turn for "+t.UserID, err))
				return
			}
		}
	})
	if err != nil {
		logger.Warn("history: dropped %d turns for %s: %v", len(turns), turns[0].UserID, err)
	}
}

func (w *HistoryWriter) append(ctx context.Context, t domain.Turn) error {
	ctx, cancel := context.WithTimeout(ctx, historyWriteTimeout)
	defer cancel()
	return w.store.Append(ctx, t)
}

// Close waits for queued writes to finish.
func (w *HistoryWriter) Close() {
	if w == nil || w.pool == nil {
		return
	}
	w.pool.Close()
}
