// Package storage opens the text and history stores selected by settings.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/mongo"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Stores holds the text store and history store of one backend.
// Both share a connection; closing either closes it.
type Stores struct {
	Text    driven.TextStore
	History driven.HistoryStore
}

// Open opens the store backend named in settings. SQLite files default to
// <dataDir>/kbchat.db when no path is configured.
func Open(ctx context.Context, settings domain.StoreSettings, dataDir string) (*Stores, error) {
	switch settings.Driver {
	case domain.StoreSQLite, "":
		path := settings.Path
		if path == "" && dataDir != "" {
			path = filepath.Join(dataDir, sqlite.DefaultFileName)
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTextStoreUnavailable, err)
		}
		return &Stores{Text: store.TextStore(), History: store.HistoryStore()}, nil

	case domain.StoreMongo:
		store, err := mongo.NewStore(ctx, settings.URI, settings.Database)
		if err != nil {
			return nil, err
		}
		return &Stores{Text: store.TextStore(), History: store.HistoryStore()}, nil

	case domain.StoreMemory:
		return &Stores{Text: memory.NewTextStore(), History: memory.NewHistoryStore()}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported store driver: %s", domain.ErrInvalidInput, settings.Driver)
	}
}
