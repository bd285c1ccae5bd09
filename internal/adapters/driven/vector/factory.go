// Package vector opens the vector index selected by settings.
package vector

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/vector/milvus"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Open opens the vector index for vectors of the given dimension. The memory
// index keeps its snapshot in settings.Dir, falling back to
// <dataDir>/index; with neither set it is not persisted.
func Open(ctx context.Context, settings domain.VectorSettings, dataDir string, dimension int) (driven.VectorIndex, error) {
	switch settings.Driver {
	case domain.VectorMemory, "":
		idx, err := memory.New(SnapshotPath(settings, dataDir), dimension)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.VectorPgvector:
		idx, err := pgvector.New(ctx, settings.DSN, settings.IndexName, dimension)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.VectorMilvus:
		idx, err := milvus.New(ctx, milvus.Config{
			Address:    settings.Address,
			APIKey:     settings.APIKey,
			Collection: settings.IndexName,
			Dimension:  dimension,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector driver: %s", domain.ErrInvalidInput, settings.Driver)
	}
}

// SnapshotPath returns where the memory index persists, or "" for none.
func SnapshotPath(settings domain.VectorSettings, dataDir string) string {
	dir := settings.Dir
	if dir == "" && dataDir != "" {
		dir = filepath.Join(dataDir, "index")
	}
	if dir == "" {
		return ""
	}
	name := settings.IndexName
	if name == "" {
		name = "index"
	}
	return filepath.Join(dir, name+".json")
}
