package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func TestSnapshotPath(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.VectorSettings
		dataDir  string
		want     string
	}{
		{"explicit dir", domain.VectorSettings{Dir: "/tmp/idx", IndexName: "rag-bot-v2"}, "/data", "/tmp/idx/rag-bot-v2.json"},
		{"data dir fallback", domain.VectorSettings{IndexName: "rag-bot-v2"}, "/data", "/data/index/rag-bot-v2.json"},
		{"default name", domain.VectorSettings{Dir: "/tmp/idx"}, "", "/tmp/idx/index.json"},
		{"not persisted", domain.VectorSettings{IndexName: "x"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), SnapshotPath(tt.settings, tt.dataDir))
		})
	}
}

func TestOpen_Memory(t *testing.T) {
	dataDir := t.TempDir()

	idx, err := Open(context.Background(), domain.VectorSettings{Driver: domain.VectorMemory, IndexName: "kb"}, dataDir, 3)
	require.NoError(t, err)
	defer idx.Close()

	mem, ok := idx.(*memory.Index)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dataDir, "index", "kb.json"), mem.Path())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, domain.VectorSettings{Driver: domain.VectorPgvector}, "", 3)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	_, err = Open(ctx, domain.VectorSettings{Driver: domain.VectorMilvus}, "", 3)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	_, err = Open(ctx, domain.VectorSettings{Driver: "faiss"}, "", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Open(ctx, domain.VectorSettings{Driver: domain.VectorMemory}, "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
