// Package pgvector stores chunk vectors in PostgreSQL with the pgvector
// extension and ranks them by cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const connectTimeout = 5 * time.Second

// Index is a pgvector-backed vector index. One table holds one index.
type Index struct {
	db        *sql.DB
	table     string
	dimension int
}

// New connects to dsn and creates the extension, table and HNSW index if
// they do not exist. indexName is turned into a table name.
func New(ctx context.Context, dsn, indexName string, dimension int) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn", domain.ErrMissingCredential)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrVectorIndexUnavailable, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connecting: %w", domain.ErrVectorIndexUnavailable, err)
	}

	idx := &Index{db: db, table: TableName(indexName), dimension: dimension}
	if err := idx.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// TableName maps an index name such as "rag-bot-v2" to a table name
// ("rag_bot_v2"). Characters outside [a-z0-9_] become underscores.
func TableName(indexName string) string {
	name := strings.ToLower(strings.TrimSpace(indexName))
	if name == "" {
		name = "chunks"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "v_" + out
	}
	return out
}

// schemaStatements returns the DDL for a table of the given dimension.
func schemaStatements(table string, dimension int) []string {
	quoted := pq.QuoteIdentifier(table)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, quoted, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(table+"_embedding_idx"), quoted),
	}
}

func (idx *Index) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(idx.table, idx.dimension) {
		if _, err := idx.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: creating schema: %w", domain.ErrVectorIndexUnavailable, err)
		}
	}
	return nil
}

// Upsert inserts or replaces records by id in one transaction.
func (idx *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrInvalidInput, r.ID, len(r.Vector), idx.dimension)
		}
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata,
		    updated_at = EXCLUDED.updated_at
	`, pq.QuoteIdentifier(idx.table)))
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, pgvector.NewVector(r.Vector), meta); err != nil {
			return fmt.Errorf("%w: upserting %s: %w", domain.ErrVectorIndexUnavailable, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

// Query returns up to topK records ranked by descending cosine similarity.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1", domain.ErrInvalidInput)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(vector), idx.dimension)
	}

	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, pq.QuoteIdentifier(idx.table)), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		var meta []byte
		if err := rows.Scan(&m.ID, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %w", domain.ErrVectorIndexUnavailable, err)
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating matches: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return matches, nil
}

// Count returns the number of stored records.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := idx.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pq.QuoteIdentifier(idx.table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return n, nil
}

// DeleteSource removes the records of source whose id is not in keep.
func (idx *Index) DeleteSource(ctx context.Context, source string, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	_, err := idx.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE metadata->>'source' = $1 AND NOT (id = ANY($2))
	`, pq.QuoteIdentifier(idx.table)), source, pq.Array(keep))
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrVectorIndexUnavailable, source, err)
	}
	return nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func encodeMetadata(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding metadata: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}
