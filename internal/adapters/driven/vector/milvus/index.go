// Package milvus stores chunk vectors in a Milvus collection with an HNSW
// index over inner product. Vectors are unit length, so inner product
// ranks exactly like cosine similarity.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Field names of the collection.
const (
	FieldID       = "id"
	FieldText     = "text"
	FieldMetadata = "metadata"
	FieldVector   = "vector"
)

// HNSW build and search parameters.
const (
	hnswM              = 16
	hnswEfConstruction = 200
	hnswEf             = 100
	maxIDLength        = 64
	maxTextLength      = 65535
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// columns holds records in column-major form, the layout the SDK inserts.
type columns struct {
	ids      []string
	texts    []string
	metadata [][]byte
	vectors  [][]float32
}

// backend is the subset of Milvus operations the index needs.
type backend interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, name string, dimension int, cols columns) error
	Search(ctx context.Context, name string, vector []float32, topK int) ([]domain.Match, error)
	RowCount(ctx context.Context, name string) (int, error)
	Delete(ctx context.Context, name string, expr string) error
	Close() error
}

// Config holds Milvus connection settings.
type Config struct {
	Address    string
	APIKey     string
	Collection string
	Dimension  int
}

// Index is a Milvus-backed vector index.
type Index struct {
	backend    backend
	collection string
	dimension  int
}

// New connects to Milvus and creates and loads the collection if needed.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: milvus address", domain.ErrMissingCredential)
	}

	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Address,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to milvus: %w", domain.ErrVectorIndexUnavailable, err)
	}

	idx, err := newIndex(ctx, &sdkBackend{client: c}, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return idx, nil
}

func newIndex(ctx context.Context, b backend, cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	name := CollectionName(cfg.Collection)
	if err := b.EnsureCollection(ctx, name, cfg.Dimension); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return &Index{backend: b, collection: name, dimension: cfg.Dimension}, nil
}

// CollectionName maps an index name such as "rag-bot-v2" to a valid Milvus
// collection name ("rag_bot_v2").
func CollectionName(indexName string) string {
	if indexName == "" {
		return "chunks"
	}
	out := []byte(indexName)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			out[i] = '_'
		}
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "c_" + string(out)
	}
	return string(out)
}

// Upsert inserts or replaces records by id.
func (idx *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	cols := columns{
		ids:      make([]string, 0, len(records)),
		texts:    make([]string, 0, len(records)),
		metadata: make([][]byte, 0, len(records)),
		vectors:  make([][]float32, 0, len(records)),
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrInvalidInput, r.ID, len(r.Vector), idx.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		cols.ids = append(cols.ids, r.ID)
		cols.texts = append(cols.texts, r.Text())
		cols.metadata = append(cols.metadata, meta)
		cols.vectors = append(cols.vectors, r.Vector)
	}

	if err := idx.backend.Upsert(ctx, idx.collection, idx.dimension, cols); err != nil {
		return fmt.Errorf("%w: upsert: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

// Query returns up to topK records ranked by descending inner product.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1", domain.ErrInvalidInput)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(vector), idx.dimension)
	}

	matches, err := idx.backend.Search(ctx, idx.collection, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return matches, nil
}

// Count returns the number of stored records.
func (idx *Index) Count(ctx context.Context) (int, error) {
	n, err := idx.backend.RowCount(ctx, idx.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return n, nil
}

// DeleteSource removes the records of source whose id is not in keep.
func (idx *Index) DeleteSource(ctx context.Context, source string, keep []string) error {
	if err := idx.backend.Delete(ctx, idx.collection, deleteExpr(source, keep)); err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrVectorIndexUnavailable, source, err)
	}
	return nil
}

// deleteExpr builds the boolean filter matching the stale records of source.
func deleteExpr(source string, keep []string) string {
	expr := fmt.Sprintf(`%s[%q] == %s`, FieldMetadata, domain.MetadataSource, strconv.Quote(source))
	if len(keep) == 0 {
		return expr
	}
	quoted := make([]string, len(keep))
	for i, id := range keep {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s && %s not in [%s]", expr, FieldID, strings.Join(quoted, ", "))
}

// Close closes the Milvus connection.
func (idx *Index) Close() error {
	return idx.backend.Close()
}

// ==================== SDK backend ====================

// sdkBackend implements backend with the Milvus Go SDK.
type sdkBackend struct {
	client client.Client
}

// collectionSchema describes a collection holding vectors of dimension.
func collectionSchema(name string, dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "Chunk vectors for retrieval",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxIDLength)},
			},
			{
				Name:       FieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxTextLength)},
			},
			{
				Name:     FieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
			{
				Name:       FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dimension)},
			},
		},
	}
}

func (b *sdkBackend) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := b.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		if err := b.client.CreateCollection(ctx, collectionSchema(name, dimension), 1); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(entity.IP, hnswM, hnswEfConstruction)
		if err != nil {
			return fmt.Errorf("building index params: %w", err)
		}
		if err := b.client.CreateIndex(ctx, name, FieldVector, idx, false); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	if err := b.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}
	return nil
}

func (b *sdkBackend) Upsert(ctx context.Context, name string, dimension int, cols columns) error {
	_, err := b.client.Upsert(ctx, name, "",
		entity.NewColumnVarChar(FieldID, cols.ids),
		entity.NewColumnVarChar(FieldText, cols.texts),
		entity.NewColumnJSONBytes(FieldMetadata, cols.metadata),
		entity.NewColumnFloatVector(FieldVector, dimension, cols.vectors),
	)
	if err != nil {
		return err
	}
	return b.client.Flush(ctx, name, false)
}

func (b *sdkBackend) Search(ctx context.Context, name string, vector []float32, topK int) ([]domain.Match, error) {
	sp, err := entity.NewIndexHNSWSearchParam(max(hnswEf, topK))
	if err != nil {
		return nil, fmt.Errorf("building search params: %w", err)
	}

	results, err := b.client.Search(
		ctx,
		name,
		[]string{},
		"",
		[]string{FieldText, FieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		FieldVector,
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return toMatches(results[0])
}

func (b *sdkBackend) RowCount(ctx context.Context, name string) (int, error) {
	stats, err := b.client.GetCollectionStatistics(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("parsing row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (b *sdkBackend) Delete(ctx context.Context, name string, expr string) error {
	if err := b.client.Delete(ctx, name, "", expr); err != nil {
		return err
	}
	return b.client.Flush(ctx, name, false)
}

func (b *sdkBackend) Close() error {
	return b.client.Close()
}

// toMatches converts one search result set into ranked matches.
func toMatches(res client.SearchResult) ([]domain.Match, error) {
	if res.ResultCount == 0 {
		return nil, nil
	}

	ids, ok := res.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", res.IDs)
	}
	texts, _ := res.Fields.GetColumn(FieldText).(*entity.ColumnVarChar)
	metas, _ := res.Fields.GetColumn(FieldMetadata).(*entity.ColumnJSONBytes)

	matches := make([]domain.Match, 0, res.ResultCount)
	for i := 0; i < res.ResultCount && i < len(ids.Data()); i++ {
		var meta map[string]string
		if metas != nil && i < len(metas.Data()) {
			if err := json.Unmarshal(metas.Data()[i], &meta); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", ids.Data()[i], err)
			}
		}
		if meta == nil {
			meta = map[string]string{}
		}
		if texts != nil && i < len(texts.Data()) && meta[domain.MetadataText] == "" {
			meta[domain.MetadataText] = texts.Data()[i]
		}

		var score float64
		if i < len(res.Scores) {
			score = float64(res.Scores[i])
		}
		matches = append(matches, domain.Match{
			ID:       ids.Data()[i],
			Score:    score,
			Metadata: meta,
		})
	}
	return matches, nil
}
