// Package memory provides a brute-force in-process vector index.
//
// Every query scores all records by cosine similarity. The index can keep a
// JSON snapshot on disk so a separate ingest process and a serving process
// share one knowledge base without an external service. The serving process
// picks up a newer snapshot on its next query.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// snapshot is the on-disk layout.
type snapshot struct {
	Dimension int                   `json:"dimension"`
	Records   []domain.VectorRecord `json:"records"`
}

// Index is an in-memory vector index with optional file persistence.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	records   map[string]domain.VectorRecord
	loadedAt  time.Time
}

// New creates an index for vectors of the given dimension. When path is not
// empty an existing snapshot is loaded and every upsert rewrites it.
func New(path string, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}

	idx := &Index{
		path:      path,
		dimension: dimension,
		records:   make(map[string]domain.VectorRecord),
	}
	if path == "" {
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	if err := idx.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return idx, nil
}

// Path returns the snapshot path, or "" for a purely in-memory index.
func (idx *Index) Path() string {
	return idx.path
}

// Upsert inserts or replaces records by id.
func (idx *Index) Upsert(_ context.Context, records []domain.VectorRecord) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if len(r.Vector) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrInvalidInput, r.ID, len(r.Vector), idx.dimension)
		}
	}
	if len(records) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.refreshLocked(); err != nil {
		return err
	}
	for _, r := range records {
		idx.records[r.ID] = copyRecord(r)
	}
	return idx.saveLocked()
}

// Query returns up to topK records ranked by descending cosine similarity.
// Equal scores are ordered by id.
func (idx *Index) Query(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1", domain.ErrInvalidInput)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(vector), idx.dimension)
	}

	if err := idx.refresh(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	matches := make([]domain.Match, 0, len(idx.records))
	for _, r := range idx.records {
		matches = append(matches, domain.Match{
			ID:       r.ID,
			Score:    domain.CosineSimilarity(vector, r.Vector),
			Metadata: copyMetadata(r.Metadata),
		})
	}
	idx.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored records.
func (idx *Index) Count(_ context.Context) (int, error) {
	if err := idx.refresh(); err != nil {
		return 0, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records), nil
}

// DeleteSource removes the records of source whose id is not in keep and
// rewrites the snapshot when anything was removed.
func (idx *Index) DeleteSource(_ context.Context, source string, keep []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.refreshLocked(); err != nil {
		return err
	}
	removed := 0
	for id, r := range idx.records {
		if r.Metadata[domain.MetadataSource] != source || slices.Contains(keep, id) {
			continue
		}
		delete(idx.records, id)
		removed++
	}
	if removed == 0 {
		return nil
	}
	return idx.saveLocked()
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// refresh reloads the snapshot if another process rewrote it.
func (idx *Index) refresh() error {
	if idx.path == "" {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.refreshLocked()
}

func (idx *Index) refreshLocked() error {
	if idx.path == "" {
		return nil
	}
	info, err := os.Stat(idx.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if !info.ModTime().After(idx.loadedAt) {
		return nil
	}
	return idx.loadLocked()
}

func (idx *Index) load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.loadLocked()
}

func (idx *Index) loadLocked() error {
	info, err := os.Stat(idx.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(idx.path)
	if err != nil {
		return fmt.Errorf("%w: reading snapshot: %w", domain.ErrVectorIndexUnavailable, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: decoding snapshot %s: %w", domain.ErrVectorIndexUnavailable, idx.path, err)
	}
	if snap.Dimension != idx.dimension {
		return fmt.Errorf("%w: snapshot %s has dimension %d, embedder has %d",
			domain.ErrInvalidInput, idx.path, snap.Dimension, idx.dimension)
	}

	records := make(map[string]domain.VectorRecord, len(snap.Records))
	for _, r := range snap.Records {
		records[r.ID] = r
	}
	idx.records = records
	idx.loadedAt = info.ModTime()
	return nil
}

// saveLocked writes the snapshot through a temp file and rename.
func (idx *Index) saveLocked() error {
	if idx.path == "" {
		return nil
	}

	snap := snapshot{Dimension: idx.dimension, Records: make([]domain.VectorRecord, 0, len(idx.records))}
	for _, r := range idx.records {
		snap.Records = append(snap.Records, r)
	}
	sort.Slice(snap.Records, func(i, j int) bool { return snap.Records[i].ID < snap.Records[j].ID })

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(idx.path), filepath.Base(idx.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: writing snapshot: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: writing snapshot: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), idx.path); err != nil {
		return fmt.Errorf("%w: replacing snapshot: %w", domain.ErrVectorIndexUnavailable, err)
	}

	if info, err := os.Stat(idx.path); err == nil {
		idx.loadedAt = info.ModTime()
	}
	return nil
}

func copyRecord(r domain.VectorRecord) domain.VectorRecord {
	vec := make([]float32, len(r.Vector))
	copy(vec, r.Vector)
	return domain.VectorRecord{ID: r.ID, Vector: vec, Metadata: copyMetadata(r.Metadata)}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
