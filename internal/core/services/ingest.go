package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestService = (*IngestionService)(nil)

// FileReader loads a corpus file as a raw document.
// It returns domain.ErrUnsupportedType for extensions that are not ingested.
type FileReader func(path string) (*domain.RawDocument, error)

// IngestionService populates the knowledge base from a corpus directory.
type IngestionService struct {
	readFile    FileReader
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	textStore   driven.TextStore
	embedder    driven.EmbeddingService
	vectorIndex driven.VectorIndex
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(deps *Dependencies, readFile FileReader) *IngestionService {
	return &IngestionService{
		readFile:    readFile,
		normalisers: deps.Normalisers,
		pipeline:    deps.Pipeline,
		textStore:   deps.TextStore,
		embedder:    deps.Embedder,
		vectorIndex: deps.VectorIndex,
	}
}

// Ingest runs the whole corpus through five phases: extract every file,
// chunk every document, persist and embed each chunk in sequence, upsert
// all vector records in one call, and finally prune chunks the corpus no
// longer produces.
//
// Unsupported files are skipped silently and files that fail extraction are
// logged and skipped; their previously ingested chunks are left alone. A
// text store, embedding or upsert failure aborts the run before anything is
// upserted or pruned. Re-running on an unchanged corpus changes nothing.
func (s *IngestionService) Ingest(ctx context.Context, corpusDir string) (*domain.IngestReport, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &domain.IngestReport{}

	// 1. EXTRACT
	logger.Section("Extract")
	docs, err := s.extractAll(ctx, corpusDir, report)
	if err != nil {
		return nil, err
	}
	report.Documents = len(docs)

	// 2. CHUNK
	logger.Section("Chunk")
	chunks, err := ChunkDocuments(ctx, s.pipeline, docs)
	if err != nil {
		return nil, err
	}
	logger.Info("Chunked %d documents into %d chunks", len(docs), len(chunks))

	// 3. PERSIST + EMBED
	logger.Section("Embed")
	records := make([]domain.VectorRecord, 0, len(chunks))
	for i := range chunks {
		record, err := s.processChunk(ctx, &chunks[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	// 4. UPSERT
	if len(records) > 0 {
		logger.Section("Upsert")
		if err := s.vectorIndex.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("upsert %d vectors: %w", len(records), err)
		}
	}

	// 5. PRUNE
	if err := s.prune(ctx, corpusDir, docs, chunks, report); err != nil {
		return nil, err
	}

	report.Chunks = len(records)
	report.Duration = time.Since(start)
	logger.Info("Ingested %d chunks from %d documents (%d unsupported, %d failed) in %s",
		report.Chunks, report.Documents, len(report.Unsupported), len(report.Failed), report.Duration)
	return report, nil
}

func (s *IngestionService) validate() error {
	switch {
	case s.readFile == nil || s.normalisers == nil:
		return fmt.Errorf("ingest: %w: no normalisers configured", domain.ErrInvalidInput)
	case s.pipeline == nil:
		return fmt.Errorf("ingest: %w: no chunking pipeline configured", domain.ErrInvalidInput)
	case s.textStore == nil:
		return fmt.Errorf("ingest: %w", domain.ErrTextStoreUnavailable)
	case s.embedder == nil:
		return fmt.Errorf("ingest: %w", domain.ErrEmbeddingUnavailable)
	case s.vectorIndex == nil:
		return fmt.Errorf("ingest: %w", domain.ErrVectorIndexUnavailable)
	}
	return nil
}

// extractAll extracts every regular file directly inside corpusDir.
// Skipped files are recorded on report.
func (s *IngestionService) extractAll(
	ctx context.Context,
	corpusDir string,
	report *domain.IngestReport,
) ([]*domain.Document, error) {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", corpusDir, err)
	}

	var docs []*domain.Document
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(corpusDir, entry.Name())
		doc, err := s.extract(ctx, path)
		switch {
		case errors.Is(err, domain.ErrUnsupportedType):
			logger.Debug("Skipping unsupported file %s", path)
			report.Unsupported = append(report.Unsupported, path)
		case domain.IsRecoverable(err):
			logger.Warn("Skipping %s: %v", path, err)
			report.Failed = append(report.Failed, domain.FileFailure{Path: path, Err: err})
		case err != nil:
			return nil, err
		default:
			logger.Debug("Extracted %s (%s, %d chars)", path, doc.Format, len(doc.Content))
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// extract reads and normalises one file. Every failure other than an
// unsupported format or a cancelled context is recoverable.
func (s *IngestionService) extract(ctx context.Context, path string) (*domain.Document, error) {
	raw, err := s.readFile(path)
	if err == nil {
		var doc *domain.Document
		doc, err = s.normalisers.Normalise(ctx, raw)
		if err == nil {
			return doc, nil
		}
	}

	if errors.Is(err, domain.ErrUnsupportedType) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, domain.Recoverable("extract "+path, err)
}

// processChunk persists the chunk text, then embeds it. The text store id
// becomes the vector record id.
func (s *IngestionService) processChunk(ctx context.Context, chunk *domain.Chunk) (domain.VectorRecord, error) {
	id, err := s.textStore.Insert(ctx, chunk.Content, chunk.StoreMetadata())
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("persist chunk %d of %s: %w", chunk.Position, chunk.Source, err)
	}
	chunk.ID = id

	vector, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("embed chunk %d of %s: %w", chunk.Position, chunk.Source, err)
	}

	logger.Debug("Chunk %s: %s #%d (%d chars)", id, chunk.Source, chunk.Position, len(chunk.Content))
	return domain.VectorRecord{
		ID:     id,
		Vector: vector,
		Metadata: map[string]string{
			domain.MetadataText:   chunk.Content,
			domain.MetadataSource: chunk.Source,
		},
	}, nil
}

// prune drops chunks left behind by earlier runs. An extracted document
// keeps only the chunks produced now, so an edited file leaves no stale
// text behind. A source stored under corpusDir whose file is gone loses
// all its chunks. Files skipped in this run are not touched.
func (s *IngestionService) prune(
	ctx context.Context,
	corpusDir string,
	docs []*domain.Document,
	chunks []domain.Chunk,
	report *domain.IngestReport,
) error {
	keep := make(map[string][]string, len(docs))
	for _, doc := range docs {
		keep[doc.Path] = []string{}
	}
	for _, c := range chunks {
		keep[c.Source] = append(keep[c.Source], c.ID)
	}

	skipped := make(map[string]bool, len(report.Unsupported)+len(report.Failed))
	for _, path := range report.Unsupported {
		skipped[path] = true
	}
	for _, f := range report.Failed {
		skipped[f.Path] = true
	}

	stored, err := s.textStore.Sources(ctx)
	if err != nil {
		return fmt.Errorf("list stored sources: %w", err)
	}
	dir := filepath.Clean(corpusDir)
	for _, source := range stored {
		if _, ok := keep[source]; ok || skipped[source] || filepath.Dir(source) != dir {
			continue
		}
		keep[source] = nil
		report.Removed = append(report.Removed, source)
	}
	sort.Strings(report.Removed)

	sources := make([]string, 0, len(keep))
	for source := range keep {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		if err := s.vectorIndex.DeleteSource(ctx, source, keep[source]); err != nil {
			return fmt.Errorf("prune vectors of %s: %w", source, err)
		}
		if err := s.textStore.DeleteSource(ctx, source, keep[source]); err != nil {
			return fmt.Errorf("prune chunks of %s: %w", source, err)
		}
	}
	if len(report.Removed) > 0 {
		logger.Info("Removed chunks of %d deleted files", len(report.Removed))
	}
	return nil
}

// ChunkDocuments runs each document through the pipeline independently and
// concatenates the chunks, preserving order within each document.
func ChunkDocuments(
	ctx context.Context,
	pipeline driven.PostProcessorPipeline,
	docs []*domain.Document,
) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		docChunks, err := pipeline.Process(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.Path, err)
		}
		chunks = append(chunks, docChunks...)
	}
	return chunks, nil
}
