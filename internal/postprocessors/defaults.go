package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/postprocessors/chunker"
	"github.com/custodia-labs/kbchat/internal/postprocessors/hasher"
)

// DefaultProcessors is the processor order used for ingestion.
var DefaultProcessors = []string{"chunker", "hasher"}

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("hasher", func(map[string]any) (driven.PostProcessor, error) {
		return hasher.New(), nil
	})
}

// NewDefaultPipeline builds the ingestion pipeline (chunker then hasher)
// from chunker settings.
func NewDefaultPipeline(cfg domain.ChunkerSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	configs := map[string]map[string]any{
		"chunker": {
			"chunk_size": cfg.ChunkSize,
			"overlap":    cfg.Overlap,
		},
	}

	pipeline := NewPipeline()
	for _, name := range DefaultProcessors {
		processor, err := r.Build(name, configs[name])
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		pipeline.processors = append(pipeline.processors, processor)
	}
	return pipeline, nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 500)
//   - overlap (int): Overlapping characters between chunks (default: 100)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		if size <= 0 {
			return nil, fmt.Errorf("%w: chunk_size must be positive", domain.ErrInvalidInput)
		}
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		if overlap < 0 {
			return nil, fmt.Errorf("%w: overlap must not be negative", domain.ErrInvalidInput)
		}
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/YAML parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
