package services

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// Dependencies holds the collaborators shared by ingestion, retrieval and
// answering. It is built once at startup and passed to each service, so
// tests can substitute any collaborator.
type Dependencies struct {
	Normalisers driven.NormaliserRegistry
	Pipeline    driven.PostProcessorPipeline
	TextStore   driven.TextStore
	Embedder    driven.EmbeddingService
	VectorIndex driven.VectorIndex
	LLM         driven.LLMService

	// History is nil when conversation history is disabled.
	History driven.HistoryStore

	// Prompts is optional; built-in prompts are used when nil.
	Prompts driven.PromptStore
}

// Close releases every non-nil collaborator that holds resources.
func (d *Dependencies) Close() error {
	var errs []error
	closeIf := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	if d.LLM != nil {
		closeIf("llm", d.LLM)
	}
	if d.Embedder != nil {
		closeIf("embedder", d.Embedder)
	}
	if d.VectorIndex != nil {
		closeIf("vector index", d.VectorIndex)
	}
	if d.History != nil {
		closeIf("history store", d.History)
	}
	if d.TextStore != nil {
		closeIf("text store", d.TextStore)
	}
	return errors.Join(errs...)
}
