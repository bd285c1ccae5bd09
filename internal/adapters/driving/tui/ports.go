// Package tui provides the interactive terminal chat for kbchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
)

// PromptReloader re-reads prompt files. driven.PromptStore satisfies it.
type PromptReloader interface {
	Reload()
}

// Ports aggregates the services the TUI drives.
type Ports struct {
	// Answer answers questions. Required.
	Answer driving.AnswerService

	// Retriever shows the passages behind an answer. Optional.
	Retriever driving.RetrieverService

	// Prompts is reloaded by the /reload command. Optional.
	Prompts PromptReloader

	// UserID identifies the person chatting for conversation history.
	UserID string

	// TopK is the retrieval depth used when showing passages.
	TopK int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
