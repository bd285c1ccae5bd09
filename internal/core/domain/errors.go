package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a corpus file format with no normaliser.
	// Ingestion skips such files without reporting them as failures.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrExtraction indicates a supported file could not be turned into text.
	ErrExtraction = errors.New("text extraction failed")

	// ErrTextStoreUnavailable indicates the chunk text store failed.
	ErrTextStoreUnavailable = errors.New("text store unavailable")

	// ErrLLMUnavailable indicates the language model could not be reached.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service failed or is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index failed or is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrHistoryUnavailable indicates the conversation history backend failed.
	ErrHistoryUnavailable = errors.New("history store unavailable")

	// ErrGeneration indicates the answer for a request could not be produced.
	ErrGeneration = errors.New("answer generation failed")

	// ErrMissingCredential indicates a required secret is absent at startup.
	ErrMissingCredential = errors.New("missing credential")

	// ErrRateLimited indicates a provider rejected a call for exceeding its rate limit.
	ErrRateLimited = errors.New("rate limited")

	// ErrQueueFull indicates a worker pool could not accept more tasks.
	ErrQueueFull = errors.New("queue full")

	// ErrClosed indicates a component was used after Close.
	ErrClosed = errors.New("closed")
)

// RecoverableError marks a failure the caller is expected to degrade around
// (skip the document, answer without history) instead of failing the request.
type RecoverableError struct {
	// Op names the step that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

// Recoverable wraps err as a RecoverableError for the named step.
// Returns nil when err is nil.
func Recoverable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RecoverableError{Op: op, Err: err}
}

// Error implements error.
func (e *RecoverableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err, or anything it wraps, is a RecoverableError.
func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}
