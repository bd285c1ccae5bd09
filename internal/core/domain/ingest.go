package domain

import "time"

// FileFailure records a corpus file that was skipped because extraction failed.
type FileFailure struct {
	Path string
	Err  error
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// Documents is the number of files whose text was extracted.
	Documents int

	// Unsupported lists files skipped for having no normaliser.
	Unsupported []string

	// Failed lists files skipped because extraction failed.
	Failed []FileFailure

	// Chunks is the number of chunks persisted and upserted.
	Chunks int

	// Removed lists sources whose files left the corpus and whose chunks
	// were dropped from the knowledge base.
	Removed []string

	// Duration is the wall time of the run.
	Duration time.Duration
}
