package driving

import "context"

// RetrieverService assembles retrieval context for a question.
type RetrieverService interface {
	// Retrieve returns the text of the topK nearest chunks, in ranked order,
	// separated by a blank line. Returns "" when the index has no matches.
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}
