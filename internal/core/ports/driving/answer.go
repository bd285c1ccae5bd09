package driving

import "context"

// AnswerService produces grounded replies to user questions.
type AnswerService interface {
	// Answer returns the reply for question on behalf of userID.
	// The only error is a failed language-model call (domain.ErrGeneration).
	Answer(ctx context.Context, userID, question string) (string, error)

	// Reply is Answer for chat surfaces: it never fails and returns
	// domain.ApologyReply when no answer could be produced.
	Reply(ctx context.Context, userID, question string) string
}
