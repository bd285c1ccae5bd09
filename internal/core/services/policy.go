package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// groundingRules are appended to every persona and cannot be overridden.
var groundingRules = fmt.Sprintf(`Follow these rules for every reply:
1. Answer only with information found in the Context section. Never use outside knowledge and never make anything up.
2. Answer naturally. Never mention "the provided context", "the context" or "the documents" in your reply.
3. If the Context does not contain the answer, reply with exactly this sentence and nothing else: %s
4. Greetings, thanks and small talk are not knowledge-base questions. Reply warmly and briefly, and do not use the sentence from rule 3 for them.
5. Keep the whole reply under %d characters.`, domain.FallbackReply, domain.MaxReplyLength)

// historyPreamble introduces the prior-conversation message.
const historyPreamble = "Conversation so far (oldest first):\n"

// SystemPolicy returns the system instruction: the persona followed by the
// mandatory grounding rules. A nil store or a failed load uses domain.DefaultPersona.
func SystemPolicy(prompts driven.PromptStore) string {
	persona := domain.DefaultPersona
	if prompts != nil {
		loaded, err := prompts.Load(driven.PromptPersona)
		switch {
		case err != nil:
			logger.Warn("Using default persona: %v", err)
		case strings.TrimSpace(loaded) != "":
			persona = strings.TrimSpace(loaded)
		}
	}
	return persona + "\n\n" + groundingRules
}

// BuildPrompt assembles the ordered messages for one request: the system
// policy, the prior conversation when there is one, then the retrieved
// context with the literal question.
func BuildPrompt(policy, transcript, context, question string) []domain.Message {
	messages := []domain.Message{domain.SystemMessage(policy)}
	if transcript != "" {
		messages = append(messages, domain.SystemMessage(historyPreamble+transcript))
	}
	return append(messages, domain.QuestionMessage(context, question))
}
