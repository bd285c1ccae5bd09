package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxReplyLength is the chat platform's message ceiling in characters.
const MaxReplyLength = 2000

// FallbackReply is the exact sentence used when the knowledge base lacks an answer.
const FallbackReply = "I don't have that information in my knowledge base right now."

// DefaultPersona opens the system instruction unless a persona prompt is configured.
const DefaultPersona = "You are a friendly assistant for AI interns. You answer questions about the team's knowledge base."

// ApologyReply is sent when a request cannot be answered at all.
const ApologyReply = "Sorry, something went wrong while answering your question. Please try again in a moment."

// MessageRole tags a prompt message for the language model.
type MessageRole string

// Prompt message roles.
const (
	// MessageSystem carries instructions.
	MessageSystem MessageRole = "system"

	// MessageHuman carries the user's input.
	MessageHuman MessageRole = "human"
)

// Message is one role-tagged entry of a prompt.
type Message struct {
	Role    MessageRole
	Content string
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: MessageSystem, Content: content}
}

// HumanMessage returns a human-role message.
func HumanMessage(content string) Message {
	return Message{Role: MessageHuman, Content: content}
}

// QuestionMessage combines retrieved context and the literal user question.
func QuestionMessage(context, question string) Message {
	return HumanMessage("Context:\n" + context + "\n\nQuestion:\n" + question)
}

// ClampReply trims surrounding whitespace and cuts the reply to MaxReplyLength characters.
func ClampReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if utf8.RuneCountInString(reply) <= MaxReplyLength {
		return reply
	}
	runes := []rune(reply)
	return strings.TrimSpace(string(runes[:MaxReplyLength]))
}
