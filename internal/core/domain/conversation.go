package domain

import (
	"strings"
	"time"
)

// Role identifies who authored a conversation turn.
type Role string

// Conversation roles.
const (
	// RoleUser is a message sent by the user.
	RoleUser Role = "user"

	// RoleAssistant is a reply produced by the assistant.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label returns the speaker label used when rendering a transcript.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Turn is one append-only entry in a user's conversation history.
type Turn struct {
	UserID    string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Render formats the turn as a single transcript line.
func (t Turn) Render() string {
	return t.Role.Label() + ": " + t.Content
}

// OldestFirst returns a reversed copy of turns read most-recent-first.
func OldestFirst(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	return out
}

// RenderTranscript renders turns, in the order given, one per line.
func RenderTranscript(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Render())
	}
	return strings.Join(lines, "\n")
}
