// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

// QuestionSubmitted is sent when the user submits a question.
type QuestionSubmitted struct {
	Question string
}

// AnswerReceived carries the reply to a submitted question.
type AnswerReceived struct {
	Question string
	Answer   string
	Err      error
}

// ContextLoaded carries the passages retrieved for a question.
type ContextLoaded struct {
	Question string
	Passages string
	Err      error
}

// PromptsReloaded signals that prompt files were re-read from disk.
type PromptsReloaded struct{}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the conversation view.
	ViewChat ViewType = iota
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
