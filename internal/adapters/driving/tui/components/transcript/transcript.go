// Package transcript renders the scrolling conversation of a chat session.
package transcript

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
)

// Kind identifies who or what produced an entry.
type Kind int

const (
	// KindUser is a question typed by the user.
	KindUser Kind = iota
	// KindAssistant is a reply.
	KindAssistant
	// KindContext is the passages retrieved for a question.
	KindContext
	// KindNotice is feedback from a local command.
	KindNotice
	// KindError is a failure shown inline.
	KindError
)

// Entry is one block of the conversation.
type Entry struct {
	Kind Kind
	Text string
}

// Transcript holds the conversation and renders it into a viewport.
type Transcript struct {
	styles   *styles.Styles
	viewport viewport.Model
	entries  []Entry
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		styles:   s,
		viewport: viewport.New(80, 20),
	}
}

// Add appends an entry and scrolls to the bottom.
func (t *Transcript) Add(kind Kind, text string) {
	t.entries = append(t.entries, Entry{Kind: kind, Text: strings.TrimSpace(text)})
	t.refresh()
	t.viewport.GotoBottom()
}

// Entries returns the conversation so far.
func (t *Transcript) Entries() []Entry {
	return t.entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.entries = nil
	t.refresh()
	t.viewport.GotoTop()
}

// SetDimensions sizes the viewport.
func (t *Transcript) SetDimensions(width, height int) {
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
	t.viewport.GotoBottom()
}

// Update forwards scrolling input to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the conversation.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// AtBottom reports whether the newest entry is visible.
func (t *Transcript) AtBottom() bool {
	return t.viewport.AtBottom()
}

func (t *Transcript) refresh() {
	if len(t.entries) == 0 {
		t.viewport.SetContent(t.styles.Muted.Render("Ask anything about the knowledge base."))
		return
	}

	blocks := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		blocks = append(blocks, t.render(e))
	}
	t.viewport.SetContent(strings.Join(blocks, "\n\n"))
}

func (t *Transcript) render(e Entry) string {
	width := t.viewport.Width
	body := lipgloss.NewStyle().Width(width)

	switch e.Kind {
	case KindUser:
		return t.styles.UserLabel.Render("You") + "\n" + body.Render(t.styles.Normal.Render(e.Text))
	case KindAssistant:
		return t.styles.AssistantLabel.Render("Assistant") + "\n" + body.Render(t.styles.Normal.Render(e.Text))
	case KindContext:
		// The left rule and padding take three columns.
		return t.styles.Context.Width(width - 3).Render(e.Text)
	case KindNotice:
		return body.Render(t.styles.Notice.Render(e.Text))
	case KindError:
		return body.Render(t.styles.Error.Render(e.Text))
	default:
		return body.Render(e.Text)
	}
}
