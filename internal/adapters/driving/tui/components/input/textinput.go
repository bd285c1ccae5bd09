// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
)

// CharLimit bounds a single question.
const CharLimit = 1000

// ChatInput wraps a bubbles textinput as the question box.
type ChatInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewChatInput creates a focused question box.
func NewChatInput(s *styles.Styles) *ChatInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /help"
	ti.Focus()
	ti.CharLimit = CharLimit
	ti.Width = 60

	return &ChatInput{
		textinput: ti,
		styles:    s,
		width:     60,
	}
}

// Init starts the cursor blinking.
func (c *ChatInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (c *ChatInput) Update(msg tea.Msg) (*ChatInput, tea.Cmd) {
	var cmd tea.Cmd
	c.textinput, cmd = c.textinput.Update(msg)
	return c, cmd
}

// View renders the question box.
func (c *ChatInput) View() string {
	return c.styles.InputField.Render(c.textinput.View())
}

// Value returns the current input value.
func (c *ChatInput) Value() string {
	return c.textinput.Value()
}

// SetValue sets the input value.
func (c *ChatInput) SetValue(value string) {
	c.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (c *ChatInput) Focus() tea.Cmd {
	return c.textinput.Focus()
}

// Blur removes focus from the input.
func (c *ChatInput) Blur() {
	c.textinput.Blur()
}

// Focused returns whether the input is focused.
func (c *ChatInput) Focused() bool {
	return c.textinput.Focused()
}

// SetWidth sets the outer width of the box.
func (c *ChatInput) SetWidth(width int) {
	c.width = width
	// Border, padding and prompt.
	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = 20
	}
	c.textinput.Width = inputWidth
}

// Width returns the current width.
func (c *ChatInput) Width() int {
	return c.width
}

// Height is the number of lines the box occupies.
func (c *ChatInput) Height() int {
	return 3
}

// Reset clears the input.
func (c *ChatInput) Reset() {
	c.textinput.Reset()
}
