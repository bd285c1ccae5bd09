// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
	StateHelp     State = "help"
)

// Bar displays the chat state, a spinner while an answer is pending,
// and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	state   State
	message string
	turns   int
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = s.Title

	return &Bar{
		styles:  s,
		keymap:  km,
		spinner: sp,
		state:   StateReady,
		width:   80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update advances the spinner while thinking.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok || s.state != StateThinking {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateThinking:
		return s.spinner.View() + s.styles.Muted.Render(" Thinking...")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	case StateHelp:
		return s.styles.Normal.Render("Help")
	case StateReady:
	}

	if s.message != "" {
		return s.styles.Success.Render(s.message)
	}
	if s.turns > 0 {
		return s.styles.Normal.Render(fmt.Sprintf("%d answered", s.turns))
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	if s.state == StateThinking {
		bindings = s.keymap.WaitingHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state. Entering StateThinking returns the
// command that starts the spinner.
func (s *Bar) SetState(state State) tea.Cmd {
	s.state = state
	if state == StateThinking {
		return s.spinner.Tick
	}
	return nil
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetTurns sets the number of answered questions.
func (s *Bar) SetTurns(count int) {
	s.turns = count
}

// Turns returns the number of answered questions.
func (s *Bar) Turns() int {
	return s.turns
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.turns = 0
}
