// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Help toggles the help view.
	Help key.Binding

	// Back returns to the chat from help.
	Back key.Binding

	// Send submits the typed question.
	Send key.Binding

	// ScrollUp scrolls the conversation up a page.
	ScrollUp key.Binding

	// ScrollDown scrolls the conversation down a page.
	ScrollDown key.Binding

	// ToggleContext shows or hides retrieved passages under each question.
	ToggleContext key.Binding

	// Clear empties the conversation on screen.
	Clear key.Binding
}

// DefaultKeyMap returns the default keybindings.
// Letters are left free for typing, so bindings use control keys.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		ToggleContext: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "context"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.ToggleContext, k.Help, k.Quit}
}

// WaitingHelp returns the bindings shown while an answer is pending.
func (k *KeyMap) WaitingHelp() []key.Binding {
	return []key.Binding{k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.ScrollUp, k.ScrollDown},
		{k.ToggleContext, k.Clear},
		{k.Help, k.Back, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
