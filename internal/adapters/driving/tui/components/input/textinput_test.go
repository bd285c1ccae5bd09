package input

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
)

func TestNewChatInput(t *testing.T) {
	input := NewChatInput(styles.DefaultStyles())

	require.NotNil(t, input)
	assert.Equal(t, "", input.Value())
	assert.True(t, input.Focused())
}

func TestNewChatInput_NilStyles(t *testing.T) {
	input := NewChatInput(nil)

	require.NotNil(t, input)
	assert.NotNil(t, input.styles)
}

func TestChatInput_Init(t *testing.T) {
	assert.NotNil(t, NewChatInput(nil).Init())
}

func TestChatInput_Update(t *testing.T) {
	input := NewChatInput(nil)

	for _, r := range "hours?" {
		input.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	assert.Equal(t, "hours?", input.Value())
}

func TestChatInput_View(t *testing.T) {
	input := NewChatInput(nil)
	input.SetValue("opening hours")

	view := input.View()

	assert.Contains(t, view, ">")
	assert.Contains(t, view, "opening hours")
}

func TestChatInput_CharLimit(t *testing.T) {
	input := NewChatInput(nil)

	input.SetValue(strings.Repeat("a", CharLimit+50))

	assert.Len(t, input.Value(), CharLimit)
}

func TestChatInput_FocusAndBlur(t *testing.T) {
	input := NewChatInput(nil)

	input.Blur()
	assert.False(t, input.Focused())

	input.Focus()
	assert.True(t, input.Focused())
}

func TestChatInput_SetWidth(t *testing.T) {
	tests := []struct {
		width     int
		wantInner int
	}{
		{100, 92},
		{40, 32},
		{10, 20},
	}

	for _, tt := range tests {
		input := NewChatInput(nil)
		input.SetWidth(tt.width)

		assert.Equal(t, tt.width, input.Width())
		assert.Equal(t, tt.wantInner, input.textinput.Width)
	}
}

func TestChatInput_Reset(t *testing.T) {
	input := NewChatInput(nil)
	input.SetValue("something")

	input.Reset()

	assert.Equal(t, "", input.Value())
}
