package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/views/chat"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView *chat.View

	currentView messages.ViewType

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	cfg := chat.Config{
		Answers:   ports.Answer,
		Retriever: ports.Retriever,
		Prompts:   ports.Prompts,
		UserID:    ports.UserID,
		TopK:      ports.TopK,
	}

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		chatView:    chat.NewView(s, km, cfg),
		currentView: messages.ViewChat,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("kbchat"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewHelp {
			if keymap.Matches(msg.String(), a.keymap.Back) || keymap.Matches(msg.String(), a.keymap.Help) {
				a.currentView = messages.ViewChat
			}
			return a, nil
		}
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	// Answers, context and spinner ticks keep flowing while help is open.
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	if a.currentView == messages.ViewHelp {
		return a.viewHelp()
	}
	return a.chatView.View()
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\nKeys:\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
	}
	b.WriteString(`
Commands:
  /context   show or hide retrieved passages
  /reload    re-read prompt files
  /clear     clear the conversation
  /help      this page
  /quit      exit

Answers come only from the ingested documents.

`)
	b.WriteString(a.styles.Muted.Render("[esc] back to chat"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Chat returns the chat view.
func (a *App) Chat() *chat.View {
	return a.chatView
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
}
