// Package chat provides the conversation view of the TUI.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
)

// Reloader re-reads prompt files. driven.PromptStore satisfies it.
type Reloader interface {
	Reload()
}

// Config wires the view to the core services.
type Config struct {
	Answers   driving.AnswerService
	Retriever driving.RetrieverService
	Prompts   Reloader
	UserID    string
	TopK      int
}

// View is the chat: transcript, question box and status bar.
// One question is answered at a time.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.ChatInput
	transcript *transcript.Transcript
	statusbar  *status.Bar

	cfg Config
	ctx context.Context

	width       int
	height      int
	ready       bool
	waiting     bool
	showContext bool
	answered    int
	err         error
}

// NewView creates a chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, cfg Config) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewChatInput(s),
		transcript: transcript.New(s),
		statusbar:  status.NewBar(s, km),
		cfg:        cfg,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
}

// WithContext sets the context passed to the services.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ContextLoaded:
		v.handleContext(msg)
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.statusbar, cmd = v.statusbar.Update(msg)
		return v, cmd

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()

	switch {
	case keymap.Matches(key, v.keymap.ScrollUp), keymap.Matches(key, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case keymap.Matches(key, v.keymap.Help):
		return v, changeView(messages.ViewHelp)

	case keymap.Matches(key, v.keymap.ToggleContext):
		v.toggleContext()
		return v, nil

	case keymap.Matches(key, v.keymap.Clear):
		v.clear()
		return v, nil

	case keymap.Matches(key, v.keymap.Send):
		return v, v.submit()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit handles the typed line: a slash command or a question.
func (v *View) submit() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.waiting {
		return nil
	}
	v.input.Reset()

	if strings.HasPrefix(text, "/") {
		if cmd, ok := v.runCommand(text); ok {
			return cmd
		}
	}
	return v.ask(text)
}

// runCommand executes a slash command and reports whether text was one.
func (v *View) runCommand(text string) (tea.Cmd, bool) {
	switch strings.Fields(text)[0] {
	case "/help":
		return changeView(messages.ViewHelp), true
	case "/quit", "/exit":
		return func() tea.Msg { return messages.Quit{} }, true
	case "/clear":
		v.clear()
		return nil, true
	case "/context":
		v.toggleContext()
		return nil, true
	case "/reload":
		v.reloadPrompts()
		return nil, true
	}
	return nil, false
}

func (v *View) ask(question string) tea.Cmd {
	v.transcript.Add(transcript.KindUser, question)
	v.waiting = true
	v.err = nil
	v.statusbar.SetMessage("")

	cmds := []tea.Cmd{v.statusbar.SetState(status.StateThinking), v.answerCmd(question)}
	if v.showContext && v.cfg.Retriever != nil {
		cmds = append(cmds, v.contextCmd(question))
	}
	return tea.Batch(cmds...)
}

func (v *View) answerCmd(question string) tea.Cmd {
	answers, ctx, userID := v.cfg.Answers, v.ctx, v.cfg.UserID
	return func() tea.Msg {
		answer, err := answers.Answer(ctx, userID, question)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

func (v *View) contextCmd(question string) tea.Cmd {
	retriever, ctx, topK := v.cfg.Retriever, v.ctx, v.cfg.TopK
	return func() tea.Msg {
		passages, err := retriever.Retrieve(ctx, question, topK)
		return messages.ContextLoaded{Question: question, Passages: passages, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.waiting = false
	if msg.Err != nil {
		v.err = msg.Err
		v.transcript.Add(transcript.KindError, domain.ApologyReply)
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.answered++
	v.transcript.Add(transcript.KindAssistant, msg.Answer)
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetTurns(v.answered)
}

func (v *View) handleContext(msg messages.ContextLoaded) {
	switch {
	case msg.Err != nil:
		v.transcript.Add(transcript.KindError, "Context unavailable: "+msg.Err.Error())
	case msg.Passages == "":
		v.transcript.Add(transcript.KindNotice, "No matching passages.")
	default:
		v.transcript.Add(transcript.KindContext, msg.Passages)
	}
}

func (v *View) toggleContext() {
	if v.cfg.Retriever == nil {
		v.transcript.Add(transcript.KindNotice, "Context display is not available.")
		return
	}
	v.showContext = !v.showContext
	if v.showContext {
		v.transcript.Add(transcript.KindNotice, "Retrieved passages will be shown with each question.")
	} else {
		v.transcript.Add(transcript.KindNotice, "Retrieved passages hidden.")
	}
}

func (v *View) reloadPrompts() {
	if v.cfg.Prompts == nil {
		v.transcript.Add(transcript.KindNotice, "Prompts are built in; nothing to reload.")
		return
	}
	v.cfg.Prompts.Reload()
	v.transcript.Add(transcript.KindNotice, "Prompts reloaded.")
	v.statusbar.SetMessage("Prompts reloaded")
}

func (v *View) clear() {
	v.transcript.Clear()
	v.err = nil
	if !v.waiting {
		v.statusbar.SetState(status.StateReady)
	}
	v.statusbar.SetMessage("")
}

func changeView(view messages.ViewType) tea.Cmd {
	return func() tea.Msg {
		return messages.ViewChanged{View: view}
	}
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("kbchat"),
		v.transcript.View(),
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Title and status bar take a line each.
	v.input.SetWidth(width)
	v.transcript.SetDimensions(width, height-v.input.Height()-2)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Waiting reports whether an answer is pending.
func (v *View) Waiting() bool {
	return v.waiting
}

// ShowContext reports whether retrieved passages are displayed.
func (v *View) ShowContext() bool {
	return v.showContext
}

// Transcript returns the conversation so far.
func (v *View) Transcript() []transcript.Entry {
	return v.transcript.Entries()
}

// Input returns the text in the question box.
func (v *View) Input() string {
	return v.input.Value()
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}
