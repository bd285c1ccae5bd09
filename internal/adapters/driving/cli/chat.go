package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/tui"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

var chatUser string

// isTerminal reports whether stdin is interactive. Tests replace it.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the knowledge base",
	Long: `Starts an interactive chat. On a terminal this opens the full-screen
interface; otherwise questions are read one per line from stdin and each
reply is printed on its own line.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", defaultChatUser(), "user id the conversation is stored under")
	rootCmd.AddCommand(chatCmd)
}

func defaultChatUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "tui"
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, domain.PurposeAnswer)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if !isTerminal() {
		return chatLines(cmd, app)
	}

	ports := &tui.Ports{
		Answer:    app.Answers,
		Retriever: app.Retriever,
		UserID:    chatUser,
		TopK:      app.Settings.Retrieval.TopK,
	}
	if app.Deps.Prompts != nil {
		ports.Prompts = app.Deps.Prompts
	}

	ui, err := tui.NewApp(ports)
	if err != nil {
		return err
	}
	return ui.WithContext(ctx).Run()
}

// chatLines answers each non-empty input line until EOF or cancellation.
func chatLines(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.Answers.Reply(ctx, chatUser, question))
	}
	return scanner.Err()
}
