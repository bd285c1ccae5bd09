package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/telegram"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Connects to Telegram with TELEGRAM_BOT_TOKEN and answers every message
sent to the bot from the knowledge base.

Questions are answered by a pool of workers.count workers; when more than
workers.queue questions are waiting, new ones get a busy reply.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, domain.PurposeServe)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	bot, err := telegram.New(app.Settings.Telegram.Token, app.Answers, app.Requests)
	if err != nil {
		return err
	}

	cmd.Println("Bot is running (Ctrl+C to stop)")
	bot.Start(ctx)
	return nil
}
