package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

var (
	askUser        string
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the knowledge base a question",
	Long: `Answers a single question from the ingested documents and prints the reply.

Use --context to also print the passages the answer was grounded on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "cli", "user id the question is asked as")
	askCmd.Flags().BoolVar(&askShowContext, "context", false, "print the retrieved context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return domain.ErrInvalidInput
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, domain.PurposeAnswer)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if askShowContext {
		passages, err := app.Retriever.Retrieve(ctx, question, app.Settings.Retrieval.TopK)
		if err != nil {
			return err
		}
		if passages == "" {
			cmd.Println("No matching passages.")
		} else {
			cmd.Println("Context:")
			cmd.Println(passages)
		}
		cmd.Println()
	}

	answer, err := app.Answers.Answer(ctx, askUser, question)
	if err != nil {
		cmd.Println(domain.ApologyReply)
		return err
	}
	cmd.Println(answer)
	return nil
}
