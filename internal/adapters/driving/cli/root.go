// Package cli implements the kbchat command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string
)

// Loaded before every command runs.
var (
	configStore driven.ConfigStore
	settings    domain.AppSettings
)

var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "Chat with your knowledge base",
	Long: `kbchat answers questions from a corpus of your own documents.

Ingest a directory of text, PDF and Word files, then ask questions from the
command line, an interactive chat, a Telegram bot or any MCP client.
Answers are grounded in the retrieved documents only.

Settings come from ~/.kbchat/config.toml (or --config), overridden by
KBCHAT_* environment variables. Credentials are read from the environment
(GROQ_API_KEY, OPENAI_API_KEY, TELEGRAM_BOT_TOKEN, ...) and may be kept in a
.env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file, .toml or .yaml (default ~/.kbchat/config.toml, "+memory.Path+" for none)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of environment variables to load")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadSettings(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if envFile != "" {
		if err := file.LoadDotEnv(envFile); err != nil {
			return err
		}
	}

	store, err := openConfigStore(configPath)
	if err != nil {
		return err
	}

	s, err := file.LoadSettings(store, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	configStore = store
	settings = s
	logger.Debug("config: %s", store.Path())
	return nil
}

func openConfigStore(path string) (driven.ConfigStore, error) {
	if path == memory.Path {
		return memory.NewConfigStore(nil), nil
	}
	store, err := file.NewConfigStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return store, nil
}
