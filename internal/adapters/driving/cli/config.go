package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

var configCheckServe bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change settings",
	Long: `View the effective settings, change config file values and check that the
configured AI providers are reachable.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Long: `Prints every setting after defaults, the config file and KBCHAT_*
environment overrides are applied. Credentials are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a value in the config file",
	Long: `Writes one value to the config file. Run "kbchat config keys" for the
recognised keys.

Examples:
  kbchat config set retrieval.top_k 5
  kbchat config set history.enabled true
  kbchat config set vector.driver pgvector`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List recognised config keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, key := range file.Keys() {
			cmd.Printf("%-36s %s\n", key, file.EnvKey(key))
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(configStore.Path())
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the AI providers",
	Long: `Checks that every credential the configured providers and backends need
is present, then pings the embedding and language model providers.

Use --serve to also require the Telegram bot token.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

func init() {
	configCheckCmd.Flags().BoolVar(&configCheckServe, "serve", false, "also check settings needed by serve")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cmd.Printf("Config file: %s\n\n", configStore.Path())
	for _, kv := range file.Values(settings) {
		cmd.Printf("%-36s %s\n", kv.Key, displayValue(kv))
	}
	return nil
}

func displayValue(kv file.KeyValue) string {
	value := fmt.Sprint(kv.Value)
	if value == "" {
		return "(not set)"
	}
	if file.IsSecret(kv.Key) {
		return maskSecret(value)
	}
	return value
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if !file.IsKnownKey(key) {
		return fmt.Errorf("%w: unknown config key %q (see \"kbchat config keys\")", domain.ErrInvalidInput, key)
	}

	value, err := file.ParseValue(key, raw)
	if err != nil {
		return err
	}
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	shown := raw
	if file.IsSecret(key) {
		shown = maskSecret(raw)
	}
	cmd.Printf("%s = %s\n", key, shown)
	if file.IsSecret(key) {
		cmd.Printf("Note: credentials are better kept in the environment (%s)\n", file.EnvKey(key))
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	purpose := domain.PurposeAnswer
	if configCheckServe {
		purpose = domain.PurposeServe
	}
	if err := settings.Validate(purpose); err != nil {
		return err
	}
	cmd.Println("Settings: ok")

	checks := checkProviders(cmd.Context(), settings)
	for _, c := range checks {
		status := "ok"
		if !c.OK() {
			status = "FAILED: " + strings.TrimSpace(c.Err.Error())
		}
		cmd.Printf("%-10s %s/%s: %s\n", c.Role, c.Provider, c.Model, status)
	}
	return ai.ChecksError(checks)
}

// checkProviders pings the AI providers. Tests replace it.
var checkProviders = ai.CheckProviders
