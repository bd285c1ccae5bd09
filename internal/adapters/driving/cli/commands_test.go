package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbchat/internal/adapters/driving/telegram"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

const refundPolicy = "Refunds are processed within five working days of the return arriving."

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestIngestCmd(t *testing.T) {
	env := newTestEnv(t)
	dir := writeCorpus(t, map[string]string{
		"refunds.txt": refundPolicy,
		"logo.bin":    "\x00\x01",
	})

	out, err := execute(t, "", "--config", memory.Path, "ingest", dir)

	require.NoError(t, err)
	assert.Equal(t, domain.PurposeIngest, env.purpose)
	assert.Contains(t, out, fmt.Sprintf("Ingested 1 chunks from 1 documents in %s", dir))
	assert.Contains(t, out, "Skipped 1 unsupported files")

	count, err := env.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestCmd_RerunDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t)
	dir := writeCorpus(t, map[string]string{"refunds.txt": refundPolicy})

	_, err := execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)
	_, err = execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)

	count, err := env.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestCmd_EditedFileReplacesOldText(t *testing.T) {
	env := newTestEnv(t)
	dir := writeCorpus(t, map[string]string{
		"hours.txt":   "The office opens at 9am.",
		"refunds.txt": refundPolicy,
	})

	_, err := execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hours.txt"), []byte("The office opens at 10am."), 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "refunds.txt")))
	out, err := execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 chunks from 1 documents")
	assert.Contains(t, out, "Removed: "+filepath.Join(dir, "refunds.txt"))

	count, err := env.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, env.text.Len())

	out, err = execute(t, "", "--config", memory.Path, "ask", "--context", "When", "does", "the", "office", "open?")
	require.NoError(t, err)
	assert.Contains(t, out, "The office opens at 10am.")
	assert.NotContains(t, out, "9am")
	assert.NotContains(t, out, refundPolicy)
}

func TestIngestCmd_MissingDirectory(t *testing.T) {
	newTestEnv(t)

	_, err := execute(t, "", "--config", memory.Path, "ingest", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest")
}

func TestIngestCmd_Flags(t *testing.T) {
	assert.NotNil(t, ingestCmd.Flags().Lookup("watch"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("debounce"))
	assert.Equal(t, "w", ingestCmd.Flags().Lookup("watch").Shorthand)
}

func TestAskCmd(t *testing.T) {
	env := newTestEnv(t)
	dir := writeCorpus(t, map[string]string{"refunds.txt": refundPolicy})
	_, err := execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)

	out, err := execute(t, "", "--config", memory.Path, "ask", "How", "long", "do", "refunds", "take?")

	require.NoError(t, err)
	assert.Equal(t, domain.PurposeAnswer, env.purpose)
	assert.Contains(t, out, "Refunds take five working days.")
	assert.NotContains(t, out, "Context:")

	require.Equal(t, 1, env.llm.calls())
	var prompt string
	for _, m := range env.llm.messages[0] {
		prompt += m.Content
	}
	assert.Contains(t, prompt, refundPolicy)
	assert.Contains(t, prompt, "How long do refunds take?")
}

func TestAskCmd_ShowsContext(t *testing.T) {
	newTestEnv(t)
	dir := writeCorpus(t, map[string]string{"refunds.txt": refundPolicy})
	_, err := execute(t, "", "--config", memory.Path, "ingest", dir)
	require.NoError(t, err)

	out, err := execute(t, "", "--config", memory.Path, "ask", "--context", "refunds")

	require.NoError(t, err)
	assert.Contains(t, out, "Context:")
	assert.Contains(t, out, refundPolicy)
}

func TestAskCmd_ContextOnEmptyIndex(t *testing.T) {
	newTestEnv(t)

	out, err := execute(t, "", "--config", memory.Path, "ask", "--context", "anything")

	require.NoError(t, err)
	assert.Contains(t, out, "No matching passages.")
}

func TestAskCmd_ModelFailurePrintsApology(t *testing.T) {
	env := newTestEnv(t)
	env.llm.err = errModelDown

	out, err := execute(t, "", "--config", memory.Path, "ask", "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Contains(t, out, domain.ApologyReply)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	newTestEnv(t)

	_, err := execute(t, "", "--config", memory.Path, "ask")

	assert.Error(t, err)
}

func TestChatCmd_LineMode(t *testing.T) {
	env := newTestEnv(t)
	original := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = original }()

	out, err := execute(t, "How long do refunds take?\n\n   \nAnd for exchanges?\n",
		"--config", memory.Path, "chat", "--user", "alice")

	require.NoError(t, err)
	assert.Equal(t, 2, env.llm.calls())
	assert.Equal(t, 2, countLines(out, "Refunds take five working days."))
}

func TestChatCmd_LineModeApologises(t *testing.T) {
	env := newTestEnv(t)
	env.llm.err = errModelDown
	original := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = original }()

	out, err := execute(t, "hello\n", "--config", memory.Path, "chat")

	require.NoError(t, err)
	assert.Contains(t, out, domain.ApologyReply)
}

func TestChatCmd_Flags(t *testing.T) {
	flag := chatCmd.Flags().Lookup("user")
	require.NotNil(t, flag)
	assert.NotEmpty(t, flag.DefValue)
}

func TestServeCmd_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(domain.EnvTelegramToken, "")

	_, err := execute(t, "", "--config", memory.Path, "serve")

	assert.ErrorIs(t, err, telegram.ErrMissingToken)
	assert.Equal(t, domain.PurposeServe, env.purpose)
}

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestConfigShowCmd(t *testing.T) {
	newTestEnv(t)

	out, err := execute(t, "", "--config", memory.Path, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Config file: "+memory.Path)
	assert.Contains(t, out, fmt.Sprintf("%-36s %s", "retrieval.top_k", "8"))
	assert.Contains(t, out, fmt.Sprintf("%-36s %s", "chunker.chunk_size", "500"))
}

func TestConfigCmd_DefaultsToShow(t *testing.T) {
	newTestEnv(t)

	out, err := execute(t, "", "--config", memory.Path, "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Config file: ")
}

func TestConfigShowCmd_MasksSecrets(t *testing.T) {
	newTestEnv(t)
	t.Setenv("KBCHAT_TELEGRAM_TOKEN", "123456:ABCDEFGHIJ")

	out, err := execute(t, "", "--config", memory.Path, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "****GHIJ")
	assert.NotContains(t, out, "123456:ABCDEFGHIJ")
}

func TestConfigShowCmd_EnvOverride(t *testing.T) {
	newTestEnv(t)
	t.Setenv("KBCHAT_RETRIEVAL_TOP_K", "3")

	out, err := execute(t, "", "--config", memory.Path, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%-36s %s", "retrieval.top_k", "3"))
}

func TestConfigShowCmd_BadEnvOverride(t *testing.T) {
	newTestEnv(t)
	t.Setenv("KBCHAT_RETRIEVAL_TOP_K", "many")

	_, err := execute(t, "", "--config", memory.Path, "config", "show")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigSetCmd(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "", "--config", path, "config", "set", "retrieval.top_k", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "retrieval.top_k = 5")

	out, err = execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%-36s %s", "retrieval.top_k", "5"))
}

func TestConfigSetCmd_Secret(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "", "--config", path, "config", "set", "llm.api_key", "gsk-0123456789abcd")

	require.NoError(t, err)
	assert.Contains(t, out, "llm.api_key = ****abcd")
	assert.Contains(t, out, "KBCHAT_LLM_API_KEY")
	assert.NotContains(t, out, "gsk-0123456789abcd")
}

func TestConfigSetCmd_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"no.such_key", "1"}},
		{"bad integer", []string{"retrieval.top_k", "five"}},
		{"bad bool", []string{"history.enabled", "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newTestEnv(t)
			path := filepath.Join(t.TempDir(), "config.toml")

			args := append([]string{"--config", path, "config", "set"}, tt.args...)
			_, err := execute(t, "", args...)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.NoFileExists(t, path)
		})
	}
}

func TestConfigKeysCmd(t *testing.T) {
	newTestEnv(t)

	out, err := execute(t, "", "--config", memory.Path, "config", "keys")

	require.NoError(t, err)
	assert.Contains(t, out, "chunker.chunk_size")
	assert.Contains(t, out, "KBCHAT_CHUNKER_CHUNK_SIZE")
	assert.Contains(t, out, "KBCHAT_TELEGRAM_TOKEN")
}

func TestConfigPathCmd(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "kb.yaml")

	out, err := execute(t, "", "--config", path, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestConfigCheckCmd(t *testing.T) {
	newTestEnv(t)
	t.Setenv(domain.EnvGroqAPIKey, "gsk-test")

	original := checkProviders
	checkProviders = func(_ context.Context, s domain.AppSettings) []ai.ProviderCheck {
		return []ai.ProviderCheck{
			{Role: "embedding", Provider: s.Embedding.Provider, Model: s.Embedding.Model},
			{Role: "llm", Provider: s.LLM.Provider, Model: s.LLM.Model},
		}
	}
	defer func() { checkProviders = original }()

	out, err := execute(t, "", "--config", memory.Path, "config", "check")

	require.NoError(t, err)
	assert.Contains(t, out, "Settings: ok")
	assert.Contains(t, out, fmt.Sprintf("%-10s %s: ok", "embedding", "ollama/all-minilm"))
	assert.Contains(t, out, fmt.Sprintf("%-10s %s: ok", "llm", "openai/llama-3.1-8b-instant"))
}

func TestConfigCheckCmd_ProviderFailure(t *testing.T) {
	newTestEnv(t)
	t.Setenv(domain.EnvGroqAPIKey, "gsk-test")

	original := checkProviders
	checkProviders = func(_ context.Context, s domain.AppSettings) []ai.ProviderCheck {
		return []ai.ProviderCheck{
			{Role: "embedding", Provider: s.Embedding.Provider, Model: s.Embedding.Model, Err: errors.New("connection refused")},
		}
	}
	defer func() { checkProviders = original }()

	out, err := execute(t, "", "--config", memory.Path, "config", "check")

	require.Error(t, err)
	assert.Contains(t, out, "FAILED: connection refused")
}

func TestConfigCheckCmd_MissingCredentials(t *testing.T) {
	newTestEnv(t)
	t.Setenv(domain.EnvGroqAPIKey, "gsk-test")
	t.Setenv(domain.EnvTelegramToken, "")

	_, err := execute(t, "", "--config", memory.Path, "config", "check", "--serve")

	require.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Contains(t, err.Error(), "telegram.token")
}

func TestRootCmd_EnvFile(t *testing.T) {
	newTestEnv(t)
	require.NoError(t, os.Unsetenv("KBCHAT_HISTORY_LIMIT"))
	t.Cleanup(func() { _ = os.Unsetenv("KBCHAT_HISTORY_LIMIT") })

	envPath := filepath.Join(t.TempDir(), "kb.env")
	require.NoError(t, os.WriteFile(envPath, []byte("KBCHAT_HISTORY_LIMIT=2\n"), 0600))

	out, err := execute(t, "", "--config", memory.Path, "--env-file", envPath, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%-36s %s", "history.limit", "2"))
}

func TestRootCmd_ConfigUnusable(t *testing.T) {
	newTestEnv(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := execute(t, "", "--config", filepath.Join(blocker, "config.toml"), "config", "show")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening config")
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	assert.NotNil(t, flags.Lookup("verbose"))
	assert.Equal(t, "v", flags.Lookup("verbose").Shorthand)
	assert.NotNil(t, flags.Lookup("config"))
	assert.Equal(t, ".env", flags.Lookup("env-file").DefValue)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ingest", "ask", "chat", "serve", "mcp", "config", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestOpenApp_MissingCredentialHint(t *testing.T) {
	original := buildApp
	buildApp = func(context.Context, domain.AppSettings, domain.Purpose) (*App, error) {
		return nil, fmt.Errorf("%w: llm.api_key", domain.ErrMissingCredential)
	}
	defer func() { buildApp = original }()

	_, err := openApp(context.Background(), domain.PurposeAnswer)

	require.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Contains(t, err.Error(), ".env")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****", maskSecret("12345678"))
	assert.Equal(t, "****6789", maskSecret("123456789"))
}

func countLines(out, want string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if line == want {
			n++
		}
	}
	return n
}
