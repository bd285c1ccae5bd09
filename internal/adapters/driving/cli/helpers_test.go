package cli

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/kbchat/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/core/services"
	"github.com/custodia-labs/kbchat/internal/normalisers"
	"github.com/custodia-labs/kbchat/internal/postprocessors"
)

const testDimension = 16

// hashEmbedder embeds text as a normalised bag of hashed words, so texts
// sharing words land close together.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, testDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,?!")))
		vec[h.Sum32()%testDimension]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] /= float32(math.Sqrt(norm))
	}
	return vec, nil
}

func (hashEmbedder) Dimensions() int             { return testDimension }
func (hashEmbedder) ModelName() string           { return "hash" }
func (hashEmbedder) Ping(_ context.Context) error { return nil }
func (hashEmbedder) Close() error                { return nil }

// fakeLLM replies with a fixed answer and records the prompts it saw.
type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]domain.Message
}

func (f *fakeLLM) Chat(_ context.Context, messages []domain.Message, _ driven.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string           { return "fake" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                { return nil }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// sharedTextStore outlives the per-command Close so state carries across
// commands in one test.
type sharedTextStore struct {
	*memory.TextStore
}

func (sharedTextStore) Close() error { return nil }

// testEnv replaces the wiring with in-memory backends for one test.
type testEnv struct {
	llm     *fakeLLM
	index   *vectormemory.Index
	text    *memory.TextStore
	history *memory.HistoryStore
	purpose domain.Purpose
	opened  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	index, err := vectormemory.New("", testDimension)
	require.NoError(t, err)

	env := &testEnv{
		llm:     &fakeLLM{reply: "Refunds take five working days."},
		index:   index,
		text:    memory.NewTextStore(),
		history: memory.NewHistoryStore(),
	}

	original := buildApp
	buildApp = env.build
	t.Cleanup(func() { buildApp = original })

	resetFlags()
	t.Cleanup(resetFlags)
	return env
}

func (e *testEnv) build(_ context.Context, s domain.AppSettings, purpose domain.Purpose) (*App, error) {
	e.purpose = purpose
	e.opened++

	pipeline, err := postprocessors.NewDefaultPipeline(s.Chunker)
	if err != nil {
		return nil, err
	}
	deps := &services.Dependencies{
		Normalisers: normalisers.Defaults(),
		Pipeline:    pipeline,
		TextStore:   sharedTextStore{e.text},
		Embedder:    hashEmbedder{},
		VectorIndex: e.index,
		LLM:         e.llm,
		History:     e.history,
	}

	app := &App{Settings: s, Deps: deps}
	app.Ingest = services.NewIngestionService(deps, normalisers.ReadFile)
	app.Retriever = services.NewRetriever(deps)
	if purpose >= domain.PurposeAnswer {
		app.Answers = services.NewAnswerGenerator(deps, app.Retriever, nil, services.AnswerConfigFromSettings(s))
		app.Requests = services.NewWorkerPool("requests", 1, 1)
	}
	return app, nil
}

// resetFlags restores every package flag variable to its default.
func resetFlags() {
	verbose = false
	configPath = ""
	envFile = ".env"
	askUser = "cli"
	askShowContext = false
	ingestWatch = false
	ingestDebounce = services.DefaultDebounce
	configCheckServe = false
	chatUser = defaultChatUser()
	_ = mcpServeCmd.Flags().Set("port", "0")
}

// execute runs the root command with args against an in-memory config and
// returns everything written to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

var errModelDown = errors.New("model unavailable")
