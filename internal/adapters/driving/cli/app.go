package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/kbchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage"
	"github.com/custodia-labs/kbchat/internal/adapters/driven/vector"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/core/services"
	"github.com/custodia-labs/kbchat/internal/normalisers"
	"github.com/custodia-labs/kbchat/internal/postprocessors"
)

// App is the wired application for one command.
type App struct {
	Settings domain.AppSettings
	Deps     *services.Dependencies

	Ingest    driving.IngestService
	Retriever driving.RetrieverService

	// Answers and Requests are nil for ingestion-only commands.
	Answers  driving.AnswerService
	Requests *services.WorkerPool

	history *services.HistoryWriter
}

// Close drains background work and releases every backend. Requests
// drain before history so turns recorded by late answers are still written.
func (a *App) Close() error {
	if a.Requests != nil {
		a.Requests.Close()
	}
	a.history.Close()
	if a.Deps == nil {
		return nil
	}
	return a.Deps.Close()
}

// buildApp wires the application for purpose. Tests replace it.
var buildApp = newApp

func newApp(ctx context.Context, s domain.AppSettings, purpose domain.Purpose) (*App, error) {
	if err := s.Validate(purpose); err != nil {
		return nil, err
	}

	app := &App{
		Settings: s,
		Deps:     &services.Dependencies{Normalisers: normalisers.Defaults()},
	}
	wired := false
	defer func() {
		if !wired {
			_ = app.Close()
		}
	}()

	if err := app.wireIngestion(ctx); err != nil {
		return nil, err
	}
	if purpose >= domain.PurposeAnswer {
		if err := app.wireAnswering(); err != nil {
			return nil, err
		}
	}

	wired = true
	return app, nil
}

func (a *App) wireIngestion(ctx context.Context) error {
	s := a.Settings

	pipeline, err := postprocessors.NewDefaultPipeline(s.Chunker)
	if err != nil {
		return err
	}
	a.Deps.Pipeline = pipeline

	stores, err := storage.Open(ctx, s.Store, s.DataDir)
	if err != nil {
		return err
	}
	a.Deps.TextStore = stores.Text
	if s.History.Enabled {
		a.Deps.History = stores.History
	}

	embedder, err := ai.CreateEmbeddingService(&s.Embedding, s.Resilience)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	a.Deps.Embedder = embedder

	dimension := s.Embedding.Dimensions
	if dimension <= 0 {
		dimension = embedder.Dimensions()
	}
	index, err := vector.Open(ctx, s.Vector, s.DataDir, dimension)
	if err != nil {
		return err
	}
	a.Deps.VectorIndex = index

	a.Ingest = services.NewIngestionService(a.Deps, normalisers.ReadFile)
	a.Retriever = services.NewRetriever(a.Deps)
	return nil
}

func (a *App) wireAnswering() error {
	s := a.Settings

	llm, err := ai.CreateLLMService(&s.LLM, s.Resilience)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	a.Deps.LLM = llm

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return err
	}
	a.Deps.Prompts = prompts

	if a.Deps.History != nil {
		a.history = services.NewHistoryWriter(a.Deps.History,
			services.NewWorkerPool("history", 1, s.Workers.Queue))
	}

	a.Answers = services.NewAnswerGenerator(a.Deps, a.Retriever, a.history, services.AnswerConfigFromSettings(s))
	a.Requests = services.NewWorkerPool("requests", s.Workers.Count, s.Workers.Queue)
	return nil
}

// openApp builds the app for purpose from the loaded settings.
func openApp(ctx context.Context, purpose domain.Purpose) (*App, error) {
	app, err := buildApp(ctx, settings, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return nil, fmt.Errorf("%w\nset the variables in the environment or a .env file", err)
		}
		return nil, err
	}
	return app, nil
}
