package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer", func(t *testing.T) {
		answers := &mockAnswerService{answer: "The sky is blue."}
		server, err := NewServer(&Ports{Answer: answers})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "What colour is the sky?", UserID: "alice"})

		require.NoError(t, err)
		assert.Equal(t, "The sky is blue.", output.Answer)
		assert.Equal(t, "alice", answers.userID)
		assert.Equal(t, "What colour is the sky?", answers.question)
	})

	t.Run("defaults user id", func(t *testing.T) {
		answers := &mockAnswerService{answer: "ok"}
		server, err := NewServer(&Ports{Answer: answers})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q", UserID: "  "})

		require.NoError(t, err)
		assert.Equal(t, defaultUserID, answers.userID)
	})

	t.Run("returns error on generation failure", func(t *testing.T) {
		answers := &mockAnswerService{err: domain.ErrGeneration}
		server, err := NewServer(&Ports{Answer: answers})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrGeneration)
	})
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns context", func(t *testing.T) {
		retriever := &mockRetriever{context: "The sky is blue.\n\nGrass is green."}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Retriever: retriever})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "sky", TopK: 2})

		require.NoError(t, err)
		assert.True(t, output.Found)
		assert.Equal(t, "The sky is blue.\n\nGrass is green.", output.Context)
		assert.Equal(t, 2, retriever.topK)
	})

	t.Run("top k falls back to ports then default", func(t *testing.T) {
		retriever := &mockRetriever{}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Retriever: retriever, TopK: 5})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "sky"})
		require.NoError(t, err)
		assert.False(t, output.Found)
		assert.Equal(t, 5, retriever.topK)

		server.ports.TopK = 0
		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "sky"})
		require.NoError(t, err)
		assert.Equal(t, defaultTopK, retriever.topK)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Retriever: &mockRetriever{}})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: " "})
		assert.Error(t, err)
	})

	t.Run("returns retriever error", func(t *testing.T) {
		retriever := &mockRetriever{err: domain.ErrVectorIndexUnavailable}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Retriever: retriever})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "sky"})
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("summarises report", func(t *testing.T) {
		ingest := &mockIngestService{report: &domain.IngestReport{
			Documents:   2,
			Chunks:      7,
			Unsupported: []string{"data/image.png"},
			Removed:     []string{"data/old.txt"},
			Failed:      []domain.FileFailure{{Path: "data/bad.pdf", Err: errors.New("corrupt")}},
			Duration:    1500 * time.Millisecond,
		}}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Ingest: ingest, CorpusDir: "data"})
		require.NoError(t, err)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{})

		require.NoError(t, err)
		assert.Equal(t, "data", ingest.dir)
		assert.Equal(t, 2, output.Documents)
		assert.Equal(t, 7, output.Chunks)
		assert.Equal(t, []string{"data/image.png"}, output.Unsupported)
		assert.Equal(t, []string{"data/old.txt"}, output.Removed)
		assert.Equal(t, []string{"data/bad.pdf: corrupt"}, output.Failed)
		assert.Equal(t, int64(1500), output.DurationMS)
	})

	t.Run("explicit directory wins", func(t *testing.T) {
		ingest := &mockIngestService{}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Ingest: ingest, CorpusDir: "data"})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{Dir: "/srv/docs"})

		require.NoError(t, err)
		assert.Equal(t, "/srv/docs", ingest.dir)
	})

	t.Run("no directory", func(t *testing.T) {
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Ingest: &mockIngestService{}})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{})
		assert.Error(t, err)
	})

	t.Run("returns ingest error", func(t *testing.T) {
		ingest := &mockIngestService{err: domain.ErrEmbeddingUnavailable}
		server, err := NewServer(&Ports{Answer: &mockAnswerService{}, Ingest: ingest, CorpusDir: "data"})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}
