package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer   string
	err      error
	userID   string
	question string
}

func (m *mockAnswerService) Answer(_ context.Context, userID, question string) (string, error) {
	m.userID = userID
	m.question = question
	return m.answer, m.err
}

func (m *mockAnswerService) Reply(ctx context.Context, userID, question string) string {
	reply, err := m.Answer(ctx, userID, question)
	if err != nil {
		return domain.ApologyReply
	}
	return reply
}

// mockRetriever is a mock implementation of driving.RetrieverService.
type mockRetriever struct {
	context string
	err     error
	topK    int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, topK int) (string, error) {
	m.topK = topK
	return m.context, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *domain.IngestReport
	err    error
	dir    string
}

func (m *mockIngestService) Ingest(_ context.Context, corpusDir string) (*domain.IngestReport, error) {
	m.dir = corpusDir
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.IngestReport{Duration: time.Millisecond}, nil
	}
	return m.report, nil
}

// mockIndex implements IndexStats.
type mockIndex struct {
	count int
	err   error
}

func (m *mockIndex) Count(_ context.Context) (int, error) {
	return m.count, m.err
}

// mockChunks implements ChunkReader.
type mockChunks struct {
	texts map[string]string
	err   error
}

func (m *mockChunks) Get(_ context.Context, id string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	text, ok := m.texts[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}
