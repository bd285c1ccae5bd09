package tui

import (
	"context"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

type mockAnswers struct {
	answer string
	err    error
	calls  int
}

func (m *mockAnswers) Answer(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.answer, m.err
}

func (m *mockAnswers) Reply(ctx context.Context, userID, question string) string {
	answer, err := m.Answer(ctx, userID, question)
	if err != nil {
		return domain.ApologyReply
	}
	return answer
}

type mockRetriever struct {
	passages string
	err      error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, _ int) (string, error) {
	return m.passages, m.err
}

type mockReloader struct {
	calls int
}

func (m *mockReloader) Reload() {
	m.calls++
}
