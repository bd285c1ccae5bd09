package services

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// With no fixed embedding it returns a normalised bag-of-words vector with
// one dimension per distinct lower-cased word, so texts sharing words score higher.
type mockEmbeddingService struct {
	mu        sync.Mutex
	embedding []float32
	embedErr  error
	failOn    string
	calls     []string
	vocab     map[string]int
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if m.embedding != nil {
		return m.embedding, nil
	}
	return m.bagOfWords(text), nil
}

func (m *mockEmbeddingService) Dimensions() int { return mockDimensions }

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

const mockDimensions = 256

func (m *mockEmbeddingService) bagOfWords(text string) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vocab == nil {
		m.vocab = make(map[string]int)
	}

	v := make([]float32, mockDimensions)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		idx, ok := m.vocab[w]
		if !ok {
			idx = len(m.vocab) % mockDimensions
			m.vocab[w] = idx
		}
		v[idx]++
	}
	return domain.Normalize(v)
}

// mockVectorIndex implements driven.VectorIndex with brute-force cosine search.
type mockVectorIndex struct {
	mu          sync.Mutex
	records     []domain.VectorRecord
	upsertCalls int
	upsertErr   error
	queryErr    error
	deleteErr   error
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range records {
		replaced := false
		for i := range m.records {
			if m.records[i].ID == r.ID {
				m.records[i] = r
				replaced = true
			}
		}
		if !replaced {
			m.records = append(m.records, r)
		}
	}
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	matches := make([]domain.Match, 0, len(m.records))
	for _, r := range m.records {
		matches = append(matches, domain.Match{
			ID:       r.ID,
			Score:    domain.CosineSimilarity(vector, r.Vector),
			Metadata: r.Metadata,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *mockVectorIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *mockVectorIndex) DeleteSource(_ context.Context, source string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Metadata[domain.MetadataSource] != source || slices.Contains(keep, r.ID) {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockTextStore implements driven.TextStore, deduplicating by hash.
type mockTextStore struct {
	mu        sync.Mutex
	texts     map[string]string
	sources   map[string]string
	byHash    map[string]string
	next      int
	insertErr error
	inserts   int
}

func newMockTextStore() *mockTextStore {
	return &mockTextStore{texts: map[string]string{}, sources: map[string]string{}, byHash: map[string]string{}}
}

func (m *mockTextStore) Insert(_ context.Context, content string, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return "", m.insertErr
	}
	hash := metadata[domain.MetadataHash]
	if id, ok := m.byHash[hash]; ok && hash != "" {
		return id, nil
	}
	m.next++
	id := "chunk-" + strconv.Itoa(m.next)
	m.texts[id] = content
	m.sources[id] = metadata[domain.MetadataSource]
	if hash != "" {
		m.byHash[hash] = id
	}
	return id, nil
}

func (m *mockTextStore) Get(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.texts[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *mockTextStore) Sources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, source := range m.sources {
		if source != "" && !slices.Contains(out, source) {
			out = append(out, source)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockTextStore) DeleteSource(_ context.Context, source string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, src := range m.sources {
		if src != source || slices.Contains(keep, id) {
			continue
		}
		delete(m.texts, id)
		delete(m.sources, id)
		for hash, hid := range m.byHash {
			if hid == id {
				delete(m.byHash, hash)
			}
		}
	}
	return nil
}

func (m *mockTextStore) Close() error { return nil }

// mockLLMService implements driven.LLMService, recording the messages it receives.
type mockLLMService struct {
	mu       sync.Mutex
	response string
	err      error
	received [][]domain.Message
	options  []driven.ChatOptions
}

func (m *mockLLMService) Chat(_ context.Context, messages []domain.Message, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, messages)
	m.options = append(m.options, opts)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func (m *mockLLMService) lastMessages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

// mockHistoryStore implements driven.HistoryStore and counts every call.
type mockHistoryStore struct {
	mu          sync.Mutex
	turns       []domain.Turn
	appendErr   error
	recentErr   error
	appendCalls int
	recentCalls int
	appended    chan domain.Turn
}

func (m *mockHistoryStore) Append(_ context.Context, turn domain.Turn) error {
	m.mu.Lock()
	m.appendCalls++
	err := m.appendErr
	if err == nil {
		m.turns = append(m.turns, turn)
	}
	m.mu.Unlock()

	if m.appended != nil {
		m.appended <- turn
	}
	return err
}

// Recent returns the user's turns newest first.
func (m *mockHistoryStore) Recent(_ context.Context, userID string, limit int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentCalls++
	if m.recentErr != nil {
		return nil, m.recentErr
	}

	var out []domain.Turn
	for i := len(m.turns) - 1; i >= 0 && len(out) < limit; i-- {
		if m.turns[i].UserID == userID {
			out = append(out, m.turns[i])
		}
	}
	return out, nil
}

func (m *mockHistoryStore) Close() error { return nil }

func (m *mockHistoryStore) counts() (appends, recents int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls, m.recentCalls
}

// mockPromptStore implements driven.PromptStore.
type mockPromptStore struct {
	persona string
	err     error
}

func (m *mockPromptStore) Load(_ string) (string, error) {
	return m.persona, m.err
}

func (m *mockPromptStore) Reload() {}

// mockRetriever implements driving.RetrieverService with a fixed result.
type mockRetriever struct {
	context string
	err     error
	topK    int
	calls   int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, topK int) (string, error) {
	m.calls++
	m.topK = topK
	return m.context, m.err
}
