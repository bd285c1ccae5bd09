package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func seededRetriever(t *testing.T, texts ...string) (*Retriever, *mockVectorIndex) {
	t.Helper()

	embed := &mockEmbeddingService{}
	index := &mockVectorIndex{}
	records := make([]domain.VectorRecord, 0, len(texts))
	for i, text := range texts {
		vec, err := embed.Embed(context.Background(), text)
		require.NoError(t, err)
		records = append(records, domain.VectorRecord{
			ID:       string(rune('a' + i)),
			Vector:   vec,
			Metadata: map[string]string{domain.MetadataText: text, domain.MetadataSource: "kb.txt"},
		})
	}
	require.NoError(t, index.Upsert(context.Background(), records))

	return NewRetriever(&Dependencies{Embedder: embed, VectorIndex: index}), index
}

func TestRetrieve_TopMatch(t *testing.T) {
	r, _ := seededRetriever(t,
		"Interns get a laptop on day one.",
		"The sky is blue.",
		"Stand-up is at ten every morning.",
	)

	got, err := r.Retrieve(context.Background(), "What color is the sky?", 1)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got)
}

func TestRetrieve_JoinsInRankOrder(t *testing.T) {
	r, _ := seededRetriever(t,
		"The sky is blue.",
		"Lunch is provided on Fridays.",
		"The sky turns orange at sunset.",
	)

	got, err := r.Retrieve(context.Background(), "sky", 2)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.\n\nThe sky turns orange at sunset.", got)
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	r, _ := seededRetriever(t)

	got, err := r.Retrieve(context.Background(), "anything", 8)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_FewerThanTopK(t *testing.T) {
	r, _ := seededRetriever(t, "The sky is blue.")

	got, err := r.Retrieve(context.Background(), "sky", 8)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got)
}

func TestRetrieve_SkipsMatchesWithoutText(t *testing.T) {
	embed := &mockEmbeddingService{}
	index := &mockVectorIndex{}
	vec, _ := embed.Embed(context.Background(), "sky")
	require.NoError(t, index.Upsert(context.Background(), []domain.VectorRecord{
		{ID: "x", Vector: vec, Metadata: map[string]string{}},
		{ID: "y", Vector: vec, Metadata: map[string]string{domain.MetadataText: "sky"}},
	}))
	r := NewRetriever(&Dependencies{Embedder: embed, VectorIndex: index})

	got, err := r.Retrieve(context.Background(), "sky", 2)
	require.NoError(t, err)
	assert.Equal(t, "sky", got)
}

func TestRetrieve_Deterministic(t *testing.T) {
	r, _ := seededRetriever(t,
		"The sky is blue.",
		"The sea is blue too.",
		"Grass is green.",
		"Blue badges open the lab door.",
	)

	first, err := r.Retrieve(context.Background(), "what is blue", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "what is blue", 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieve_InvalidTopK(t *testing.T) {
	r, _ := seededRetriever(t, "The sky is blue.")

	_, err := r.Retrieve(context.Background(), "sky", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieve_Errors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		r := NewRetriever(&Dependencies{
			Embedder:    &mockEmbeddingService{embedErr: domain.ErrEmbeddingUnavailable},
			VectorIndex: &mockVectorIndex{},
		})
		_, err := r.Retrieve(context.Background(), "sky", 1)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("index failure", func(t *testing.T) {
		queryErr := errors.New("index offline")
		r := NewRetriever(&Dependencies{
			Embedder:    &mockEmbeddingService{},
			VectorIndex: &mockVectorIndex{queryErr: queryErr},
		})
		_, err := r.Retrieve(context.Background(), "sky", 1)
		assert.ErrorIs(t, err, queryErr)
	})

	t.Run("no embedder", func(t *testing.T) {
		r := NewRetriever(&Dependencies{VectorIndex: &mockVectorIndex{}})
		_, err := r.Retrieve(context.Background(), "sky", 1)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("no index", func(t *testing.T) {
		r := NewRetriever(&Dependencies{Embedder: &mockEmbeddingService{}})
		_, err := r.Retrieve(context.Background(), "sky", 1)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})
}
