package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		assert.Equal(t, DefaultChunkSize, p.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, p.Overlap())
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(200), WithOverlap(40))
		assert.Equal(t, 200, p.ChunkSize())
		assert.Equal(t, 40, p.Overlap())
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		assert.Equal(t, 25, p.Overlap())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, p.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, p.Overlap())
	})

	assert.Equal(t, "chunker", New().Name())
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	got := New(WithChunkSize(500)).Split("The sky is blue.")

	assert.Equal(t, []string{"The sky is blue."}, got)
}

func TestSplit_ShortDocumentWithParagraphs(t *testing.T) {
	got := New(WithChunkSize(500)).Split("First paragraph.\n\nSecond paragraph.")

	assert.Equal(t, []string{"First paragraph.\n\nSecond paragraph."}, got)
}

func TestSplit_Empty(t *testing.T) {
	p := New()
	assert.Empty(t, p.Split(""))
	assert.Empty(t, p.Split(" \n\n\t "))
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	a := strings.Repeat("a", 30)
	b := strings.Repeat("b", 30)

	got := New(WithChunkSize(40), WithOverlap(10)).Split(a + "\n\n" + b)

	assert.Equal(t, []string{a, b}, got)
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "Interns start on Monday. Laptops are issued by IT. Badges come from reception."

	got := New(WithChunkSize(30), WithOverlap(0)).Split(text)

	assert.Equal(t, []string{
		"Interns start on Monday.",
		"Laptops are issued by IT.",
		"Badges come from reception.",
	}, got)
}

func TestSplit_ExactOverlapWithoutWhitespace(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50)

	got := New(WithChunkSize(100), WithOverlap(20)).Split(text)

	require.Len(t, got, 6)
	for i := 0; i+1 < len(got); i++ {
		assert.Len(t, got[i], 100)
		assert.Equal(t, got[i][len(got[i])-20:], got[i+1][:20], "chunks %d and %d", i, i+1)
	}
}

func TestSplit_WordOverlapWithinBound(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	text := strings.Join(words, " ")

	got := New(WithChunkSize(50), WithOverlap(20)).Split(text)

	require.Greater(t, len(got), 2)
	for i := 0; i+1 < len(got); i++ {
		shared := sharedEdge(got[i], got[i+1])
		assert.Greater(t, shared, 0, "chunks %d and %d share nothing", i, i+1)
		assert.LessOrEqual(t, shared, 20)
	}
	assert.True(t, strings.HasPrefix(got[0], "w000"))
	assert.True(t, strings.HasSuffix(got[len(got)-1], "w199"))
}

func TestSplit_ChunkSizeInvariant(t *testing.T) {
	inputs := map[string]string{
		"prose":       strings.Repeat("Retrieval keeps answers grounded. ", 80),
		"paragraphs":  strings.Repeat("Short line one.\nShort line two.\n\n", 60),
		"long word":   strings.Repeat("x", 1234),
		"unicode":     strings.Repeat("é日本語 ", 300),
		"mixed":       "Title\n\n" + strings.Repeat("a", 700) + "\n\nTail sentence. Another one!",
		"single rune": "z",
	}
	sizes := []struct{ size, overlap int }{{1, 0}, {10, 3}, {50, 10}, {100, 20}, {500, 100}}

	for name, text := range inputs {
		for _, sz := range sizes {
			t.Run(fmt.Sprintf("%s/%d", name, sz.size), func(t *testing.T) {
				for _, c := range New(WithChunkSize(sz.size), WithOverlap(sz.overlap)).Split(text) {
					assert.LessOrEqual(t, utf8.RuneCountInString(c), sz.size)
					assert.NotEmpty(t, strings.TrimSpace(c))
				}
			})
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Deterministic chunking matters. ", 50)
	p := New(WithChunkSize(64), WithOverlap(16))

	assert.Equal(t, p.Split(text), p.Split(text))
}

func TestProcess(t *testing.T) {
	doc := &domain.Document{
		ID:      "doc-1",
		Path:    "data/guide.txt",
		Format:  domain.FormatPlain,
		Content: strings.Repeat("abcdefghij", 30),
	}

	chunks, err := New(WithChunkSize(100), WithOverlap(10)).Process(context.Background(), doc, nil)

	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, "data/guide.txt", c.Source)
		assert.Equal(t, "plain", c.Metadata["format"])
		assert.Empty(t, c.ID)
	}
}

func TestProcess_EmptyDocument(t *testing.T) {
	chunks, err := New().Process(context.Background(), &domain.Document{ID: "d"}, nil)

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcess_NilDocument(t *testing.T) {
	_, err := New().Process(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// sharedEdge returns the length of the longest prefix of b that is also a suffix of a.
func sharedEdge(a, b string) int {
	for k := len(b); k > 0; k-- {
		if strings.HasSuffix(a, b[:k]) {
			return k
		}
	}
	return 0
}
