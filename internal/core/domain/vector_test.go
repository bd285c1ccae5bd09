package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"axis", []float32{3, 0, 0}},
		{"pythagorean", []float32{3, 4}},
		{"mixed signs", []float32{-1, 2, -3, 4}},
		{"already unit", []float32{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.in)
			assert.InDelta(t, 1.0, Norm(out), 1e-6)
			assert.Len(t, out, len(tt.in))
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = Normalize(in)
	assert.Equal(t, []float32{3, 4}, in)
}

func TestNormalize_ZeroVector(t *testing.T) {
	out := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestMatchText(t *testing.T) {
	m := Match{ID: "1", Metadata: map[string]string{MetadataText: "The sky is blue."}}
	assert.Equal(t, "The sky is blue.", m.Text())
	assert.Empty(t, Match{}.Text())
}
