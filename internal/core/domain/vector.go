package domain

import "math"

// Metadata keys stored alongside chunk text and vectors.
const (
	// MetadataText holds the chunk text in a vector record.
	MetadataText = "text"

	// MetadataSource holds the corpus path of the originating document.
	MetadataSource = "source"

	// MetadataHash holds the chunk content hash.
	MetadataHash = "hash"
)

// VectorRecord is the persisted unit in the vector index.
// ID is the text-store id of the chunk the vector was computed from.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Text returns the chunk text carried in the record's metadata.
func (r VectorRecord) Text() string {
	return r.Metadata[MetadataText]
}

// Match is one ranked result of a vector index query.
type Match struct {
	// ID is the vector record id.
	ID string

	// Score is the similarity to the query vector (higher is closer).
	Score float64

	// Metadata is the record metadata, including the chunk text.
	Metadata map[string]string
}

// Text returns the chunk text carried in the match metadata.
func (m Match) Text() string {
	return m.Metadata[MetadataText]
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Returns 0 when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
