package inference

import "context"

// MockEmbeddingGenerator returns deterministic low-dimensional vectors
// derived from each string's bytes (read cyclically, starting at the
// string's index in the batch), for offline development and tests.
type MockEmbeddingGenerator struct {
	dims int
}

// NewMockEmbeddingGenerator returns a MockEmbeddingGenerator of the given
// dimensionality.
func NewMockEmbeddingGenerator(dims int) *MockEmbeddingGenerator {
	if dims <= 0 {
		dims = 16
	}
	return &MockEmbeddingGenerator{dims: dims}
}

func (m *MockEmbeddingGenerator) Provider() string { return "mock" }
func (m *MockEmbeddingGenerator) Model() string    { return "mock-hash-embed" }
func (m *MockEmbeddingGenerator) Dimensions() int   { return m.dims }

func (m *MockEmbeddingGenerator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dims)
		for j := range vec {
			seed := byte(0)
			if len(text) > 0 {
				seed = text[(i+j)%len(text)]
			}
			vec[j] = float32(seed) / 255.0
		}
		out[i] = vec
	}
	return out, nil
}
