package embeddings

import (
	"context"
	"hash/fnv"
)

// MockEncoder is a deterministic, dependency-free Encoder used by tests
// across packages that need an embedding without loading the real ONNX
// model. Vectors are derived from a hash of the text so that identical
// inputs always produce identical (and distinguishable) vectors.
type MockEncoder struct {
	Dim int
}

func NewMockEncoder() *MockEncoder { return &MockEncoder{Dim: 384} }

func (m *MockEncoder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t, m.Dim)
	}
	return out, nil
}

func (m *MockEncoder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return vectorFor(text, m.Dim), nil
}

func (m *MockEncoder) Dimension() int { return m.Dim }

func (m *MockEncoder) Close() error { return nil }

func vectorFor(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	state := seed
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(state>>40)%1000) / 1000.0
	}
	return vec
}
