package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

// Mock is a deterministic encoder for tests and environments without a
// model file. It hashes each word into a dimension bucket, so equal
// texts embed identically and texts sharing words land close together
// under cosine similarity. It is a stand-in, not a semantic model.
type Mock struct {
	dimensions int
}

// NewMock returns a mock encoder producing vectors of the given
// dimensionality (default 384).
func NewMock(dimensions int) *Mock {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Mock{dimensions: dimensions}
}

// Embed returns a hashed bag-of-words vector for the text.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%m.dimensions]++
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the configured dimensionality.
func (m *Mock) Dimensions() int { return m.dimensions }

// Close is a no-op.
func (m *Mock) Close() error { return nil }
