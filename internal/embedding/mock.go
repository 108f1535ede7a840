package embedding

import (
	"context"
	"errors"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. Text embeddings are derived from
// the text hash so that the same text always gets the same embedding. Audio embeddings
// are derived from the samples, so identical clips embed identically. Vectors are
// returned unnormalized.
type MockEmbedder struct {
	dimensions   int
	modelVersion string
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int, modelVersion string) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	if modelVersion == "" {
		modelVersion = "mock"
	}
	return &MockEmbedder{dimensions: dimensions, modelVersion: modelVersion}
}

// EmbedText returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.5 + 0.01)
	}
	return emb, nil
}

// EmbedAudio folds the samples into the embedding dimension: component i is the mean
// absolute amplitude of samples j with j%dims == i, plus a small offset so that silence
// still yields a non-zero vector.
func (e *MockEmbedder) EmbedAudio(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples")
	}
	emb := make([]float32, e.dimensions)
	counts := make([]int, e.dimensions)
	for j, s := range samples {
		i := j % e.dimensions
		emb[i] += float32(math.Abs(float64(s)))
		counts[i]++
	}
	for i := range emb {
		if counts[i] > 0 {
			emb[i] /= float32(counts[i])
		}
		emb[i] += 0.001
	}
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelVersion returns the configured model version.
func (e *MockEmbedder) ModelVersion() string {
	return e.modelVersion
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
