// Package embedding provides text and audio embedding via ONNX and caching.
package embedding

import "context"

// Embedder maps audio clips and text into a shared vector space. Vectors may be
// returned unnormalized; the vector store normalizes at write time.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedAudio(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
	Dimensions() int
	ModelVersion() string
	Close() error
}
