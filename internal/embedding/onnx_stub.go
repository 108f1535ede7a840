//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXConfig mirrors the cgo build so callers compile either way.
type ONNXConfig struct {
	TextModelPath  string
	AudioModelPath string
	ModelVersion   string
	Dimensions     int
	MaxTokens      int
	AudioSamples   int
	SampleRate     int
	CacheSize      int
}

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_ ONNXConfig) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedText(context.Context, string) ([]float32, error) { return nil, errNoCGO }

func (e *ONNXEmbedder) EmbedAudio(context.Context, []float32, int) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Dimensions() int      { return 0 }
func (e *ONNXEmbedder) ModelVersion() string { return "" }
func (e *ONNXEmbedder) Close() error         { return nil }
