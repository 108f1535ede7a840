//go:build cgo
// +build cgo

// Package embedding provides ONNX-based embedding (requires CGO and onnxruntime library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig describes the CLAP text and audio encoders. The text model takes
// input_ids and attention_mask of shape (1, MaxTokens) and produces text_embeds of shape
// (1, Dimensions). The audio model takes a mono waveform of shape (1, AudioSamples) at
// SampleRate and produces audio_embeds of shape (1, Dimensions).
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

// ONNXEmbedder uses ONNX Runtime to produce embeddings. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	cfg       ONNXConfig
	cache     *EmbeddingCache
	tokenizer Tokenizer

	textSession         *ort.AdvancedSession
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	textOutputTensor    *ort.Tensor[float32]
	textMu              sync.Mutex

	audioSession      *ort.AdvancedSession
	waveformTensor    *ort.Tensor[float32]
	audioOutputTensor *ort.Tensor[float32]
	audioMu           sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 || cfg.MaxTokens <= 0 || cfg.AudioSamples <= 0 {
		return nil, fmt.Errorf("invalid ONNX embedder config: dimensions=%d max_tokens=%d audio_samples=%d",
			cfg.Dimensions, cfg.MaxTokens, cfg.AudioSamples)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	e := &ONNXEmbedder{
		cfg:       cfg,
		cache:     NewEmbeddingCache(cfg.CacheSize),
		tokenizer: &SimpleTokenizer{},
	}
	if err := e.initText(); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.initAudio(); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *ONNXEmbedder) initText() error {
	inputIDs, attentionMask := e.tokenizer.Tokenize("", e.cfg.MaxTokens)
	var err error
	e.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.cfg.MaxTokens)), inputIDs)
	if err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	e.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.cfg.MaxTokens)), attentionMask)
	if err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	e.textOutputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.Dimensions)))
	if err != nil {
		return fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textSession, err = ort.NewAdvancedSession(
		e.cfg.TextModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor},
		[]ort.ArbitraryTensor{e.textOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create text ONNX session: %w", err)
	}
	return nil
}

func (e *ONNXEmbedder) initAudio() error {
	var err error
	e.waveformTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.AudioSamples)))
	if err != nil {
		return fmt.Errorf("failed to create waveform tensor: %w", err)
	}
	e.audioOutputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.Dimensions)))
	if err != nil {
		return fmt.Errorf("failed to create audio output tensor: %w", err)
	}
	e.audioSession, err = ort.NewAdvancedSession(
		e.cfg.AudioModelPath,
		[]string{"waveform"},
		[]string{"audio_embeds"},
		[]ort.ArbitraryTensor{e.waveformTensor},
		[]ort.ArbitraryTensor{e.audioOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create audio ONNX session: %w", err)
	}
	return nil
}

// EmbedText returns the embedding for text, using cache when available.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.textMu.Lock()
	defer e.textMu.Unlock()

	inputIDs, attentionMask := e.tokenizer.Tokenize(text, e.cfg.MaxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)

	if err := e.textSession.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}

	embedding := make([]float32, e.cfg.Dimensions)
	copy(embedding, e.textOutputTensor.GetData())
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedAudio returns the embedding of a mono clip. The clip must already be at the
// model's sample rate; it is zero-padded or truncated to the model's input length.
func (e *ONNXEmbedder) EmbedAudio(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	if sampleRate != e.cfg.SampleRate {
		return nil, fmt.Errorf("audio sample rate %d, model expects %d", sampleRate, e.cfg.SampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.audioMu.Lock()
	defer e.audioMu.Unlock()

	waveform := e.waveformTensor.GetData()
	n := copy(waveform, samples)
	clear(waveform[n:])

	if err := e.audioSession.Run(); err != nil {
		return nil, fmt.Errorf("audio inference failed: %w", err)
	}

	embedding := make([]float32, e.cfg.Dimensions)
	copy(embedding, e.audioOutputTensor.GetData())
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelVersion returns the configured model version.
func (e *ONNXEmbedder) ModelVersion() string {
	return e.cfg.ModelVersion
}

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	for _, s := range []**ort.AdvancedSession{&e.textSession, &e.audioSession} {
		if *s != nil {
			if derr := (*s).Destroy(); derr != nil && err == nil {
				err = derr
			}
			*s = nil
		}
	}
	if e.inputIDsTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		e.inputIDsTensor = nil
	}
	if e.attentionMaskTensor != nil {
		_ = e.attentionMaskTensor.Destroy()
		e.attentionMaskTensor = nil
	}
	for _, t := range []**ort.Tensor[float32]{&e.textOutputTensor, &e.waveformTensor, &e.audioOutputTensor} {
		if *t != nil {
			_ = (*t).Destroy()
			*t = nil
		}
	}
	return err
}
