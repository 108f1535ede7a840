package embedding

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	Embedder
	texts int
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.texts++
	return c.Embedder.EmbedText(ctx, text)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16, "")
	ctx := context.Background()

	a, _ := e.EmbedText(ctx, "dusty vinyl kick")
	b, _ := e.EmbedText(ctx, "dusty vinyl kick")
	c, _ := e.EmbedText(ctx, "bright hi hat")
	if len(a) != 16 {
		t.Fatalf("len=%d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must embed identically")
		}
	}
	if equal(a, c) {
		t.Error("different texts should differ")
	}
	if e.ModelVersion() != "mock" {
		t.Errorf("ModelVersion=%q", e.ModelVersion())
	}
}

func TestMockEmbedder_Audio(t *testing.T) {
	e := NewMockEmbedder(4, "default")
	ctx := context.Background()

	silent, err := e.EmbedAudio(ctx, make([]float32, 16), 48000)
	if err != nil {
		t.Fatal(err)
	}
	var sum float32
	for _, v := range silent {
		sum += v
	}
	if sum == 0 {
		t.Error("silence should still embed to a non-zero vector")
	}
	loud, _ := e.EmbedAudio(ctx, []float32{1, -1, 0.5, 0, 1, -1, 0.5, 0}, 48000)
	if loud[0] <= loud[3] {
		t.Errorf("expected louder bucket to score higher: %v", loud)
	}
	if _, err := e.EmbedAudio(ctx, nil, 48000); err == nil {
		t.Error("expected error for empty clip")
	}
}

func TestPathToText(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/Samples/Drums/Kick_01-hard.wav", "samples drums kick 01 hard"},
		{"loops/Am_Pad.aiff", "loops am pad"},
		{"/a//b/./c.tar.flac", "a b c.tar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PathToText(tt.path); got != tt.want {
			t.Errorf("PathToText(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func equal(a, b []float32) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
