package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestEmbeddingCache_DefaultCapacity(t *testing.T) {
	c := NewEmbeddingCache(0)
	c.Set("x", []float32{1})
	if _, ok := c.Get("x"); !ok {
		t.Error("expected hit")
	}
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewMockEmbedder(8, "default")}
	e := NewCachedEmbedder(inner, 4)
	ctx := t.Context()
	a, err := e.EmbedText(ctx, "kick drum")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedText(ctx, "kick drum")
	if inner.texts != 1 {
		t.Errorf("inner called %d times, want 1", inner.texts)
	}
	if len(a) != 8 || a[0] != b[0] {
		t.Errorf("cached vector differs: %v %v", a, b)
	}
	if e.ModelVersion() != "default" || e.Dimensions() != 8 {
		t.Errorf("wrapper should forward model info")
	}
}

func BenchmarkCachedEmbedder_EmbedText(b *testing.B) {
	e := NewCachedEmbedder(NewMockEmbedder(512, ""), 64)
	ctx := b.Context()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedText(ctx, "dusty vinyl snare")
	}
}
