package search

import (
	"testing"

	"github.com/hyperjump/soundsift/internal/vector"
)

func BenchmarkFuse(b *testing.B) {
	hits := make([]vector.Hit, 500)
	text := make(map[int]float32, len(hits))
	for i := range hits {
		hits[i] = vector.Hit{Slot: i, Score: float32(len(hits)-i) / float32(len(hits))}
		text[i] = float32(i%7) / 7
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fuse(hits, text, 0.5)
	}
}
