package search

import (
	"testing"

	"github.com/hyperjump/soundsift/internal/vector"
)

func TestFuse(t *testing.T) {
	hits := []vector.Hit{
		{Slot: 3, Score: 0.9},
		{Slot: 1, Score: 0.8},
		{Slot: 0, Score: 0.8},
	}

	t.Run("zero weight keeps audio order", func(t *testing.T) {
		fused := Fuse(hits, map[int]float32{0: 1}, 0)
		want := []int{3, 1, 0}
		for i, f := range fused {
			if f.Slot != want[i] {
				t.Fatalf("order = %+v, want slots %v", fused, want)
			}
			if f.Score != f.AudioScore {
				t.Errorf("slot %d: score %v != audio %v", f.Slot, f.Score, f.AudioScore)
			}
		}
	})

	t.Run("text score reorders", func(t *testing.T) {
		fused := Fuse(hits, map[int]float32{0: 1, 3: -0.5}, 0.5)
		want := []int{0, 1, 3}
		for i, f := range fused {
			if f.Slot != want[i] {
				t.Fatalf("order = %+v, want slots %v", fused, want)
			}
		}
		if fused[0].TextScore != 1 || fused[0].AudioScore != 0.8 {
			t.Errorf("unexpected components %+v", fused[0])
		}
		if fused[1].TextScore != 0 {
			t.Errorf("slot without text vector should have text score 0, got %v", fused[1].TextScore)
		}
	})

	if got := Fuse(nil, nil, 1); len(got) != 0 {
		t.Errorf("Fuse(nil) = %v", got)
	}
}
