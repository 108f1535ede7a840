package search

import (
	"sort"

	"github.com/hyperjump/soundsift/internal/vector"
)

// FusedHit is a ranked row with its audio and path-text scores.
type FusedHit struct {
	Slot       int
	Score      float32
	AudioScore float32
	TextScore  float32
}

// Fuse combines audio hits with path-text scores (keyed by slot) as
// audio + textWeight*text and returns them sorted by descending score. Equal scores
// keep the order of hits. Hits without a text score use the audio score alone.
func Fuse(hits []vector.Hit, textScores map[int]float32, textWeight float32) []FusedHit {
	fused := make([]FusedHit, len(hits))
	for i, h := range hits {
		text := textScores[h.Slot]
		fused[i] = FusedHit{
			Slot:       h.Slot,
			Score:      h.Score + textWeight*text,
			AudioScore: h.Score,
			TextScore:  text,
		}
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}
