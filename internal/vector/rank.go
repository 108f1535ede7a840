package vector

import (
	"fmt"
	"sort"
)

// Hit is a scored row.
type Hit struct {
	Slot  int
	Score float32
}

// ScoreAll returns the similarity of the normalized query with every row, in slot order.
func ScoreAll(snap *Snapshot, query []float32) ([]Hit, error) {
	if len(query) != snap.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(query), snap.Dimensions())
	}
	q := Normalized(query)
	hits := make([]Hit, snap.Rows())
	for i := range hits {
		hits[i] = Hit{Slot: i, Score: snap.Score(q, i)}
	}
	return hits, nil
}

// SortHits orders hits by descending score. Equal scores keep their relative order.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// Rank scores every row against query and returns the top k by descending score, ties
// broken by ascending slot. k larger than the row count returns every row.
func Rank(snap *Snapshot, query []float32, k int) ([]Hit, error) {
	hits, err := ScoreAll(snap, query)
	if err != nil {
		return nil, err
	}
	if k <= 0 || len(hits) == 0 {
		return nil, nil
	}
	SortHits(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}
