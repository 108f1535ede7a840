package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

const benchDims = 512

func benchStore(b *testing.B, loader string, rows int) *FlatStore {
	b.Helper()
	l, err := NewLoader(loader)
	if err != nil {
		b.Fatal(err)
	}
	s, err := NewFlatStore(filepath.Join(b.TempDir(), "embeddings.bin"), benchDims, WithLoader(l))
	if err != nil {
		b.Fatal(err)
	}
	produce := func(_ context.Context, i int) ([]float32, error) {
		v := make([]float32, benchDims)
		for j := range v {
			v[j] = float32(math.Sin(float64(i*benchDims + j)))
		}
		return v, nil
	}
	noop := func(context.Context, int, int64) error { return nil }
	if _, err := s.Append(context.Background(), rows, produce, noop); err != nil {
		b.Fatal(err)
	}
	return s
}

func benchmarkQuery(b *testing.B, loader string) {
	s := benchStore(b, loader, 10000)
	query := make([]float32, benchDims)
	query[0] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap, err := s.Snapshot()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Rank(snap, query, 10); err != nil {
			b.Fatal(err)
		}
		_ = snap.Release()
	}
}

func BenchmarkQuery_Read(b *testing.B) { benchmarkQuery(b, "read") }

func BenchmarkQuery_Mmap(b *testing.B) { benchmarkQuery(b, "mmap") }

func BenchmarkAppend(b *testing.B) {
	s := benchStore(b, "read", 1000)
	v := make([]float32, benchDims)
	v[0] = 1
	produce := func(context.Context, int) ([]float32, error) { return v, nil }
	noop := func(context.Context, int, int64) error { return nil }
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Append(context.Background(), 10, produce, noop); err != nil {
			b.Fatal(err)
		}
	}
}
