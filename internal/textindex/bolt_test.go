package textindex

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/soundsift/internal/vector"
)

func TestBoltIndex_PutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "text.bolt")
	idx, err := NewBoltIndex(path, "default", 3, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := idx.Put("/a.wav", []float32{3, 0, 4}); err != nil {
		t.Fatal(err)
	}
	vec, ok, err := idx.Get("/a.wav")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[2])-0.8) > 1e-6 {
		t.Errorf("stored vector should be normalized, got %v", vec)
	}
	if _, ok, _ := idx.Get("/missing.wav"); ok {
		t.Error("expected miss")
	}

	if err := idx.Put("/b.wav", []float32{1, 2}); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}

	_ = idx.Put("/b.wav", []float32{0, 1, 0})
	many, err := idx.GetMany([]string{"/a.wav", "/b.wav", "/c.wav"})
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 2 {
		t.Errorf("GetMany returned %d vectors, want 2", len(many))
	}
	if n, _ := idx.Count(); n != 2 {
		t.Errorf("Count=%d, want 2", n)
	}

	if err := idx.Delete("/a.wav", "/nope.wav"); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(); n != 1 {
		t.Errorf("Count after delete=%d, want 1", n)
	}
}

func TestBoltIndex_ModelVersionsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.bolt")
	idx, err := NewBoltIndex(path, "v1", 2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Put("/a.wav", []float32{1, 0})
	idx.Close()

	idx, err = NewBoltIndex(path, "v2", 2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if _, ok, _ := idx.Get("/a.wav"); ok {
		t.Error("vectors of another model version must not be visible")
	}
}

func TestBoltIndex_Locked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.bolt")
	idx, err := NewBoltIndex(path, "default", 2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	_, err = NewBoltIndex(path, "default", 2, Options{Timeout: 50 * time.Millisecond})
	if !IsLocked(err) {
		t.Errorf("expected lock timeout, got %v", err)
	}
}
