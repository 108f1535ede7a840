package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const testDebounce = 100 * time.Millisecond

type rootRecorder struct {
	mu    sync.Mutex
	roots []string
}

func (r *rootRecorder) onChange(root string) {
	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()
}

func (r *rootRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, roots []string, rec *rootRecorder) *Watcher {
	t.Helper()
	w := NewWatcher(roots, []string{".wav", ".flac"}, true, rec.onChange, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &rootRecorder{}
	w := startWatcher(t, nil, rec)

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
	if err := w.AddDirectory(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("adding a missing directory should fail")
	}
}

func TestWatcher_DebouncesPerRoot(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &rootRecorder{}
	startWatcher(t, []string{dir}, rec)

	for _, name := range []string{"a.wav", "b.wav", "c.flac"} {
		if err := writeFile(filepath.Join(sub, name), "pcm"); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, func() bool { return len(rec.get()) >= 1 }) {
		t.Fatal("expected a run for the root")
	}
	time.Sleep(3 * testDebounce)
	roots := rec.get()
	if len(roots) != 1 || roots[0] != filepath.Clean(dir) {
		t.Errorf("expected exactly one run for %s, got %v", dir, roots)
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &rootRecorder{}
	startWatcher(t, []string{dir}, rec)

	if err := writeFile(filepath.Join(dir, "notes.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * testDebounce)
	if got := rec.get(); len(got) != 0 {
		t.Errorf("non-audio file should not trigger a run, got %v", got)
	}
}

func TestWatcher_NewNestedDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &rootRecorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.wav"), "pcm"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.get()) >= 1 }) {
		t.Fatal("expected a run after creating a nested folder")
	}
	if rec.get()[0] != filepath.Clean(dir) {
		t.Errorf("run for %v, want %s", rec.get(), dir)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	rec := &rootRecorder{}
	w := startWatcher(t, []string{a, b}, rec)
	w.SyncExistingFiles()

	if !waitFor(t, func() bool { return len(rec.get()) == 2 }) {
		t.Fatalf("expected one run per root, got %v", rec.get())
	}
}

func TestWatcher_RootFor(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "inner")
	w := NewWatcher([]string{outer, inner}, nil, true, nil)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(outer, "a.wav"), outer, true},
		{filepath.Join(inner, "x", "b.wav"), inner, true},
		{inner, inner, true},
		{filepath.Join(filepath.Dir(outer), "elsewhere.wav"), "", false},
	}
	for _, tt := range tests {
		got, ok := w.rootFor(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("rootFor(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.wav", []string{".wav"}, true},
		{"/a/b.WAV", []string{".wav"}, true},
		{"/a/b.flac", []string{"flac"}, true},
		{"/a/b.mp3", []string{".wav"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.wav", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
