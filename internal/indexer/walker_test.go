package indexer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWalker_Walk(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"b.wav",
		"a.MP3",
		"notes.txt",
		"drums/kick.flac",
		"drums/.cache/kick.wav",
		"stems/vocals.aiff",
	} {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		includes []string
		excludes []string
		exts     []string
		want     []string
	}{
		{
			name: "all audio in lexical order",
			exts: []string{".wav", ".mp3", ".flac", ".aiff"},
			want: []string{"a.MP3", "b.wav", "drums/.cache/kick.wav", "drums/kick.flac", "stems/vocals.aiff"},
		},
		{
			name:     "excluded directory is skipped",
			excludes: []string{"**/.cache/"},
			exts:     []string{".wav", ".mp3", ".flac", ".aiff"},
			want:     []string{"a.MP3", "b.wav", "drums/kick.flac", "stems/vocals.aiff"},
		},
		{
			name:     "includes narrow the set",
			includes: []string{"drums/**"},
			exts:     []string{"wav", "flac"},
			want:     []string{"drums/.cache/kick.wav", "drums/kick.flac"},
		},
		{
			name:     "excluded file pattern",
			excludes: []string{"**/*.wav"},
			exts:     []string{".wav", ".flac"},
			want:     []string{"drums/kick.flac"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWalker(tt.includes, tt.excludes, tt.exts)
			files, err := w.Walk(context.Background(), root)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, f := range files {
				rel, _ := filepath.Rel(root, f.Path)
				got = append(got, filepath.ToSlash(rel))
				if f.ModTime <= 0 || f.Size != 1 {
					t.Errorf("%s: ModTime=%v Size=%d", rel, f.ModTime, f.Size)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestWalker_SkipsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	if err := os.MkdirAll(locked, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{filepath.Join(root, "a.wav"), filepath.Join(locked, "b.wav")} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	files, err := NewWalker(nil, nil, []string{".wav"}).Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("unreadable subdirectory should not fail the walk: %v", err)
	}
	if len(files) != 1 || files[0].Path != filepath.Join(root, "a.wav") {
		t.Errorf("got %v, want only a.wav", files)
	}

	if _, err := NewWalker(nil, nil, nil).Walk(context.Background(), filepath.Join(root, "missing")); err == nil {
		t.Error("a missing root should fail the walk")
	}
}

func TestWalker_Accepts(t *testing.T) {
	w := NewWalker(nil, nil, []string{".wav", "FLAC"})
	tests := []struct {
		path string
		want bool
	}{
		{"/x/a.wav", true},
		{"/x/a.WAV", true},
		{"/x/a.flac", true},
		{"/x/a.mp3", false},
		{"/x/README", false},
	}
	for _, tt := range tests {
		if got := w.Accepts(tt.path); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if !NewWalker(nil, nil, nil).Accepts("/x/anything.bin") {
		t.Error("walker without extensions should accept every file")
	}
}
