package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// DiscoveredFile is an audio file found under an indexed folder.
type DiscoveredFile struct {
	Path    string
	ModTime float64
	Size    int64
}

// Walker finds audio files under a folder. Patterns are doublestar globs matched
// against the slash-separated path relative to the folder.
type Walker struct {
	includes   []string
	excludes   []string
	extensions map[string]bool
	logger     *zap.Logger // optional
}

// NewWalker creates a walker. Empty includes match everything; empty extensions
// accept any file.
func NewWalker(includes, excludes, extensions []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Walker{includes: includes, excludes: excludes, extensions: exts}
}

// WithLogger sets the logger used for entries the walk has to skip.
func (w *Walker) WithLogger(l *zap.Logger) *Walker {
	w.logger = l
	return w
}

// Walk returns the matching regular files under root in lexical order. Only an
// unreadable root fails the walk; unreadable entries below it are logged and skipped.
func (w *Walker) Walk(ctx context.Context, root string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if w.logger != nil {
				w.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.shouldExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.Accepts(path) || !w.shouldInclude(rel) || w.shouldExclude(rel) {
			return nil
		}
		// Follow symlinks to regular files only.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, DiscoveredFile{
			Path:    path,
			ModTime: ModTime(info),
			Size:    info.Size(),
		})
		return nil
	})
	return files, err
}

// Accepts reports whether the file extension is one the walker indexes.
func (w *Walker) Accepts(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// ModTime returns the modification time in fractional seconds since the epoch.
func ModTime(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
