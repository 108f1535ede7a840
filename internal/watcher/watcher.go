// Package watcher watches library folders with fsnotify and schedules a debounced
// re-index of a folder when audio files appear or change in it.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches root directories and calls onChange with the root once changes
// under it have settled.
type Watcher struct {
	roots       []string
	extensions  []string
	recursive   bool
	onChange    func(root string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer // root -> pending run
	rootPaths   map[string][]string    // root -> watched directories
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a root must be quiet before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. extensions filter which files trigger a run
// (empty = all). onChange runs on its own goroutine, at most once per quiet period per root.
func NewWatcher(roots []string, extensions []string, recursive bool, onChange func(root string), opts ...WatcherOption) *Watcher {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			clean = append(clean, filepath.Clean(abs))
		}
	}
	w := &Watcher{
		roots:       clean,
		extensions:  extensions,
		recursive:   recursive,
		onChange:    onChange,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	}
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	root, ok := w.rootFor(path)
	if !ok {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(root, path)
			return
		}
		if w.matchExtension(path) {
			w.schedule(root)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// Indexed items are never deleted; the row stays and queries resolve it by path.
		if w.matchExtension(path) && w.logger != nil {
			w.logger.Info("indexed file removed or renamed", zap.String("path", path))
		}
	}
}

// handleNewDirectory watches a directory that was created or moved in and schedules
// its root, since the directory may already contain audio files.
func (w *Watcher) handleNewDirectory(root, dirPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil || !w.recursive {
		return
	}
	added, err := w.addTreeLocked(dirPath, false)
	if err != nil && w.logger != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
	}
	w.rootPaths[root] = append(w.rootPaths[root], added...)
	w.scheduleLocked(root)
}

// addTreeLocked adds dir and, when recursive, every directory below it. With strict
// unset a directory that cannot be added is skipped instead of failing the walk.
func (w *Watcher) addTreeLocked(dir string, strict bool) ([]string, error) {
	if !w.recursive {
		if err := w.watcher.Add(dir); err != nil {
			return nil, err
		}
		return []string{dir}, nil
	}
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if strict {
				return err
			}
			return nil
		}
		added = append(added, path)
		return nil
	})
	return added, err
}

// rootFor returns the innermost watched root containing path.
func (w *Watcher) rootFor(path string) (string, bool) {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	best := ""
	for _, root := range roots {
		if (root == clean || inDir(root, clean)) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return slices.ContainsFunc(extensions, func(e string) bool {
		return strings.ToLower(strings.TrimPrefix(e, ".")) == ext
	})
}

// schedule (re)starts the quiet-period timer of root.
func (w *Watcher) schedule(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(root)
}

func (w *Watcher) scheduleLocked(root string) {
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[root]; ok {
		t.Stop()
	}
	w.debounceMap[root] = time.AfterFunc(w.debounce, func() { w.fire(root) })
}

func (w *Watcher) fire(root string) {
	w.mu.Lock()
	delete(w.debounceMap, root)
	w.mu.Unlock()
	if w.logger != nil {
		w.logger.Debug("quiet period over, indexing root", zap.String("root", root))
	}
	if w.onChange != nil {
		w.onChange(root)
	}
}

// AddDirectory adds a root directory to watch and optionally schedules an index of it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return nil
	}
	if slices.Contains(w.roots, abs) {
		w.mu.Unlock()
		return nil
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	}
	w.mu.Unlock()
	if syncExisting {
		w.schedule(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: root, Err: fs.ErrInvalid}
	}
	paths, err := w.addTreeLocked(root, true)
	if err != nil {
		for _, p := range paths {
			_ = w.watcher.Remove(p)
		}
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// RemoveDirectory stops watching the given root. Indexed items are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := slices.Index(w.roots, abs)
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	if t, ok := w.debounceMap[abs]; ok {
		t.Stop()
		delete(w.debounceMap, abs)
	}
	w.roots = slices.Delete(w.roots, idx, idx+1)
	if w.logger != nil {
		w.logger.Debug("watcher directory removed", zap.String("path", abs))
	}
	return nil
}

// Directories returns a copy of the current watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles schedules an index of every watched root, to pick up files that
// were added while the watcher was not running. Call it after Start.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.schedule(root)
	}
}

// Stop stops the watcher and cancels pending runs.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for root, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, root)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
