package vector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Producer returns the embedding of the i-th new item.
type Producer func(ctx context.Context, i int) ([]float32, error)

// Committer records that the i-th new item now occupies slot. It runs right after the
// row is written to the temporary file.
type Committer func(ctx context.Context, i int, slot int64) error

// RowOutcome is the result of one new item in an append.
type RowOutcome struct {
	Index int
	Slot  int64
	Err   error // nil when the row was written and committed
}

// AppendResult describes a completed append.
type AppendResult struct {
	RowsBefore int
	RowsAfter  int
	Outcomes   []RowOutcome
}

// Written returns the number of rows that were written and committed.
func (r *AppendResult) Written() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// FileState is the size and modification time of the live vector file.
type FileState struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Store is the read side of the vector store used by queries.
type Store interface {
	Snapshot() (*Snapshot, error)
	State() (FileState, error)
	Dimensions() int
}

// FlatStore is a header-less file of little-endian float32 rows. Row i starts at byte
// i*dims*4. The file only grows, by rebuilding into "<path>.tmp" and renaming over the
// live file, so readers always see either the old or the new content.
type FlatStore struct {
	path       string
	dims       int
	loader     Loader
	logger     *zap.Logger
	beforeSwap func(tmpPath string) error
}

// Option configures a FlatStore.
type Option func(*FlatStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *FlatStore) { s.logger = l }
}

// WithLoader sets the snapshot loader. Defaults to ReadLoader.
func WithLoader(l Loader) Option {
	return func(s *FlatStore) { s.loader = l }
}

// WithBeforeSwap installs a hook that runs after the temporary file is synced and
// closed, right before it replaces the live file. An error aborts the append.
func WithBeforeSwap(fn func(tmpPath string) error) Option {
	return func(s *FlatStore) { s.beforeSwap = fn }
}

// NewFlatStore creates a store for the file at path. The file need not exist.
func NewFlatStore(path string, dims int, opts ...Option) (*FlatStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if path == "" {
		return nil, fmt.Errorf("vector store path is required")
	}
	s := &FlatStore{path: path, dims: dims, loader: ReadLoader{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the live file path.
func (s *FlatStore) Path() string { return s.path }

// TempPath returns the rebuild file path.
func (s *FlatStore) TempPath() string { return s.path + ".tmp" }

// donePath marks the temporary file as fully written and synced. It holds the
// temporary file size in bytes.
func (s *FlatStore) donePath() string { return s.path + ".tmp.done" }

// Dimensions returns the row dimension.
func (s *FlatStore) Dimensions() int { return s.dims }

// LoaderType returns the configured snapshot loader type.
func (s *FlatStore) LoaderType() LoaderType { return s.loader.Type() }

// State returns the live file's size and modification time.
func (s *FlatStore) State() (FileState, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{}, nil
		}
		return FileState{}, err
	}
	return FileState{Exists: true, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Rows returns the number of rows in the live file; 0 when it does not exist.
func (s *FlatStore) Rows() (int, error) {
	st, err := s.State()
	if err != nil {
		return 0, err
	}
	return s.rowsFor(st.Size)
}

func (s *FlatStore) rowsFor(size int64) (int, error) {
	rs := RowSize(s.dims)
	if size%rs != 0 {
		return 0, fmt.Errorf("%w: %s is %d bytes, row size %d", ErrCorruptStore, s.path, size, rs)
	}
	return int(size / rs), nil
}

// Snapshot loads the live file with the configured loader.
func (s *FlatStore) Snapshot() (*Snapshot, error) {
	return s.loader.Load(s.path, s.dims)
}

// Append adds n rows after the existing ones. For each i in [0, n) it calls produce,
// normalizes the vector, writes it at row rowsBefore+i of the temporary file and then
// calls commit with that slot. A failed produce or commit leaves the row zeroed and is
// reported in the outcome; the batch continues. The temporary file then atomically
// replaces the live file. Any error returned means the live file is unchanged.
func (s *FlatStore) Append(ctx context.Context, n int, produce Producer, commit Committer) (*AppendResult, error) {
	before, err := s.Rows()
	if err != nil {
		return nil, err
	}
	result := &AppendResult{RowsBefore: before, RowsAfter: before}
	if n <= 0 {
		return result, nil
	}

	rs := RowSize(s.dims)
	tmpPath := s.TempPath()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create vector store directory: %w", err)
		}
	}
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create temporary store: %w", err)
	}
	swapped := false
	defer func() {
		if !swapped {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			_ = os.Remove(s.donePath())
		}
	}()

	if err := tmp.Truncate(int64(before+n) * rs); err != nil {
		return nil, fmt.Errorf("size temporary store: %w", err)
	}
	if before > 0 {
		if err := s.copyLive(tmp, int64(before)*rs); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, rs)
	zero := make([]byte, rs)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slot := int64(before + i)
		off := slot * rs
		outcome := RowOutcome{Index: i, Slot: slot}

		vec, err := produce(ctx, i)
		if err == nil && len(vec) != s.dims {
			err = fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), s.dims)
		}
		if err == nil && L2Norm(vec) == 0 {
			err = errors.New("embedding has zero norm")
		}
		if err != nil {
			outcome.Err = err
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		EncodeRow(buf, Normalized(vec))
		if _, err := tmp.WriteAt(buf, off); err != nil {
			return nil, fmt.Errorf("write row %d: %w", slot, err)
		}
		if err := commit(ctx, i, slot); err != nil {
			if _, werr := tmp.WriteAt(zero, off); werr != nil {
				return nil, fmt.Errorf("clear row %d: %w", slot, werr)
			}
			outcome.Err = err
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync temporary store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temporary store: %w", err)
	}
	if err := s.markTempComplete(int64(before+n) * rs); err != nil {
		return nil, err
	}
	if s.beforeSwap != nil {
		if err := s.beforeSwap(tmpPath); err != nil {
			return nil, fmt.Errorf("before swap: %w", err)
		}
	}
	// os.Rename replaces the destination atomically (MoveFileEx with
	// MOVEFILE_REPLACE_EXISTING on Windows).
	if err := os.Rename(tmpPath, s.path); err != nil {
		return nil, fmt.Errorf("swap vector store: %w", err)
	}
	swapped = true
	if err := syncDir(filepath.Dir(s.path)); err != nil && s.logger != nil {
		s.logger.Warn("failed to sync store directory", zap.String("path", s.path), zap.Error(err))
	}
	_ = os.Remove(s.donePath())

	result.RowsAfter = before + n
	if s.logger != nil {
		s.logger.Info("vector store swapped",
			zap.String("path", s.path),
			zap.Int("rows_before", before),
			zap.Int("rows_after", result.RowsAfter),
			zap.Int("written", result.Written()),
		)
	}
	return result, nil
}

// markTempComplete records, after the temporary file has been synced, that it holds
// size bytes. Recovery only promotes a temporary file carrying a matching marker.
func (s *FlatStore) markTempComplete(size int64) error {
	f, err := os.OpenFile(s.donePath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("mark temporary store: %w", err)
	}
	if _, err := f.WriteString(strconv.FormatInt(size, 10)); err != nil {
		_ = f.Close()
		return fmt.Errorf("mark temporary store: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temporary store marker: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return syncDir(filepath.Dir(s.path))
}

// tempComplete reports whether the temporary file carries a marker matching its size.
func (s *FlatStore) tempComplete(size int64) bool {
	data, err := os.ReadFile(s.donePath())
	if err != nil {
		return false
	}
	marked, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	return err == nil && marked == size
}

func (s *FlatStore) copyLive(dst *os.File, size int64) error {
	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open live store: %w", err)
	}
	defer src.Close()
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.CopyN(dst, src, size); err != nil {
		return fmt.Errorf("copy live rows: %w", err)
	}
	return nil
}

// Temp recovery actions.
const (
	TempNone      = "none"
	TempDiscarded = "discarded"
	TempPromoted  = "promoted"
)

// Recover resolves a leftover temporary file from an interrupted append. When the live
// file exists the swap never happened and the temporary file is removed. When it does
// not, the temporary file is promoted only if it was synced completely (its marker
// matches its size), holds whole rows and at least requiredRows of them. Anything else
// is removed. It returns the action taken and the live row count.
func (s *FlatStore) Recover(requiredRows int) (string, int, error) {
	action := TempNone
	tmpInfo, err := os.Stat(s.TempPath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return "", 0, err
	default:
		live, err := s.State()
		if err != nil {
			return "", 0, err
		}
		promote := false
		if !live.Exists && s.tempComplete(tmpInfo.Size()) {
			rows, rerr := s.rowsFor(tmpInfo.Size())
			promote = rerr == nil && rows >= requiredRows
		}
		if promote {
			if err := os.Rename(s.TempPath(), s.path); err != nil {
				return "", 0, fmt.Errorf("promote temporary store: %w", err)
			}
			_ = syncDir(filepath.Dir(s.path))
			action = TempPromoted
		} else {
			if err := os.Remove(s.TempPath()); err != nil {
				return "", 0, fmt.Errorf("remove temporary store: %w", err)
			}
			action = TempDiscarded
		}
		_ = os.Remove(s.donePath())
		if s.logger != nil {
			s.logger.Warn("recovered interrupted append",
				zap.String("path", s.path),
				zap.String("action", action),
				zap.Int64("temp_size", tmpInfo.Size()),
			)
		}
	}
	if action == TempNone {
		// A marker without its temporary file is stale.
		_ = os.Remove(s.donePath())
	}
	rows, err := s.Rows()
	if err != nil {
		return action, 0, err
	}
	return action, rows, nil
}

// HasPendingTemp reports whether a temporary file is present.
func (s *FlatStore) HasPendingTemp() bool {
	_, err := os.Stat(s.TempPath())
	return err == nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
