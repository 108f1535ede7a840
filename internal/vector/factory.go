// Package vector provides the flat float32 vector store, snapshot loaders and full-scan ranking.
package vector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blevesearch/mmap-go"
)

// ErrCorruptStore is returned when the vector file is not a whole number of rows.
var ErrCorruptStore = errors.New("vector store size is not a multiple of the row size")

// ErrDimensionMismatch is returned when a vector does not have the store's dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// LoaderType names a snapshot loader.
type LoaderType string

const (
	// LoaderRead copies the whole file into memory.
	LoaderRead LoaderType = "read"
	// LoaderMmap maps the file read-only. Rows are paged in on demand.
	LoaderMmap LoaderType = "mmap"
)

// Loader reads the vector file at path into a Snapshot. An absent or empty file
// yields an empty snapshot.
type Loader interface {
	Load(path string, dims int) (*Snapshot, error)
	Type() LoaderType
}

// NewLoader creates a loader of the specified type. Supported types: "read" (default), "mmap".
func NewLoader(loaderType string) (Loader, error) {
	switch LoaderType(loaderType) {
	case LoaderRead, "":
		return ReadLoader{}, nil
	case LoaderMmap:
		return MmapLoader{}, nil
	default:
		return nil, fmt.Errorf("unknown loader type: %s (supported: read, mmap)", loaderType)
	}
}

// ReadLoader loads snapshots with a single read of the file.
type ReadLoader struct{}

// Type returns the loader type identifier.
func (ReadLoader) Type() LoaderType { return LoaderRead }

// Load reads the whole file.
func (ReadLoader) Load(path string, dims int) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(nil, dims, 0, time.Time{}, nil), nil
		}
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat vector store: %w", err)
	}
	if info.Size()%RowSize(dims) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptStore, info.Size())
	}
	data := make([]byte, info.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("read vector store: %w", err)
	}
	return newSnapshot(data, dims, info.Size(), info.ModTime(), nil), nil
}

// MmapLoader loads snapshots by mapping the file read-only. The mapping refers to the
// file that was live at load time; a later swap does not affect it.
type MmapLoader struct{}

// Type returns the loader type identifier.
func (MmapLoader) Type() LoaderType { return LoaderMmap }

// Load maps the file.
func (MmapLoader) Load(path string, dims int) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(nil, dims, 0, time.Time{}, nil), nil
		}
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat vector store: %w", err)
	}
	if info.Size()%RowSize(dims) != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptStore, info.Size())
	}
	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		_ = f.Close()
		return newSnapshot(nil, dims, 0, info.ModTime(), nil), nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap vector store: %w", err)
	}
	free := func() error {
		err := m.Unmap()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return newSnapshot(m, dims, info.Size(), info.ModTime(), free), nil
}
