// Package textindex stores the path-text embedding of each item in BoltDB, one bucket
// per model version, keyed by item path.
package textindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hyperjump/soundsift/internal/vector"
)

var errMissingBucket = errors.New("text index bucket does not exist")

// BoltIndex is a path -> text vector map backed by BoltDB.
type BoltIndex struct {
	db     *bbolt.DB
	bucket []byte
	dims   int
}

// Options configures how the index file is opened.
type Options struct {
	ReadOnly bool
	Timeout  time.Duration // how long to wait for the file lock; 0 uses one second
}

// NewBoltIndex opens or creates the index at path for the given model version and dimension.
func NewBoltIndex(path, modelVersion string, dims int, opts Options) (*BoltIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if !opts.ReadOnly {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create text index directory: %w", err)
			}
		}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}

	idx := &BoltIndex{db: db, bucket: []byte("text/" + modelVersion), dims: dims}
	if !opts.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(idx.bucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create bucket %s: %w", idx.bucket, err)
		}
	}
	return idx, nil
}

// Put stores the normalized text vector for path, replacing any previous one.
func (b *BoltIndex) Put(path string, vec []float32) error {
	if len(vec) != b.dims {
		return fmt.Errorf("%w: expected %d, got %d", vector.ErrDimensionMismatch, b.dims, len(vec))
	}
	data := make([]byte, vector.RowSize(b.dims))
	vector.EncodeRow(data, vector.Normalized(vec))
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return errMissingBucket
		}
		return bucket.Put([]byte(path), data)
	})
}

// Get returns the text vector for path and whether it exists.
func (b *BoltIndex) Get(path string) ([]float32, bool, error) {
	var vec []float32
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte(path)); data != nil {
			vec = vector.DecodeRow(data)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return vec, vec != nil, nil
}

// GetMany returns the text vectors of every path that has one.
func (b *BoltIndex) GetMany(paths []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(paths))
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		for _, p := range paths {
			if data := bucket.Get([]byte(p)); data != nil {
				out[p] = vector.DecodeRow(data)
			}
		}
		return nil
	})
	return out, err
}

// Delete removes the vectors of the given paths.
func (b *BoltIndex) Delete(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return errMissingBucket
		}
		for _, p := range paths {
			if err := bucket.Delete([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored vectors.
func (b *BoltIndex) Count() (int, error) {
	n := 0
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (b *BoltIndex) Close() error {
	return b.db.Close()
}

// IsLocked reports whether err means another process holds the index open.
func IsLocked(err error) bool {
	return errors.Is(err, bbolt.ErrTimeout)
}
