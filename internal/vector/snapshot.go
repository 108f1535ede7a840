package vector

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of the vector file as it was when loaded. It is
// reference counted: the loader returns it with one reference, Retain adds one and
// Release drops one, freeing the backing memory (or mapping) at zero.
type Snapshot struct {
	data    []byte
	dims    int
	rows    int
	size    int64
	modTime time.Time
	refs    atomic.Int32
	free    func() error
}

func newSnapshot(data []byte, dims int, size int64, modTime time.Time, free func() error) *Snapshot {
	s := &Snapshot{
		data:    data,
		dims:    dims,
		rows:    int(int64(len(data)) / RowSize(dims)),
		size:    size,
		modTime: modTime,
		free:    free,
	}
	s.refs.Store(1)
	return s
}

// Rows returns the number of rows in the snapshot.
func (s *Snapshot) Rows() int { return s.rows }

// Dimensions returns the row dimension.
func (s *Snapshot) Dimensions() int { return s.dims }

// Matches reports whether the snapshot was loaded from a file of the given size and mtime.
func (s *Snapshot) Matches(st FileState) bool {
	return st.Exists && st.Size == s.size && st.ModTime.Equal(s.modTime)
}

// Row decodes row i.
func (s *Snapshot) Row(i int) []float32 {
	rs := int(RowSize(s.dims))
	return DecodeRow(s.data[i*rs : (i+1)*rs])
}

// Score returns the dot product of q with row i.
func (s *Snapshot) Score(q []float32, i int) float32 {
	rs := int(RowSize(s.dims))
	return dotBytes(q, s.data[i*rs:(i+1)*rs])
}

// Retain adds a reference.
func (s *Snapshot) Retain() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release drops a reference and frees the snapshot when none remain.
func (s *Snapshot) Release() error {
	if s.refs.Add(-1) != 0 {
		return nil
	}
	s.data = nil
	if s.free != nil {
		return s.free()
	}
	return nil
}
