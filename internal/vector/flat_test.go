package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDims = 4

func newTestStore(t *testing.T, opts ...Option) *FlatStore {
	t.Helper()
	s, err := NewFlatStore(filepath.Join(t.TempDir(), "data", "embeddings.bin"), testDims, opts...)
	require.NoError(t, err)
	return s
}

func produceFrom(vecs [][]float32) Producer {
	return func(_ context.Context, i int) ([]float32, error) {
		if vecs[i] == nil {
			return nil, errors.New("decode failed")
		}
		return vecs[i], nil
	}
}

func recordSlots(slots *[]int64) Committer {
	return func(_ context.Context, _ int, slot int64) error {
		*slots = append(*slots, slot)
		return nil
	}
}

func TestFlatStore_AppendEmpty(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Append(context.Background(), 0, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.RowsAfter)
	_, err = os.Stat(s.Path())
	require.True(t, os.IsNotExist(err), "no live file expected")
	require.False(t, s.HasPendingTemp())
}

func TestFlatStore_AppendPreservesPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var slots []int64
	res, err := s.Append(ctx, 2, produceFrom([][]float32{{1, 0, 0, 0}, {0, 3, 4, 0}}), recordSlots(&slots))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, slots)
	require.Equal(t, 2, res.RowsAfter)

	prefix, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Len(t, prefix, int(2*RowSize(testDims)))

	slots = nil
	res, err = s.Append(ctx, 1, produceFrom([][]float32{{0, 0, 2, 0}}), recordSlots(&slots))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, slots)
	require.Equal(t, 2, res.RowsBefore)
	require.Equal(t, 3, res.RowsAfter)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, prefix, after[:len(prefix)], "existing rows must be byte-identical")
	require.False(t, s.HasPendingTemp())

	rows, err := s.Rows()
	require.NoError(t, err)
	require.Equal(t, 3, rows)
}

func TestFlatStore_RowsAreNormalized(t *testing.T) {
	s := newTestStore(t)
	var slots []int64
	_, err := s.Append(context.Background(), 2, produceFrom([][]float32{{3, 4, 0, 0}, {1, 1, 1, 1}}), recordSlots(&slots))
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	for i := 0; i < snap.Rows(); i++ {
		require.InDelta(t, 1.0, L2Norm(snap.Row(i)), 1e-5)
	}
	require.InDelta(t, 0.6, snap.Row(0)[0], 1e-6)
	require.InDelta(t, 0.8, snap.Row(0)[1], 1e-6)
}

func TestFlatStore_FailedItemsLeaveZeroRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	commitErr := errors.New("metadata unavailable")
	commit := func(_ context.Context, i int, _ int64) error {
		if i == 2 {
			return commitErr
		}
		return nil
	}
	vecs := [][]float32{{1, 0, 0, 0}, nil, {0, 1, 0, 0}, {0, 0, 0}, {0, 0, 1, 0}}
	res, err := s.Append(ctx, len(vecs), produceFrom(vecs), commit)
	require.NoError(t, err)
	require.Equal(t, 5, res.RowsAfter)
	require.Equal(t, 2, res.Written())

	require.NoError(t, res.Outcomes[0].Err)
	require.Error(t, res.Outcomes[1].Err)
	require.ErrorIs(t, res.Outcomes[2].Err, commitErr)
	require.ErrorIs(t, res.Outcomes[3].Err, ErrDimensionMismatch)
	require.NoError(t, res.Outcomes[4].Err)
	require.Equal(t, int64(4), res.Outcomes[4].Slot)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	for _, i := range []int{1, 2, 3} {
		require.Zero(t, L2Norm(snap.Row(i)), "row %d should be zero", i)
	}
}

func TestFlatStore_InterruptedSwapLeavesLiveFile(t *testing.T) {
	boom := errors.New("crash before swap")
	fail := false
	s := newTestStore(t, WithBeforeSwap(func(string) error {
		if fail {
			return boom
		}
		return nil
	}))
	ctx := context.Background()

	var slots []int64
	_, err := s.Append(ctx, 2, produceFrom([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}), recordSlots(&slots))
	require.NoError(t, err)
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	fail = true
	_, err = s.Append(ctx, 3, produceFrom([][]float32{{1, 1, 0, 0}, {0, 1, 1, 0}, {0, 0, 1, 1}}), recordSlots(&slots))
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.False(t, s.HasPendingTemp(), "temporary file must be removed")
}

func TestFlatStore_AppendMarksTempCompleteBeforeSwap(t *testing.T) {
	var s *FlatStore
	marked := false
	s = newTestStore(t, WithBeforeSwap(func(tmpPath string) error {
		info, err := os.Stat(tmpPath)
		if err != nil {
			return err
		}
		marked = s.tempComplete(info.Size())
		return nil
	}))
	var slots []int64
	_, err := s.Append(context.Background(), 2, produceFrom([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}), recordSlots(&slots))
	require.NoError(t, err)
	require.True(t, marked, "temporary file must be marked complete before the swap")
	_, err = os.Stat(s.donePath())
	require.True(t, os.IsNotExist(err), "marker must be removed after the swap")
}

func TestFlatStore_AppendCanceled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	produce := func(_ context.Context, i int) ([]float32, error) {
		if i == 1 {
			cancel()
		}
		return []float32{1, 0, 0, 0}, nil
	}
	_, err := s.Append(ctx, 3, produce, func(context.Context, int, int64) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(s.Path())
	require.True(t, os.IsNotExist(err))
	require.False(t, s.HasPendingTemp())
}

func TestFlatStore_CorruptStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
	require.NoError(t, os.WriteFile(s.Path(), make([]byte, RowSize(testDims)+3), 0644))

	_, err := s.Rows()
	require.ErrorIs(t, err, ErrCorruptStore)
	_, err = s.Append(context.Background(), 1, produceFrom([][]float32{{1, 0, 0, 0}}), nil)
	require.ErrorIs(t, err, ErrCorruptStore)
	_, err = s.Snapshot()
	require.ErrorIs(t, err, ErrCorruptStore)
}

func writeTemp(t *testing.T, s *FlatStore, rows int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
	data := make([]byte, int64(rows)*RowSize(testDims))
	for i := 0; i < rows; i++ {
		EncodeRow(data[int64(i)*RowSize(testDims):], []float32{1, 0, 0, 0})
	}
	require.NoError(t, os.WriteFile(s.TempPath(), data, 0644))
}

func TestFlatStore_Recover(t *testing.T) {
	t.Run("no temp", func(t *testing.T) {
		s := newTestStore(t)
		action, rows, err := s.Recover(0)
		require.NoError(t, err)
		require.Equal(t, TempNone, action)
		require.Equal(t, 0, rows)
	})

	t.Run("temp beside live is discarded", func(t *testing.T) {
		s := newTestStore(t)
		var slots []int64
		_, err := s.Append(context.Background(), 1, produceFrom([][]float32{{1, 0, 0, 0}}), recordSlots(&slots))
		require.NoError(t, err)
		writeTemp(t, s, 3)

		action, rows, err := s.Recover(1)
		require.NoError(t, err)
		require.Equal(t, TempDiscarded, action)
		require.Equal(t, 1, rows)
		require.False(t, s.HasPendingTemp())
	})

	t.Run("orphan temp covering slots is promoted", func(t *testing.T) {
		s := newTestStore(t)
		writeTemp(t, s, 3)
		require.NoError(t, s.markTempComplete(3*RowSize(testDims)))
		action, rows, err := s.Recover(2)
		require.NoError(t, err)
		require.Equal(t, TempPromoted, action)
		require.Equal(t, 3, rows)
		_, err = os.Stat(s.donePath())
		require.True(t, os.IsNotExist(err), "marker must be removed")
	})

	t.Run("orphan temp without completion marker is discarded", func(t *testing.T) {
		s := newTestStore(t)
		writeTemp(t, s, 3)
		action, rows, err := s.Recover(2)
		require.NoError(t, err)
		require.Equal(t, TempDiscarded, action)
		require.Equal(t, 0, rows)
		require.False(t, s.HasPendingTemp())
	})

	t.Run("marker for a different size is discarded", func(t *testing.T) {
		s := newTestStore(t)
		writeTemp(t, s, 3)
		require.NoError(t, s.markTempComplete(4*RowSize(testDims)))
		action, _, err := s.Recover(0)
		require.NoError(t, err)
		require.Equal(t, TempDiscarded, action)
	})

	t.Run("orphan temp too short is discarded", func(t *testing.T) {
		s := newTestStore(t)
		writeTemp(t, s, 1)
		require.NoError(t, s.markTempComplete(RowSize(testDims)))
		action, rows, err := s.Recover(2)
		require.NoError(t, err)
		require.Equal(t, TempDiscarded, action)
		require.Equal(t, 0, rows)
	})

	t.Run("torn temp is discarded", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
		require.NoError(t, os.WriteFile(s.TempPath(), make([]byte, 7), 0644))
		action, _, err := s.Recover(0)
		require.NoError(t, err)
		require.Equal(t, TempDiscarded, action)
	})
}

func TestCodec(t *testing.T) {
	v := []float32{1.5, -2, float32(math.Pi), 0}
	buf := make([]byte, RowSize(len(v)))
	EncodeRow(buf, v)
	require.Equal(t, v, DecodeRow(buf))
	require.InDelta(t, Dot(v, v), dotBytes(v, buf), 1e-6)
}
