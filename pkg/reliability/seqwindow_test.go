package reliability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeqWindowDenseMapping(t *testing.T) {
	w := NewSeqWindow()
	l0, ok := w.Map(1000)
	require.True(t, ok)
	require.Equal(t, uint32(0), l0)

	l1, ok := w.Map(1001)
	require.True(t, ok)
	require.Equal(t, uint32(1), l1)

	l2, ok := w.Map(1005)
	require.True(t, ok)
	require.Equal(t, uint32(5), l2)
}

func TestSeqWindowRestartReinitializes(t *testing.T) {
	w := NewSeqWindow()
	w.Map(1000)
	w.Map(1001)

	l, ok := w.Map(10) // writer restarted with a lower seq
	require.True(t, ok)
	require.Equal(t, uint32(0), l)
	base, _ := w.Base()
	require.Equal(t, uint64(10), base)
}

func TestSeqWindowStrideLockAndAlignment(t *testing.T) {
	w := NewSeqWindow()
	w.Map(0) // base

	overflowSeq := uint64(math.MaxUint32) + 1 + 100 // stride = that delta
	idx, ok := w.Map(overflowSeq)
	require.True(t, ok)
	require.Equal(t, uint32(1), idx)

	// Non-aligned sample after stride lock is dropped.
	_, ok = w.Map(overflowSeq + 1)
	require.False(t, ok)

	// Aligned sample at 2x stride succeeds.
	idx2, ok := w.Map(overflowSeq * 2)
	require.True(t, ok)
	require.Equal(t, uint32(2), idx2)
}
