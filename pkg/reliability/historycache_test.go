package reliability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryCacheEvictsOldestWhenBounded(t *testing.T) {
	h := NewHistoryCache(2)
	h.Insert(1, []byte("a"))
	h.Insert(2, []byte("b"))
	h.Insert(3, []byte("c"))

	_, ok := h.Get(1)
	require.False(t, ok, "oldest entry should be evicted")
	e, ok := h.Get(3)
	require.True(t, ok)
	require.Equal(t, []byte("c"), e.Payload)
	require.Equal(t, 2, h.Len())
}

func TestHistoryCacheUnbounded(t *testing.T) {
	h := NewHistoryCache(0)
	for i := uint64(1); i <= 50; i++ {
		h.Insert(i, nil)
	}
	require.Equal(t, 50, h.Len())
	oldest, ok := h.OldestRetained()
	require.True(t, ok)
	require.Equal(t, uint64(1), oldest)
}
