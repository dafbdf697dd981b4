package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNackCoalescerBatchCapFlush(t *testing.T) {
	n := NewNackCoalescerWithMaxBatch(time.Hour, 3)
	n.Add([]uint64{1, 2})
	require.False(t, n.ShouldFlush())
	n.Add([]uint64{3})
	require.True(t, n.ShouldFlush())

	gaps, ok := n.Flush()
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2, 3}, gaps)
	require.False(t, n.HasPending())
}

func TestNackCoalescerTimeBasedFlush(t *testing.T) {
	clock := time.Now()
	n := NewNackCoalescer(10 * time.Millisecond)
	n.now = func() time.Time { return clock }

	n.Add([]uint64{7})
	require.False(t, n.ShouldFlush())

	clock = clock.Add(20 * time.Millisecond)
	require.True(t, n.ShouldFlush())
	gaps, ok := n.FlushIfReady()
	require.True(t, ok)
	require.Equal(t, []uint64{7}, gaps)
}

func TestNackCoalescerDuplicatesCoalesced(t *testing.T) {
	n := NewNackCoalescer(time.Hour)
	n.Add([]uint64{1, 1, 2})
	require.Equal(t, 2, n.PendingCount())
	require.Equal(t, uint64(1), n.Stats().DuplicatesCoalesced)
	require.Equal(t, uint64(3), n.Stats().NacksReceived)
}

func TestNackCoalescerAddRange(t *testing.T) {
	n := NewNackCoalescer(time.Hour)
	n.AddRange(5, 8)
	require.Equal(t, 4, n.PendingCount())
	n.AddRange(9, 3) // start > end: no-op
	require.Equal(t, 4, n.PendingCount())
}

func TestNackCoalescerFlushEmptyIsNoop(t *testing.T) {
	n := NewNackCoalescer(time.Hour)
	gaps, ok := n.Flush()
	require.False(t, ok)
	require.Nil(t, gaps)
}

func TestNackCoalescerFinalFlagRequiresNoOutstandingEitherSide(t *testing.T) {
	n := NewNackCoalescer(time.Hour)
	require.True(t, n.FinalFlag(false))
	require.False(t, n.FinalFlag(true))

	n.Add([]uint64{1})
	require.False(t, n.FinalFlag(false))
	n.Flush()
	require.True(t, n.FinalFlag(false))
}

func TestNackCoalescerTimeUntilFlush(t *testing.T) {
	clock := time.Now()
	n := NewNackCoalescer(50 * time.Millisecond)
	n.now = func() time.Time { return clock }

	_, ok := n.TimeUntilFlush()
	require.False(t, ok)

	n.Add([]uint64{1})
	remaining, ok := n.TimeUntilFlush()
	require.True(t, ok)
	require.Equal(t, 50*time.Millisecond, remaining)
}
