package reliability

import (
	"sort"
	"time"
)

// defaultMaxBatch caps a single coalesced flush, grounded on
// original_source/crates/hdds/src/congestion/nack_coalescer.rs.
const defaultMaxBatch = 100

// NackCoalescerStats mirrors the Rust NackCoalescerStats counters.
type NackCoalescerStats struct {
	NacksReceived      uint64
	Flushes            uint64
	SequencesFlushed   uint64
	DuplicatesCoalesced uint64
}

// NackCoalescer batches missing-sequence reports behind a short delay or a
// batch-size cap, so a single noisy writer doesn't trigger one ACKNACK per
// gap (spec.md §4.4).
type NackCoalescer struct {
	pending      map[uint64]struct{}
	coalesceDelay time.Duration
	firstNackAt  time.Time
	maxBatchSize int
	stats        NackCoalescerStats
	now          func() time.Time
}

func NewNackCoalescer(coalesceDelay time.Duration) *NackCoalescer {
	return NewNackCoalescerWithMaxBatch(coalesceDelay, defaultMaxBatch)
}

func NewNackCoalescerWithMaxBatch(coalesceDelay time.Duration, maxBatchSize int) *NackCoalescer {
	return &NackCoalescer{
		pending:      make(map[uint64]struct{}),
		coalesceDelay: coalesceDelay,
		maxBatchSize: maxBatchSize,
		now:          time.Now,
	}
}

// Add inserts a set of missing sequence numbers.
func (n *NackCoalescer) Add(gaps []uint64) {
	if len(gaps) == 0 {
		return
	}
	if n.firstNackAt.IsZero() {
		n.firstNackAt = n.now()
	}
	for _, seq := range gaps {
		n.stats.NacksReceived++
		if _, dup := n.pending[seq]; dup {
			n.stats.DuplicatesCoalesced++
			continue
		}
		n.pending[seq] = struct{}{}
	}
}

func (n *NackCoalescer) AddOne(seq uint64) {
	n.Add([]uint64{seq})
}

// AddRange adds the inclusive range [start, end]; a no-op if start > end.
func (n *NackCoalescer) AddRange(start, end uint64) {
	if start > end {
		return
	}
	gaps := make([]uint64, 0, end-start+1)
	for s := start; s <= end; s++ {
		gaps = append(gaps, s)
	}
	n.Add(gaps)
}

// ShouldFlush reports whether the pending set is ready to be sent: either
// it has grown to the batch cap, or the coalesce delay has elapsed since
// the first pending entry.
func (n *NackCoalescer) ShouldFlush() bool {
	if len(n.pending) == 0 {
		return false
	}
	if len(n.pending) >= n.maxBatchSize {
		return true
	}
	return n.now().Sub(n.firstNackAt) >= n.coalesceDelay
}

// FlushIfReady flushes and returns the pending sequences when ShouldFlush
// is true, or (nil, false) otherwise.
func (n *NackCoalescer) FlushIfReady() ([]uint64, bool) {
	if !n.ShouldFlush() {
		return nil, false
	}
	return n.Flush()
}

// Flush drains and returns the pending sequences sorted ascending.
func (n *NackCoalescer) Flush() ([]uint64, bool) {
	if len(n.pending) == 0 {
		return nil, false
	}
	gaps := make([]uint64, 0, len(n.pending))
	for seq := range n.pending {
		gaps = append(gaps, seq)
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	n.pending = make(map[uint64]struct{})
	n.firstNackAt = time.Time{}
	n.stats.Flushes++
	n.stats.SequencesFlushed += uint64(len(gaps))
	return gaps, true
}

func (n *NackCoalescer) PendingCount() int { return len(n.pending) }
func (n *NackCoalescer) HasPending() bool  { return len(n.pending) > 0 }

// TimeUntilFlush returns the remaining delay before a time-based flush, or
// false if nothing is pending.
func (n *NackCoalescer) TimeUntilFlush() (time.Duration, bool) {
	if len(n.pending) == 0 {
		return 0, false
	}
	elapsed := n.now().Sub(n.firstNackAt)
	remaining := n.coalesceDelay - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// FinalFlag reports whether an ACKNACK carrying this flush should set
// FINAL: the reader has nothing further to request this round, i.e. the
// flushed batch drained the coalescer and the caller's broader gap
// tracker (e.g. GapTracker.PendingGaps()) reports no further outstanding
// sequences either.
func (n *NackCoalescer) FinalFlag(otherGapsOutstanding bool) bool {
	return !n.HasPending() && !otherGapsOutstanding
}

func (n *NackCoalescer) CoalesceDelay() time.Duration { return n.coalesceDelay }
func (n *NackCoalescer) SetCoalesceDelay(d time.Duration) { n.coalesceDelay = d }
func (n *NackCoalescer) Stats() NackCoalescerStats { return n.stats }
