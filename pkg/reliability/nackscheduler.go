package reliability

import (
	"sort"
	"time"
)

// NackScheduler tracks how long each pending gap has been outstanding and
// reports which have aged past windowMs, making them NACK-eligible
// (spec.md §4.4). It shares the gap view produced by GapTracker but adds
// per-gap timing so a freshly opened gap isn't NACKed before the writer
// has had a chance to retransmit on its own.
type NackScheduler struct {
	windowMs time.Duration
	pendingAt map[uint64]time.Time
	now      func() time.Time
}

func NewNackScheduler(window time.Duration) *NackScheduler {
	return &NackScheduler{
		windowMs:  window,
		pendingAt: make(map[uint64]time.Time),
		now:       time.Now,
	}
}

// Observe records the current gap ranges, starting a timer for any newly
// seen sequence and dropping timers for sequences no longer missing.
func (s *NackScheduler) Observe(gaps []Range) {
	seen := make(map[uint64]struct{})
	now := s.now()
	for _, r := range gaps {
		for seq := r.Start; seq < r.End; seq++ {
			seen[seq] = struct{}{}
			if _, ok := s.pendingAt[seq]; !ok {
				s.pendingAt[seq] = now
			}
		}
	}
	for seq := range s.pendingAt {
		if _, ok := seen[seq]; !ok {
			delete(s.pendingAt, seq)
		}
	}
}

// Eligible returns the sequences that have been pending at least
// windowMs, in ascending order.
func (s *NackScheduler) Eligible() []uint64 {
	now := s.now()
	var out []uint64
	for seq, t := range s.pendingAt {
		if now.Sub(t) >= s.windowMs {
			out = append(out, seq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
