package reliability

import "sync/atomic"

// SequenceGenerator hands out a monotonically increasing, 1-based RTPS
// sequence number per writer (spec.md §4.4). Zero is RTPS-reserved and
// never issued.
type SequenceGenerator struct {
	next uint64
}

func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{next: 1}
}

// Next returns the next sequence number and advances the generator.
func (s *SequenceGenerator) Next() uint64 {
	return atomic.AddUint64(&s.next, 1) - 1
}

// Peek returns the sequence that Next would return without consuming it.
func (s *SequenceGenerator) Peek() uint64 {
	return atomic.LoadUint64(&s.next)
}
