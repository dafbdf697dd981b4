// Package reliability implements the RTPS reliable protocol state machine
// of spec.md §4.4: sequence generation, history cache, gap tracking, NACK
// scheduling/coalescing, heartbeat tx/rx, and retransmission. Generalized
// from the teacher's RakNet ACK/NACK/RecoveryQueue machinery
// (source/protocol/raknet.go's Session.HandleACK/HandleNACK) into RTPS
// sequence-range semantics.
package reliability

import "sort"

// MaxGapRanges bounds the gap tracker's memory: oldest ranges are dropped
// once exceeded, per spec.md §4.4.
const MaxGapRanges = 100

// Range is a half-open [Start, End) sequence range of missing sequences.
type Range struct {
	Start, End uint64
}

func (r Range) size() uint64 { return r.End - r.Start }

// GapTracker is the reader-side component tracking missing sequences for
// one writer. Sequence 0 is RTPS-reserved and ignored.
type GapTracker struct {
	lastSeen uint64
	gaps     []Range
}

func NewGapTracker() *GapTracker {
	return &GapTracker{}
}

func (g *GapTracker) LastSeen() uint64 { return g.lastSeen }

// PendingGaps returns the current sorted, merged gap ranges.
func (g *GapTracker) PendingGaps() []Range {
	return g.gaps
}

// TotalMissing sums the size of all gap ranges (spec.md §8 property 4).
func (g *GapTracker) TotalMissing() uint64 {
	var total uint64
	for _, r := range g.gaps {
		total += r.size()
	}
	return total
}

// OnReceive processes a received sequence number.
func (g *GapTracker) OnReceive(seq uint64) {
	if seq == 0 {
		return
	}
	switch {
	case seq == g.lastSeen+1:
		g.lastSeen = seq
	case seq > g.lastSeen+1:
		g.gaps = append(g.gaps, Range{Start: g.lastSeen + 1, End: seq})
		g.lastSeen = seq
		g.mergeAndCompact()
	default:
		g.MarkFilled(Range{Start: seq, End: seq + 1})
	}
}

// MarkFilled removes or splits gap ranges overlapping filled — used when
// an out-of-order sequence arrives that lands inside a tracked gap.
func (g *GapTracker) MarkFilled(filled Range) {
	updated := make([]Range, 0, len(g.gaps))
	for _, gap := range g.gaps {
		if filled.End <= gap.Start || filled.Start >= gap.End {
			updated = append(updated, gap)
			continue
		}
		if gap.Start < filled.Start {
			updated = append(updated, Range{gap.Start, filled.Start})
		}
		if filled.End < gap.End {
			updated = append(updated, Range{filled.End, gap.End})
		}
	}
	g.gaps = updated
}

// MarkLost removes lost from the pending gaps and advances lastSeen to
// max(lastSeen, lost.End-1), reflecting that the writer has declared
// those sequences unrecoverable via GAP (spec.md §4.4). lastSeen only
// ever moves forward: a GAP for a range the reader has already passed
// (e.g. a delayed/retransmitted GAP arriving after a later OnReceive)
// must not roll it backward.
func (g *GapTracker) MarkLost(lost Range) {
	if lost.Start >= lost.End {
		return
	}
	g.MarkFilled(lost)
	if lost.End > 0 && lost.End-1 > g.lastSeen {
		g.lastSeen = lost.End - 1
	}
	g.mergeAndCompact()
}

func (g *GapTracker) mergeAndCompact() {
	if len(g.gaps) == 0 {
		return
	}
	sort.Slice(g.gaps, func(i, j int) bool { return g.gaps[i].Start < g.gaps[j].Start })
	merged := g.gaps[:1]
	for _, r := range g.gaps[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	g.gaps = merged
	if len(g.gaps) > MaxGapRanges {
		g.gaps = g.gaps[len(g.gaps)-MaxGapRanges:]
	}
}
