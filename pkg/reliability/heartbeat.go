package reliability

import (
	"time"

	"github.com/hdds-io/hdds/pkg/wire"
)

// HeartbeatTx emits HEARTBEATs for a reliable writer at a configured
// period, or opportunistically right after a burst of writes, carrying
// the writer's current [firstAvailable, lastAvailable] sequence range
// (spec.md §4.4).
type HeartbeatTx struct {
	period   time.Duration
	lastSent time.Time
	count    uint32
	now      func() time.Time
}

func NewHeartbeatTx(period time.Duration) *HeartbeatTx {
	return &HeartbeatTx{period: period, now: time.Now}
}

// DuePeriodic reports whether the configured period has elapsed since the
// last emitted HEARTBEAT.
func (h *HeartbeatTx) DuePeriodic() bool {
	if h.lastSent.IsZero() {
		return true
	}
	return h.now().Sub(h.lastSent) >= h.period
}

// Next produces the next HEARTBEAT count and records the send time,
// advancing the monotonic count required by spec.md §4.4 (receivers
// ignore a HEARTBEAT whose count is not newer than the last acted-on).
func (h *HeartbeatTx) Next() uint32 {
	h.lastSent = h.now()
	h.count++
	return h.count
}

// NextFlags produces the next HEARTBEAT count alongside its flag byte.
// FINAL is set when the heartbeat is opportunistic — an idle keep-alive
// not solicited by a scheduled tick — rather than a periodic one that
// expects an ACKNACK in reply. liveliness marks a manual assert-liveliness
// call (HeartbeatFlagLiveliness), independent of FINAL.
func (h *HeartbeatTx) NextFlags(opportunistic, liveliness bool) (count uint32, flags byte) {
	count = h.Next()
	if opportunistic {
		flags |= wire.HeartbeatFlagFinal
	}
	if liveliness {
		flags |= wire.HeartbeatFlagLiveliness
	}
	return count, flags
}

// HeartbeatRx tracks the last acted-on HEARTBEAT count from a remote
// writer and computes the gap set implied by a HEARTBEAT's declared
// [first, last] range versus what has actually been received.
type HeartbeatRx struct {
	lastCount uint32
	seen      bool
}

func NewHeartbeatRx() *HeartbeatRx {
	return &HeartbeatRx{}
}

// Accept reports whether a HEARTBEAT with the given count should be acted
// on: strictly newer than the last one processed. A stale or duplicate
// count is ignored, per spec.md §4.4.
func (h *HeartbeatRx) Accept(count uint32) bool {
	if h.seen && count <= h.lastCount {
		return false
	}
	h.lastCount = count
	h.seen = true
	return true
}

// Gaps computes the newly detected portion of {first..=last} that lies
// beyond the tracker's lastSeen — the part no DATA has touched yet.
// Gaps already inside [1, lastSeen] are tracked by the GapTracker itself
// from actual reception order and are not duplicated here. The HEARTBEAT
// never mutates the GapTracker directly: it only reveals what the writer
// believes is still outstanding, which the caller hands to the
// NackScheduler alongside g.PendingGaps().
func (h *HeartbeatRx) Gaps(g *GapTracker, first, last uint64) []Range {
	if last < first {
		return nil
	}
	lo := first
	if g.LastSeen()+1 > lo {
		lo = g.LastSeen() + 1
	}
	if lo > last {
		return nil
	}
	return []Range{{Start: lo, End: last + 1}}
}
