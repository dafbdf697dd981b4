package reliability

import "math"

// SeqWindow maps a remote writer's u64 sequence space onto a local u32
// index space, accommodating writers that use either dense (seq++) or
// strided sequence numbers (spec.md §4.4). Stride is inferred from the
// first delta that overflows a u32 — a heuristic noted as an open
// question in spec.md §9: a writer that jumps once then returns to dense
// may be misclassified. Current policy drops non-aligned samples once a
// stride is locked in, rather than re-evaluating on repeated misalignment.
type SeqWindow struct {
	initialized bool
	base        uint64
	stride      uint64 // 0 until locked
}

func NewSeqWindow() *SeqWindow {
	return &SeqWindow{}
}

// Map translates a remote sequence number to a local u32 index, or
// reports ok=false if the sample must be dropped (non-aligned once a
// stride is locked, or an index that would overflow u32).
func (w *SeqWindow) Map(seq uint64) (local uint32, ok bool) {
	if !w.initialized {
		w.base = seq
		w.initialized = true
		return 0, true
	}

	if seq < w.base {
		// Writer restart: re-initialize.
		w.base = seq
		w.stride = 0
		return 0, true
	}

	delta := seq - w.base

	if w.stride == 0 {
		if delta <= math.MaxUint32 {
			return uint32(delta), true
		}
		// First overflowing delta defines the stride.
		w.stride = delta
		return 1, true
	}

	if delta%w.stride != 0 {
		return 0, false
	}
	idx := delta / w.stride
	if idx > math.MaxUint32 {
		return 0, false
	}
	return uint32(idx), true
}

// Base returns the established base sequence number, or (0, false) if no
// sample has been observed yet.
func (w *SeqWindow) Base() (uint64, bool) {
	return w.base, w.initialized
}
