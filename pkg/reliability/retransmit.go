package reliability

// RetransmitAction is one outcome of resolving a NACKed sequence against
// the writer's history cache.
type RetransmitAction struct {
	SeqNum  uint64
	Payload []byte // set when Kind == RetransmitData
	Kind    RetransmitKind
}

type RetransmitKind int

const (
	// RetransmitData means the sequence is still cached and should be
	// resent as DATA.
	RetransmitData RetransmitKind = iota
	// RetransmitGap means the sequence was evicted and the reader should
	// be told via GAP instead.
	RetransmitGap
)

// WriterRetransmitHandler resolves ACKNACK-requested sequences against
// the writer's HistoryCache (spec.md §4.4): present sequences become DATA
// retransmissions, evicted ones are coalesced into GAP ranges.
type WriterRetransmitHandler struct {
	cache *HistoryCache
}

func NewWriterRetransmitHandler(cache *HistoryCache) *WriterRetransmitHandler {
	return &WriterRetransmitHandler{cache: cache}
}

// Resolve returns one action per requested sequence number, plus the
// coalesced GAP ranges spanning consecutive evicted sequences.
func (w *WriterRetransmitHandler) Resolve(requested []uint64) ([]RetransmitAction, []Range) {
	var actions []RetransmitAction
	var gapRanges []Range

	var gapStart, gapEnd uint64
	inGap := false
	flushGap := func() {
		if inGap {
			gapRanges = append(gapRanges, Range{Start: gapStart, End: gapEnd})
			inGap = false
		}
	}

	for _, seq := range requested {
		if entry, ok := w.cache.Get(seq); ok {
			flushGap()
			actions = append(actions, RetransmitAction{SeqNum: seq, Payload: entry.Payload, Kind: RetransmitData})
			continue
		}
		actions = append(actions, RetransmitAction{SeqNum: seq, Kind: RetransmitGap})
		if inGap && seq == gapEnd {
			gapEnd = seq + 1
			continue
		}
		flushGap()
		gapStart, gapEnd = seq, seq+1
		inGap = true
	}
	flushGap()

	return actions, gapRanges
}
