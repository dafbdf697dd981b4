package endpoint

import (
	"hash/fnv"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
	"github.com/hdds-io/hdds/pkg/reliability"
	"github.com/hdds-io/hdds/pkg/wire"
)

// historyCapacity derives a HistoryCache bound from a KeepLast/KeepAll
// policy: KeepAll maps to an unbounded cache gated only by
// ResourceLimits.MaxSamples (0 if unlimited), KeepLast(n) to n.
func historyCapacity(h qos.History, limits qos.ResourceLimits) int {
	if h.Kind == qos.HistoryKeepLast {
		return h.Depth
	}
	if limits.MaxSamples == qos.Unlimited {
		return 0
	}
	return limits.MaxSamples
}

// Writer is a typed sample publisher (spec.md §4.7): write(sample)
// serializes via the type descriptor, wraps it with a CDR encapsulation
// header, enqueues to the congestion pacer at the endpoint's configured
// priority, and records it in the history cache. Reliable writers
// additionally carry a HeartbeatTx for the participant's reliability
// driver to tick.
type Writer[T any] struct {
	GUID      guid.GUID
	Qos       qos.Profile
	Priority  congestion.Priority

	desc     TypeDescriptor[T]
	seqGen   *reliability.SequenceGenerator
	history  *reliability.HistoryCache
	pacer    *congestion.WriterPacer
	heartbeat *reliability.HeartbeatTx // nil for BestEffort

	// StampInlineHints is stored on the Writer but not read: no inline
	// QoS is attached to outgoing DATA, whatever its value.
	StampInlineHints bool
	TopicName        string
}

// NewWriter constructs a Writer. A HeartbeatTx with period
// defaultHeartbeatPeriod is created only when profile.Reliability is
// Reliable.
func NewWriter[T any](id guid.GUID, desc TypeDescriptor[T], profile qos.Profile, pacer *congestion.WriterPacer, priority congestion.Priority) *Writer[T] {
	w := &Writer[T]{
		GUID:     id,
		Qos:      profile,
		Priority: priority,
		desc:     desc,
		seqGen:   reliability.NewSequenceGenerator(),
		history:  reliability.NewHistoryCache(historyCapacity(profile.History, profile.ResourceLimits)),
		pacer:    pacer,
	}
	if profile.Reliability == qos.ReliabilityReliable {
		w.heartbeat = reliability.NewHeartbeatTx(defaultHeartbeatPeriod)
	}
	return w
}

// defaultHeartbeatPeriod is a fallback; the participant builder option
// overrides it per spec.md §6.
const defaultHeartbeatPeriod = 200_000_000 // 200ms, in time.Duration ns units

// Heartbeat exposes the writer's HeartbeatTx, or nil for a BestEffort
// writer (spec.md §4.4: only reliable writers schedule HEARTBEATs).
func (w *Writer[T]) Heartbeat() *reliability.HeartbeatTx { return w.heartbeat }

// ID returns the writer's GUID, used by the participant's non-generic
// registry and drivers which cannot name Writer[T] for an arbitrary T.
func (w *Writer[T]) ID() guid.GUID { return w.GUID }

// HistoryCache exposes the writer's retained-sample cache so the
// reliability driver's retransmit handler can answer ACKNACK requests.
func (w *Writer[T]) HistoryCache() *reliability.HistoryCache { return w.history }

// Pacer exposes the writer's congestion pacer so the participant's send
// driver can drain it without naming T.
func (w *Writer[T]) Pacer() *congestion.WriterPacer { return w.pacer }

// Range returns the writer's current [first, last] retained sequence
// range, as carried in a HEARTBEAT.
func (w *Writer[T]) Range() (first, last uint64, ok bool) {
	first, ok = w.history.OldestRetained()
	if !ok {
		return 0, 0, false
	}
	return first, w.seqGen.Peek() - 1, true
}

// Write encodes sample, wraps it in a CDR encapsulation header, records
// it in the history cache, and enqueues it to the pacer. instanceKeyHash
// identifies the keyed instance for P2 coalescing (ignored for P0/P1).
func (w *Writer[T]) Write(sample T, instanceKeyHash uint64) (seq uint64, err error) {
	encoded, err := w.desc.Encode(sample)
	if err != nil {
		return 0, err
	}
	return w.writeEncoded(encoded, instanceKeyHash), nil
}

// WriteUnkeyed is Write for topics with no natural instance key: the
// instance hash is derived from the full encoded payload, so P2
// coalescing degenerates to "latest value wins" for the whole topic
// rather than per-instance.
func (w *Writer[T]) WriteUnkeyed(sample T) (seq uint64, err error) {
	encoded, err := w.desc.Encode(sample)
	if err != nil {
		return 0, err
	}
	return w.writeEncoded(encoded, instanceHash(encoded)), nil
}

func (w *Writer[T]) writeEncoded(encoded []byte, instanceKeyHash uint64) (seq uint64) {
	body := wire.NewWriteCursor()
	body.Encapsulation(wire.Encapsulation{Kind: wire.EncapsulationPlainCDRLE})
	body.Raw(encoded)
	payload := body.Bytes()

	seq = w.seqGen.Next()
	w.history.Insert(seq, payload)

	var key congestion.InstanceKey
	copy(key.WriterID[:], w.GUID.Entity[:])
	key.InstanceHash = instanceKeyHash

	w.pacer.Enqueue(congestion.Sample{
		Priority:    w.Priority,
		Payload:     payload,
		InstanceKey: key,
		SeqNum:      seq,
	})
	return seq
}

func instanceHash(encoded []byte) uint64 {
	h := fnv.New64a()
	h.Write(encoded)
	return h.Sum64()
}
