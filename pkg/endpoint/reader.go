package endpoint

import (
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/hdds-io/hdds/pkg/qos"
	"github.com/hdds-io/hdds/pkg/reliability"
	"github.com/hdds-io/hdds/pkg/wire"
)

// Reader is a typed sample subscriber (spec.md §4.7): its ingress
// callback decodes a DATA payload, applies the optional content filter,
// maps the remote sequence to a local index via SeqWindow, reserves a
// slab, commits an IndexEntry, and raises DATA_AVAILABLE. take() pops
// one entry and clears the status once the ring empties.
type Reader[T any] struct {
	GUID guid.GUID
	Qos  qos.Profile

	desc   TypeDescriptor[T]
	ring   *IndexRing[T]
	window *reliability.SeqWindow
	filter *ContentFilter[T]
	status *StatusCondition
	pool   *SlabPool
}

func NewReader[T any](id guid.GUID, desc TypeDescriptor[T], profile qos.Profile, ringCapacity int, pool *SlabPool, filter *ContentFilter[T]) *Reader[T] {
	return &Reader[T]{
		GUID:   id,
		Qos:    profile,
		desc:   desc,
		ring:   NewIndexRing[T](ringCapacity, pool),
		window: reliability.NewSeqWindow(),
		filter: filter,
		status: NewStatusCondition(),
		pool:   pool,
	}
}

func (r *Reader[T]) GetStatusCondition() *StatusCondition { return r.status }

// ID returns the reader's GUID, used by the participant's non-generic
// registry and drivers which cannot name Reader[T] for an arbitrary T.
func (r *Reader[T]) ID() guid.GUID { return r.GUID }

// OnData is the ingress callback for one DATA submessage's payload
// (encapsulation header included) carrying the writer's RTPS sequence
// number. It decodes, filters, maps the sequence, and commits the entry.
// Returns ok=false (no error) if the content filter rejected the sample
// or SeqWindow dropped it as non-aligned — both are silent drops per
// spec.md §4.7, not failures.
func (r *Reader[T]) OnData(writerSeq uint64, payload []byte) (ok bool, err error) {
	cur := wire.NewReadCursor(payload)
	if _, err := cur.Encapsulation(); err != nil {
		return false, err
	}
	body, err := cur.Raw(cur.Remaining())
	if err != nil {
		return false, err
	}

	sample, err := r.desc.Decode(body)
	if err != nil {
		return false, err
	}

	if r.filter != nil && !r.filter.Matches(sample) {
		return false, nil
	}

	localSeq, mapped := r.window.Map(writerSeq)
	if !mapped {
		return false, nil
	}

	var slab []byte
	if r.pool != nil {
		slab = append(r.pool.Get(len(body)), body...)
	} else {
		slab = append([]byte(nil), body...)
	}

	wasEmpty := r.ring.Commit(IndexEntry[T]{LocalSeq: localSeq, Sample: sample, slab: slab})
	if wasEmpty {
		r.status.Set()
	}
	return true, nil
}

// Take pops the oldest committed entry. Returns a would-block kind error
// if the ring is empty.
func (r *Reader[T]) Take() (IndexEntry[T], error) {
	entry, becameEmpty, ok := r.ring.Take()
	if !ok {
		return IndexEntry[T]{}, herrors.New(herrors.KindWouldBlock, "endpoint.reader", "no sample available")
	}
	if becameEmpty {
		r.status.Clear()
	}
	return entry, nil
}

func (r *Reader[T]) Len() int { return r.ring.Len() }
