package congestion

// SendResult is the outcome of a single non-blocking pacer drain attempt
// (spec.md §4.5: "all pacer operations are non-blocking").
type SendResult int

const (
	SendOK SendResult = iota
	SendWouldBlock
	SendEmpty
)

// WriterPacer multiplexes the three priority queues strictly by priority
// (P0 before P1 before P2) and consumes bucket tokens per byte sent
// (spec.md §4.5). P0 traffic always bypasses the bucket, so urgent
// control traffic (e.g. ACKNACK, HEARTBEAT) is never starved by bulk
// data. p0ReserveFraction is stored but not read: the P0 bypass is not
// limited to a fraction of the rate.
type WriterPacer struct {
	p0               *FifoQueue
	p1               *FifoQueue
	p2               *CoalescingQueue
	bucket           *TokenBucket
	p0ReserveFraction float64
}

func NewWriterPacer(bucket *TokenBucket, p1Capacity int, p0ReserveFraction float64) *WriterPacer {
	return &WriterPacer{
		p0:               NewFifoQueue(0),
		p1:               NewFifoQueue(p1Capacity),
		p2:               NewCoalescingQueue(),
		bucket:           bucket,
		p0ReserveFraction: p0ReserveFraction,
	}
}

func (p *WriterPacer) Enqueue(s Sample) {
	switch s.Priority {
	case P0:
		p.p0.Push(s)
	case P1:
		p.p1.Push(s)
	default:
		p.p2.Push(s)
	}
}

// TrySend drains the highest-priority non-empty queue by one sample. P0
// samples are never blocked by the bucket: their tokens are taken when
// the bucket holds enough, and otherwise the sample sends anyway without
// any deduction.
func (p *WriterPacer) TrySend() (Sample, SendResult) {
	if s, ok := p.p0.Pop(); ok {
		p.bucket.TryTake(float64(len(s.Payload)))
		return s, SendOK
	}
	if s, ok := p.p1.peek(); ok {
		if !p.bucket.TryTake(float64(len(s.Payload))) {
			return Sample{}, SendWouldBlock
		}
		p.p1.Pop()
		return s, SendOK
	}
	if s, ok := p.p2.peek(); ok {
		if !p.bucket.TryTake(float64(len(s.Payload))) {
			return Sample{}, SendWouldBlock
		}
		p.p2.Pop()
		return s, SendOK
	}
	return Sample{}, SendEmpty
}

func (q *FifoQueue) peek() (Sample, bool) {
	if len(q.items) == 0 {
		return Sample{}, false
	}
	return q.items[0], true
}

func (q *CoalescingQueue) peek() (Sample, bool) {
	for _, key := range q.order {
		if s, ok := q.byKey[key]; ok {
			return s, true
		}
	}
	return Sample{}, false
}
