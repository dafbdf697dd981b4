package congestion

import "time"

// RetryState tracks one in-flight repair's attempt count and backoff
// (spec.md §4.5: "retry tracker {attempts ≤ max_retries, backoff_ms}").
type RetryState struct {
	Attempts  int
	NextRetry time.Time
}

// RepairQueue bounds retransmission traffic to budgetRatio of the
// writer's rate via its own bucket, and tracks per-sequence retry state
// so a sequence is abandoned after maxRetries.
type RepairQueue struct {
	bucket      *TokenBucket
	maxRetries  int
	baseBackoff time.Duration
	retries     map[uint64]*RetryState
	now         func() time.Time
}

func NewRepairQueue(budgetRatio, writerRateBps float64, maxRetries int, baseBackoff time.Duration) *RepairQueue {
	return &RepairQueue{
		bucket:      NewTokenBucket(writerRateBps*budgetRatio, writerRateBps*budgetRatio),
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		retries:     make(map[uint64]*RetryState),
		now:         time.Now,
	}
}

// Admit reports whether seq should be (re)transmitted now: backoff has
// elapsed, the attempt budget isn't exhausted, and the repair bucket has
// capacity for payloadLen bytes.
func (q *RepairQueue) Admit(seq uint64, payloadLen int) bool {
	st, ok := q.retries[seq]
	if !ok {
		st = &RetryState{}
		q.retries[seq] = st
	}
	if st.Attempts >= q.maxRetries {
		return false
	}
	if !st.NextRetry.IsZero() && q.now().Before(st.NextRetry) {
		return false
	}
	if !q.bucket.TryTake(float64(payloadLen)) {
		return false
	}
	st.Attempts++
	st.NextRetry = q.now().Add(q.baseBackoff * (1 << uint(st.Attempts-1)))
	return true
}

// Forget drops retry state once a sequence is acknowledged.
func (q *RepairQueue) Forget(seq uint64) {
	delete(q.retries, seq)
}

func (q *RepairQueue) Exhausted(seq uint64) bool {
	st, ok := q.retries[seq]
	return ok && st.Attempts >= q.maxRetries
}
