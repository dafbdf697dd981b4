package endpoint

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/pkg/herrors"
)

// notifier is implemented by condition types that can push a wakeup to an
// attached WaitSet, rather than requiring the waiter to poll.
type notifier interface {
	attachNotify(func())
}

// WaitSet attaches Conditions to one coalescing wake channel (spec.md
// §4.7): a single notification channel services every attached
// condition, so N attached conditions cost one wakeup primitive, not N.
// WaitTimeout re-checks trigger values at call time rather than trusting
// only the channel, so a signal that arrived between Attach and
// WaitTimeout is never
// lost (spec.md: "attach-time trigger is re-checked to avoid lost
// wakeups").
type WaitSet struct {
	mu         sync.Mutex
	conditions map[uint64]Condition
	wake       chan struct{}
}

func NewWaitSet() *WaitSet {
	return &WaitSet{
		conditions: make(map[uint64]Condition),
		wake:       make(chan struct{}, 1),
	}
}

// Attach registers a condition. If it supports push notification
// (StatusCondition, GuardCondition), a signal wakes this WaitSet
// immediately; otherwise WaitTimeout falls back to polling it at each wake.
func (w *WaitSet) Attach(c Condition) {
	w.mu.Lock()
	w.conditions[c.ConditionID()] = c
	w.mu.Unlock()
	if n, ok := c.(notifier); ok {
		n.attachNotify(w.signal)
	}
}

func (w *WaitSet) Detach(c Condition) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.conditions, c.ConditionID())
}

func (w *WaitSet) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// WaitTimeout blocks until at least one attached condition's trigger
// value is true, or timeout elapses with none triggered — returning a
// would-block kind error in that case (spec.md §4.7).
func (w *WaitSet) WaitTimeout(timeout time.Duration) ([]Condition, error) {
	deadline := time.After(timeout)
	for {
		if triggered := w.triggered(); len(triggered) > 0 {
			return triggered, nil
		}
		select {
		case <-w.wake:
			continue
		case <-deadline:
			if triggered := w.triggered(); len(triggered) > 0 {
				return triggered, nil
			}
			return nil, herrors.New(herrors.KindWouldBlock, "endpoint.waitset", "wait timed out with no triggered condition")
		}
	}
}

func (w *WaitSet) triggered() []Condition {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Condition
	for _, c := range w.conditions {
		if c.GetTriggerValue() {
			out = append(out, c)
		}
	}
	return out
}
