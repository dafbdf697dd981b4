package endpoint

import "sync"

// Condition is the trigger-evaluation surface WaitSet attaches to
// (spec.md §4.7): GetTriggerValue reports whether the condition is
// currently signaled, ConditionID identifies it for WaitSet bookkeeping.
type Condition interface {
	GetTriggerValue() bool
	ConditionID() uint64
}

var nextConditionID uint64
var conditionIDMu sync.Mutex

func allocConditionID() uint64 {
	conditionIDMu.Lock()
	defer conditionIDMu.Unlock()
	nextConditionID++
	return nextConditionID
}

// StatusCondition tracks a Reader/Writer's DATA_AVAILABLE-style status:
// set when the ring gains its first entry, cleared when it drains
// (spec.md §4.7). A Reader exposes one via GetStatusCondition.
type StatusCondition struct {
	mu      sync.Mutex
	id      uint64
	trigger bool
	onSet   func()
}

func NewStatusCondition() *StatusCondition {
	return &StatusCondition{id: allocConditionID()}
}

func (c *StatusCondition) ConditionID() uint64 { return c.id }

func (c *StatusCondition) GetTriggerValue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger
}

// Set raises the condition, notifying any attached WaitSet.
func (c *StatusCondition) Set() {
	c.mu.Lock()
	wasSet := c.trigger
	c.trigger = true
	notify := c.onSet
	c.mu.Unlock()
	if !wasSet && notify != nil {
		notify()
	}
}

func (c *StatusCondition) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trigger = false
}

func (c *StatusCondition) attachNotify(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSet = fn
}

// GuardCondition is an application-controlled condition with no
// driver-managed status behind it — set/reset entirely by caller code,
// e.g. to wake a WaitSet for a shutdown request (spec.md §4.7).
type GuardCondition struct {
	mu      sync.Mutex
	id      uint64
	trigger bool
	onSet   func()
}

func NewGuardCondition() *GuardCondition {
	return &GuardCondition{id: allocConditionID()}
}

func (c *GuardCondition) ConditionID() uint64 { return c.id }

func (c *GuardCondition) GetTriggerValue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger
}

func (c *GuardCondition) SetTriggerValue(v bool) {
	c.mu.Lock()
	wasSet := c.trigger
	c.trigger = v
	notify := c.onSet
	c.mu.Unlock()
	if v && !wasSet && notify != nil {
		notify()
	}
}

func (c *GuardCondition) attachNotify(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSet = fn
}
