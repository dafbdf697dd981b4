package reliability

import "sync"

// CacheEntry is one retained sample keyed by sequence number.
type CacheEntry struct {
	SeqNum  uint64
	Payload []byte
}

// HistoryCache retains a writer's recent samples for retransmission and
// late-joiner durability (spec.md §4.4, §4.7). Eviction policy is driven
// by the endpoint's qos.History: KeepLast(n) retains the n newest samples,
// KeepAll retains everything up to ResourceLimits.
type HistoryCache struct {
	mu       sync.Mutex
	entries  []CacheEntry
	capacity int // 0 means unbounded (KeepAll with Unlimited resource limits)
}

// NewHistoryCache creates a cache bounded to capacity entries; pass 0 for
// unbounded (KeepAll).
func NewHistoryCache(capacity int) *HistoryCache {
	return &HistoryCache{capacity: capacity}
}

// Insert adds a sample, evicting the oldest entry if the cache is full.
func (h *HistoryCache) Insert(seq uint64, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, CacheEntry{SeqNum: seq, Payload: payload})
	if h.capacity > 0 && len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Get looks up a sequence number, returning (entry, true) if still
// retained or (zero, false) if evicted.
func (h *HistoryCache) Get(seq uint64) (CacheEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.SeqNum == seq {
			return e, true
		}
	}
	return CacheEntry{}, false
}

// OldestRetained returns the lowest retained sequence number, or
// (0, false) if the cache is empty.
func (h *HistoryCache) OldestRetained() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return 0, false
	}
	oldest := h.entries[0].SeqNum
	for _, e := range h.entries[1:] {
		if e.SeqNum < oldest {
			oldest = e.SeqNum
		}
	}
	return oldest, true
}

func (h *HistoryCache) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
