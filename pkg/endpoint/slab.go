package endpoint

import "sync"

// slabCap is the byte capacity of a pooled slab. Payloads larger than
// this are allocated outside the pool and simply discarded on release.
const slabCap = 4096

// maxPoolSize bounds the idle pool so a burst of large readers doesn't
// leave megabytes of slabs parked after traffic quiets down.
const maxPoolSize = 4096

// SlabPool recycles fixed-capacity byte buffers for reader storage,
// grounded on the buffer-pooling pattern used for metric sample storage
// in the pack (a LIFO slice-backed pool guarded by one mutex, capped to
// avoid unbounded growth after a retention burst) rather than sync.Pool,
// since sync.Pool offers no capacity cap and may be drained by the GC
// between samples, which would defeat the point for a hot ingress path.
type SlabPool struct {
	mu   sync.Mutex
	free [][]byte
}

func NewSlabPool() *SlabPool {
	return &SlabPool{}
}

// Get returns a slab with at least capacity bytes, reused from the pool
// when possible.
func (p *SlabPool) Get(capacity int) []byte {
	if capacity > slabCap {
		return make([]byte, 0, capacity)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return make([]byte, 0, slabCap)
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	return b[:0]
}

// Put returns a slab to the pool for reuse. Oversized slabs (from a
// capacity request above slabCap) are dropped rather than pooled.
func (p *SlabPool) Put(b []byte) {
	if cap(b) != slabCap {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= maxPoolSize {
		return
	}
	p.free = append(p.free, b)
}

func (p *SlabPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
