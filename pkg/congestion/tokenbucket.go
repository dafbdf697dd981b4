// Package congestion implements the AIMD rate controller, priority
// queues, and repair-traffic budget of spec.md §4.5. Grounded on the
// teacher's session pacing patterns (source/protocol/raknet.go's
// per-session send throttling) generalized to a token-bucket/AIMD model,
// and on original_source/crates/hdds/src/congestion for exact constants.
package congestion

import (
	"sync"
	"time"
)

// TokenBucket is a per-writer rate limiter refilled continuously at
// rateBps up to capacity burst (spec.md §4.5). Hand-rolled rather than
// golang.org/x/time/rate: rateBps can be changed after construction via
// SetRate, and WriterPacer spends tokens as float64 byte counts,
// neither of which fits rate.Limiter's fixed-at-construction,
// integer-token API without a wrapper at least as large as this.
type TokenBucket struct {
	mu       sync.Mutex
	rateBps  float64
	burst    float64
	tokens   float64
	lastFill time.Time
	now      func() time.Time
}

func NewTokenBucket(rateBps, burst float64) *TokenBucket {
	return &TokenBucket{
		rateBps:  rateBps,
		burst:    burst,
		tokens:   burst,
		lastFill: time.Now(),
		now:      time.Now,
	}
}

func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rateBps
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastFill = now
}

// TryTake attempts to consume n bytes worth of tokens, returning whether
// the bucket had enough.
func (b *TokenBucket) TryTake(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

func (b *TokenBucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rateBps
}

func (b *TokenBucket) SetRate(rateBps float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.rateBps = rateBps
}

func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}
