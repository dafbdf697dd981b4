package endpoint

import "testing"

func TestSlabPoolReusesReleasedSlab(t *testing.T) {
	p := NewSlabPool()
	b := p.Get(16)
	if cap(b) < slabCap {
		t.Fatalf("expected pooled slab capacity >= %d, got %d", slabCap, cap(b))
	}
	p.Put(append(b, 1, 2, 3))
	if p.Len() != 1 {
		t.Fatalf("expected 1 slab in pool, got %d", p.Len())
	}

	reused := p.Get(16)
	if len(reused) != 0 {
		t.Fatalf("expected reused slab to be reset to length 0, got len %d", len(reused))
	}
	if p.Len() != 0 {
		t.Fatalf("expected pool drained after Get, got %d", p.Len())
	}
}

func TestSlabPoolOversizedRequestNotPooled(t *testing.T) {
	p := NewSlabPool()
	b := p.Get(slabCap + 1)
	if cap(b) < slabCap+1 {
		t.Fatalf("expected oversized slab, got cap %d", cap(b))
	}
	p.Put(b)
	if p.Len() != 0 {
		t.Fatalf("expected oversized slab not pooled, got %d", p.Len())
	}
}

func TestSlabPoolCapsPoolSize(t *testing.T) {
	p := NewSlabPool()
	for i := 0; i < maxPoolSize+10; i++ {
		p.Put(make([]byte, 0, slabCap))
	}
	if p.Len() != maxPoolSize {
		t.Fatalf("expected pool capped at %d, got %d", maxPoolSize, p.Len())
	}
}
