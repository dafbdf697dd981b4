package congestion

// BudgetAllocator divides a global rate across writers (spec.md §4.5):
// P0 writers receive a reserved slice off the top; the remainder is
// distributed proportional to recent demand (weighted-fair) among the
// P1/P2 writers.
type BudgetAllocator struct {
	p0ReserveFraction float64
}

func NewBudgetAllocator(p0ReserveFraction float64) *BudgetAllocator {
	return &BudgetAllocator{p0ReserveFraction: p0ReserveFraction}
}

// Demand is one writer's recent send volume, used as its fair-share
// weight.
type Demand struct {
	WriterID [4]byte
	IsP0     bool
	Recent   float64
}

// Allocation is the rate slice assigned to one writer.
type Allocation struct {
	WriterID [4]byte
	RateBps  float64
}

// Allocate divides globalRateBps across demands: P0 writers split the
// reserved fraction evenly; the remaining budget is distributed to
// non-P0 writers proportional to their recent demand.
func (b *BudgetAllocator) Allocate(globalRateBps float64, demands []Demand) []Allocation {
	var p0Count int
	var nonP0Total float64
	for _, d := range demands {
		if d.IsP0 {
			p0Count++
		} else {
			nonP0Total += d.Recent
		}
	}

	reserve := globalRateBps * b.p0ReserveFraction
	remainder := globalRateBps - reserve

	out := make([]Allocation, 0, len(demands))
	for _, d := range demands {
		if d.IsP0 {
			share := 0.0
			if p0Count > 0 {
				share = reserve / float64(p0Count)
			}
			out = append(out, Allocation{WriterID: d.WriterID, RateBps: share})
			continue
		}
		share := 0.0
		if nonP0Total > 0 {
			share = remainder * (d.Recent / nonP0Total)
		} else if len(demands)-p0Count > 0 {
			share = remainder / float64(len(demands)-p0Count)
		}
		out = append(out, Allocation{WriterID: d.WriterID, RateBps: share})
	}
	return out
}
