// Package qos implements the QoS policies of spec.md §3 and the RxO
// (Requested vs Offered) compatibility check of spec.md §3/§8 property 7.
package qos

import "time"

type ReliabilityKind int

const (
	ReliabilityBestEffort ReliabilityKind = iota
	ReliabilityReliable
)

type DurabilityKind int

const (
	DurabilityVolatile DurabilityKind = iota
	DurabilityTransientLocal
	DurabilityTransient
	DurabilityPersistent
)

type HistoryKind int

const (
	HistoryKeepLast HistoryKind = iota
	HistoryKeepAll
)

type History struct {
	Kind  HistoryKind
	Depth int // meaningful only for KeepLast
}

type OwnershipKind int

const (
	OwnershipShared OwnershipKind = iota
	OwnershipExclusive
)

type Ownership struct {
	Kind     OwnershipKind
	Strength int32 // meaningful only for Exclusive
}

type DestinationOrderKind int

const (
	DestinationOrderByReception DestinationOrderKind = iota
	DestinationOrderBySource
)

type PresentationScope int

const (
	PresentationInstance PresentationScope = iota
	PresentationTopic
	PresentationGroup
)

type Presentation struct {
	Scope    PresentationScope
	Coherent bool
	Ordered  bool
}

type ResourceLimits struct {
	MaxSamples           int
	MaxInstances         int
	MaxSamplesPerInstance int
}

// Unset sentinel for ResourceLimits fields, matching RTPS LENGTH_UNLIMITED.
const Unlimited = -1

func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{MaxSamples: Unlimited, MaxInstances: Unlimited, MaxSamplesPerInstance: Unlimited}
}

// Partition is a set of partition name strings; an empty set is
// equivalent to a single "default" partition for matching purposes.
type Partition struct {
	Names []string
}

func (p Partition) effective() []string {
	if len(p.Names) == 0 {
		return []string{""}
	}
	return p.Names
}

// Intersects reports whether two partition sets share any name.
func (p Partition) Intersects(other Partition) bool {
	a, b := p.effective(), other.effective()
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

// Profile bundles the policies of spec.md §3 that drive writer/reader
// behavior and RxO matching. Builder defaults mirror OMG DDS defaults:
// BestEffort, Volatile, KeepLast(1), Shared ownership, ByReception order.
type Profile struct {
	Reliability      ReliabilityKind
	Durability       DurabilityKind
	History          History
	Deadline         time.Duration // 0 = infinite
	Lifespan         time.Duration // 0 = infinite
	LatencyBudget    time.Duration
	TimeBasedFilter  time.Duration
	Ownership        Ownership
	DestinationOrder DestinationOrderKind
	Presentation     Presentation
	Partition        Partition
	ResourceLimits   ResourceLimits
	TransportPriority int32
}

func DefaultProfile() Profile {
	return Profile{
		Reliability:    ReliabilityBestEffort,
		Durability:     DurabilityVolatile,
		History:        History{Kind: HistoryKeepLast, Depth: 1},
		ResourceLimits: DefaultResourceLimits(),
	}
}
