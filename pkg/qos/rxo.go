package qos

// Mismatch names one incompatible policy found during an RxO check.
type Mismatch struct {
	Policy string
	Reason string
}

// Compatible runs the full Requested-vs-Offered check of spec.md §3: for
// each policy the writer's (offered) value must be at least as strict as
// the reader's (requested) value. A false result with a non-empty
// mismatch list is a non-match — not a caller error (spec.md §7).
func Compatible(offered, requested Profile) (bool, []Mismatch) {
	var mismatches []Mismatch

	if offered.Reliability < requested.Reliability {
		mismatches = append(mismatches, Mismatch{"Reliability", "offered weaker than requested"})
	}
	if offered.Durability < requested.Durability {
		mismatches = append(mismatches, Mismatch{"Durability", "offered weaker than requested"})
	}
	if offered.DestinationOrder < requested.DestinationOrder {
		mismatches = append(mismatches, Mismatch{"DestinationOrder", "offered weaker than requested"})
	}
	if offered.Ownership.Kind != requested.Ownership.Kind {
		mismatches = append(mismatches, Mismatch{"Ownership", "kinds must match exactly"})
	}
	if !historyCompatible(offered.History, requested.History) {
		mismatches = append(mismatches, Mismatch{"History", "offered history insufficient for requested"})
	}
	if !resourceLimitsCompatible(offered.ResourceLimits, requested.ResourceLimits) {
		mismatches = append(mismatches, Mismatch{"ResourceLimits", "offered limits below requested"})
	}
	if requested.Deadline != 0 && (offered.Deadline == 0 || offered.Deadline > requested.Deadline) {
		mismatches = append(mismatches, Mismatch{"Deadline", "offered period exceeds requested"})
	}
	if requested.LatencyBudget != 0 && offered.LatencyBudget > requested.LatencyBudget {
		mismatches = append(mismatches, Mismatch{"LatencyBudget", "offered budget exceeds requested"})
	}
	if !offered.Partition.Intersects(requested.Partition) {
		mismatches = append(mismatches, Mismatch{"Partition", "no common partition"})
	}

	return len(mismatches) == 0, mismatches
}

// historyCompatible requires the offered history to retain at least as
// much as the requested history: KeepAll offered satisfies anything;
// KeepLast(n) offered satisfies KeepLast(m) requested iff n >= m, and
// never satisfies KeepAll requested.
func historyCompatible(offered, requested History) bool {
	if offered.Kind == HistoryKeepAll {
		return true
	}
	if requested.Kind == HistoryKeepAll {
		return false
	}
	return offered.Depth >= requested.Depth
}

func resourceLimitsCompatible(offered, requested ResourceLimits) bool {
	return limitCompatible(offered.MaxSamples, requested.MaxSamples) &&
		limitCompatible(offered.MaxInstances, requested.MaxInstances) &&
		limitCompatible(offered.MaxSamplesPerInstance, requested.MaxSamplesPerInstance)
}

func limitCompatible(offered, requested int) bool {
	if offered == Unlimited {
		return true
	}
	if requested == Unlimited {
		return offered == Unlimited
	}
	return offered >= requested
}

// EffectiveQos computes the effective QoS recorded on a match
// (spec.md §4.6), starting from the offered (writer) profile: Reliability
// takes the stronger kind and Deadline the shorter non-zero period, while
// LatencyBudget and TimeBasedFilter take the larger of the two values.
// Every other policy keeps the offered value.
func EffectiveQos(offered, requested Profile) Profile {
	eff := offered
	if requested.Reliability > eff.Reliability {
		eff.Reliability = requested.Reliability
	}
	if requested.Deadline != 0 && (eff.Deadline == 0 || requested.Deadline < eff.Deadline) {
		eff.Deadline = requested.Deadline
	}
	if requested.LatencyBudget > eff.LatencyBudget {
		eff.LatencyBudget = requested.LatencyBudget
	}
	if requested.TimeBasedFilter > eff.TimeBasedFilter {
		eff.TimeBasedFilter = requested.TimeBasedFilter
	}
	return eff
}
