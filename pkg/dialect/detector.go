package dialect

import (
	"math"
	"time"

	"github.com/hdds-io/hdds/pkg/wire"
)

// Phase is the detector's lifecycle stage (spec.md §4.2).
type Phase int

const (
	Probe Phase = iota
	Locked
	Monitor
)

// Change reports a dialect switch observed during MONITOR.
type Change struct {
	From, To Dialect
}

const (
	minSamples         = 3
	probeTimeout       = 2 * time.Second
	confidenceThreshold = 70 // 0-100
	maxSwitchesBeforeCooldown = 3
	flappingCooldown   = 60 * time.Second
)

// scoreBoard accumulates per-dialect score totals across samples seen
// during PROBE, normalized by sample count to produce a 0-100 confidence.
type scoreBoard struct {
	fastDds, rti, openDds, cyclone float64
}

// Detector implements the PROBE -> LOCKED -> MONITOR state machine of
// spec.md §4.2. Each sample is scored on vendor id (weight 40%) and
// source port (weight 30%) only; RTPS version and dialect-specific quirks
// are not scored, so an exact vendor and port match scores 70, which is
// exactly confidenceThreshold.
type Detector struct {
	phase          Phase
	startTime      time.Time
	samplesSeen    int
	locked         Dialect
	hasLocked      bool
	confidence     float64 // 0-100, the score that produced the current lock
	scores         scoreBoard
	interopMode    bool
	switchCount    int
	lastSwitch     time.Time
	spdpMcastPort  uint16
	sedpUnicastPort uint16
	now            func() time.Time
}

func NewDetector(spdpMulticastPort, sedpUnicastPort uint16) *Detector {
	return &Detector{
		phase:           Probe,
		startTime:       time.Now(),
		spdpMcastPort:   spdpMulticastPort,
		sedpUnicastPort: sedpUnicastPort,
		now:             time.Now,
	}
}

func (d *Detector) IsInteropMode() bool { return d.interopMode }

// EnableInteropMode is a one-way latch: once a non-native vendor is
// observed, native mode is never re-entered (spec.md §4.2 flap
// avoidance).
func (d *Detector) EnableInteropMode() {
	d.interopMode = true
}

func (d *Detector) Phase() Phase { return d.phase }

func (d *Detector) LockedDialect() (Dialect, bool) { return d.locked, d.hasLocked }

// Confidence returns the 0-100 score behind the current state: the score
// that produced the lock once locked, or the currently leading dialect's
// running average beforehand (0 with no samples yet).
func (d *Detector) Confidence() float64 {
	if d.hasLocked {
		return d.confidence
	}
	if d.samplesSeen == 0 {
		return 0
	}
	avgFast, avgRti, avgOpen, avgCyclone := d.averages()
	return highestScore(avgFast, avgRti, avgOpen, avgCyclone) * 100
}

// ProcessSample scores one discovery packet's observed vendor id and
// source port, returning a locked Dialect once the PROBE phase reaches a
// decision — either a confident score after minSamples, or the
// probeTimeout fallback (highest score). HDDS-native peers short-circuit
// to a native lock without scoring. A participant that never receives any
// discovery traffic at all never calls this method, so it alone cannot
// reach the zero-sample probeTimeout fallback — CheckTimeout covers that.
func (d *Detector) ProcessSample(vendorID wire.VendorID, srcPort uint16) (Dialect, bool) {
	if d.phase != Probe {
		return 0, false
	}

	if vendorID == NativeVendorID {
		if !d.interopMode {
			return d.lock(Native, 100)
		}
		return 0, false
	}

	d.EnableInteropMode()
	d.samplesSeen++

	vFast := scoreVendorID(vendorID, FastDdsVendorID) * 0.4
	vRti := scoreVendorID(vendorID, RtiVendorID) * 0.4
	vOpen := scoreVendorID(vendorID, OpenDdsVendorID) * 0.4
	vCyclone := scoreVendorID(vendorID, CycloneDdsVendorID) * 0.4

	pFast := scorePort(srcPort, d.sedpUnicastPort) * 0.3
	pRest := scorePort(srcPort, d.spdpMcastPort) * 0.3

	d.scores.fastDds += vFast + pFast
	d.scores.rti += vRti + pRest
	d.scores.openDds += vOpen + pRest
	d.scores.cyclone += vCyclone + pRest

	avgFast, avgRti, avgOpen, avgCyclone := d.averages()

	if d.samplesSeen >= minSamples {
		switch {
		case avgFast*100 >= confidenceThreshold:
			return d.lock(FastDds, avgFast*100)
		case avgRti*100 >= confidenceThreshold:
			return d.lock(Rti, avgRti*100)
		case avgOpen*100 >= confidenceThreshold:
			return d.lock(OpenDds, avgOpen*100)
		case avgCyclone*100 >= confidenceThreshold:
			return d.lock(CycloneDds, avgCyclone*100)
		}
	}

	if d.now().Sub(d.startTime) >= probeTimeout {
		// samplesSeen is always >= 1 here (it was just incremented above),
		// so the zero-sample fallback belongs to CheckTimeout, not here.
		dialect := highestScoring(avgFast, avgRti, avgOpen, avgCyclone)
		return d.lock(dialect, highestScore(avgFast, avgRti, avgOpen, avgCyclone)*100)
	}

	return 0, false
}

// CheckTimeout locks the detector to its probeTimeout fallback — Hybrid
// if no sample has ever been scored, otherwise the highest-scoring
// dialect so far — independent of ProcessSample. A participant on a
// segment with no discovery traffic at all never calls ProcessSample, so
// without this the PROBE phase would never resolve (spec.md §4.2, §8
// scenario 5). A driver should call this periodically; it is a no-op
// once locked or before probeTimeout has elapsed.
func (d *Detector) CheckTimeout() (Dialect, bool) {
	if d.phase != Probe {
		return 0, false
	}
	if d.now().Sub(d.startTime) < probeTimeout {
		return 0, false
	}
	if d.samplesSeen == 0 {
		return d.lock(Hybrid, 100)
	}
	avgFast, avgRti, avgOpen, avgCyclone := d.averages()
	dialect := highestScoring(avgFast, avgRti, avgOpen, avgCyclone)
	return d.lock(dialect, highestScore(avgFast, avgRti, avgOpen, avgCyclone)*100)
}

// averages returns each dialect's running score normalized by sample
// count, rounded to 1e-9 so accumulated float error cannot pull an exact
// score just below confidenceThreshold. Only valid for samplesSeen > 0.
func (d *Detector) averages() (fast, rti, open, cyclone float64) {
	n := float64(d.samplesSeen)
	avg := func(total float64) float64 { return math.Round(total/n*1e9) / 1e9 }
	return avg(d.scores.fastDds), avg(d.scores.rti), avg(d.scores.openDds), avg(d.scores.cyclone)
}

func highestScoring(fast, rti, open, cyclone float64) Dialect {
	switch {
	case cyclone >= fast && cyclone >= rti && cyclone >= open:
		return CycloneDds
	case open >= fast && open >= rti:
		return OpenDds
	case fast >= rti:
		return FastDds
	default:
		return Rti
	}
}

// highestScore returns the leading dialect's raw 0-1 score, paired with
// highestScoring's dialect pick.
func highestScore(fast, rti, open, cyclone float64) float64 {
	max := fast
	if rti > max {
		max = rti
	}
	if open > max {
		max = open
	}
	if cyclone > max {
		max = cyclone
	}
	return max
}

func (d *Detector) lock(dialect Dialect, confidence float64) (Dialect, bool) {
	d.phase = Locked
	d.locked = dialect
	d.hasLocked = true
	d.confidence = confidence
	return dialect, true
}

// MonitorTick runs a periodic re-check once in MONITOR phase. Switches
// are clamped by a cooldown after maxSwitchesBeforeCooldown consecutive
// switches within flappingCooldown, to avoid thrashing on noisy
// topologies.
func (d *Detector) MonitorTick(observed Dialect) *Change {
	if d.phase != Monitor {
		return nil
	}
	if !d.hasLocked || observed == d.locked {
		return nil
	}
	if d.switchCount >= maxSwitchesBeforeCooldown && d.now().Sub(d.lastSwitch) < flappingCooldown {
		return nil
	}
	prev := d.locked
	d.locked = observed
	d.switchCount++
	d.lastSwitch = d.now()
	return &Change{From: prev, To: observed}
}

// EnterMonitor transitions LOCKED -> MONITOR (spec.md §4.2), after which
// MonitorTick accepts re-check results. It does not schedule re-checks
// itself; MonitorTick runs only when a caller invokes it.
func (d *Detector) EnterMonitor() {
	if d.phase == Locked {
		d.phase = Monitor
	}
}

func scoreVendorID(observed, target wire.VendorID) float64 {
	if observed == target {
		return 1.0
	}
	return 0.0
}

// scorePort gives full credit for an exact match and partial credit for
// proximity to the reference port, tapering to zero beyond 16 ports —
// real vendor stacks pick a port near, but not always equal to, the
// domain-derived reference port.
func scorePort(observed, reference uint16) float64 {
	if observed == reference {
		return 1.0
	}
	var diff int
	if observed > reference {
		diff = int(observed - reference)
	} else {
		diff = int(reference - observed)
	}
	if diff >= 16 {
		return 0.0
	}
	return 1.0 - float64(diff)/16.0
}
