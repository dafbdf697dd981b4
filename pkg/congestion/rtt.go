package congestion

import "time"

// RttEstimator maintains an EWMA RTT and mean deviation, TCP-style, used
// to size reliability timers — never to gate rate directly (spec.md
// §4.5).
type RttEstimator struct {
	srttSmoothing float64 // default 0.125
	devSmoothing  float64 // default 0.25
	srtt          time.Duration
	rttvar        time.Duration
	initialized   bool
}

func NewRttEstimator() *RttEstimator {
	return &RttEstimator{srttSmoothing: 0.125, devSmoothing: 0.25}
}

func (e *RttEstimator) Observe(sample time.Duration) {
	if !e.initialized {
		e.srtt = sample
		e.rttvar = sample / 2
		e.initialized = true
		return
	}
	delta := sample - e.srtt
	e.srtt += time.Duration(e.srttSmoothing * float64(delta))
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	e.rttvar += time.Duration(e.devSmoothing * float64(absDelta-e.rttvar))
}

func (e *RttEstimator) SRTT() time.Duration  { return e.srtt }
func (e *RttEstimator) RTTVar() time.Duration { return e.rttvar }

// Timeout returns a retransmission timeout of srtt + 4*rttvar, the usual
// Jacobson/Karels bound.
func (e *RttEstimator) Timeout() time.Duration {
	return e.srtt + 4*e.rttvar
}
