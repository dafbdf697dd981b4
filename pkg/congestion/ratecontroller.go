package congestion

import (
	"sync"
	"time"
)

// RateControllerConfig bundles the AIMD tuning parameters of spec.md §4.5.
type RateControllerConfig struct {
	Alpha          float64 // multiplicative decrease factor, default 0.5
	Beta           float64 // additive increase fraction, default ~0.10
	FloorBps       float64
	CeilingBps     float64
	CooldownMs     time.Duration
	StableWindowMs time.Duration
}

func DefaultRateControllerConfig() RateControllerConfig {
	return RateControllerConfig{
		Alpha:          0.5,
		Beta:           0.10,
		FloorBps:       8_000,
		CeilingBps:     1_000_000_000,
		CooldownMs:     200 * time.Millisecond,
		StableWindowMs: time.Second,
	}
}

// RateController adjusts a shared rate via AIMD in response to congestion
// signals (EAGAIN or NACK → multiplicative decrease; sustained quiet →
// additive increase), per spec.md §4.5.
type RateController struct {
	mu             sync.Mutex
	cfg            RateControllerConfig
	rateBps        float64
	lastDecrease   time.Time
	lastIncreaseChk time.Time
	now            func() time.Time
}

func NewRateController(cfg RateControllerConfig, initialRateBps float64) *RateController {
	now := time.Now()
	return &RateController{
		cfg:            cfg,
		rateBps:        initialRateBps,
		lastIncreaseChk: now,
		now:            time.Now,
	}
}

func (r *RateController) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rateBps
}

// OnCongestionSignal applies multiplicative decrease, subject to the
// cooldown — repeated signals within CooldownMs of the last decrease are
// absorbed without further decreasing the rate.
func (r *RateController) OnCongestionSignal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if !r.lastDecrease.IsZero() && now.Sub(r.lastDecrease) < r.cfg.CooldownMs {
		return
	}
	r.rateBps *= r.cfg.Alpha
	if r.rateBps < r.cfg.FloorBps {
		r.rateBps = r.cfg.FloorBps
	}
	r.lastDecrease = now
	r.lastIncreaseChk = now
}

// MaybeIncrease performs the additive-increase step if StableWindowMs has
// elapsed since the last decrease or increase check without an
// intervening congestion signal. Callers invoke this periodically; it is
// a no-op until the stable window has elapsed.
func (r *RateController) MaybeIncrease() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastIncreaseChk) < r.cfg.StableWindowMs {
		return
	}
	r.rateBps += r.rateBps * r.cfg.Beta
	if r.rateBps > r.cfg.CeilingBps {
		r.rateBps = r.cfg.CeilingBps
	}
	r.lastIncreaseChk = now
}
