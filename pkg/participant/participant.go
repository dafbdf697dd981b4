package participant

import (
	"context"
	"sync"
	"time"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/dialect"
	"github.com/hdds-io/hdds/pkg/discovery"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/hdds-io/hdds/pkg/logging"
	"github.com/hdds-io/hdds/pkg/metrics"
	"github.com/hdds-io/hdds/pkg/qos"
	"github.com/hdds-io/hdds/pkg/reliability"
	"github.com/hdds-io/hdds/pkg/transport"
)

var log = logging.For("participant")

const (
	spdpAnnouncePeriod   = 2 * time.Second
	reliabilityTickPeriod = 20 * time.Millisecond
	nackCoalesceDelay    = 50 * time.Millisecond
	nackWindow           = 100 * time.Millisecond
)

// readerReliability is the participant-side state a reliable reader needs
// beyond what endpoint.Reader itself tracks: the incoming HEARTBEAT/GAP
// machinery of spec.md §4.4, keyed by the local reader's GUID since
// endpoint.Reader has no room reserved for it (it only knows its own
// ring and content filter, not its remote writer's protocol state).
type readerReliability struct {
	gaps      *reliability.GapTracker
	hbRx      *reliability.HeartbeatRx
	scheduler *reliability.NackScheduler
	coalescer *reliability.NackCoalescer
}

// Participant is one domain participant: identity, transport, discovery
// state, congestion control, and the registries of local writers/readers
// the three background drivers operate on (spec.md §4.8).
type Participant struct {
	mu sync.RWMutex

	name        string
	domain      guid.DomainID
	id          guid.ParticipantID
	prefix      guid.Prefix
	entityIDs   guid.EntityIDAllocator
	qosDefaults qos.Profile

	transport transport.Transport
	seeds     discovery.SeedSource

	participants *discovery.ParticipantTable
	endpoints    *discovery.EndpointTable
	matches      *discovery.MatchSet

	dialects *dialect.Registry
	detector *dialect.Detector

	rate   *congestion.RateController
	budget *congestion.BudgetAllocator
	rtt    *congestion.RttEstimator
	scorer *congestion.Scorer

	repairQueues      map[guid.GUID]*congestion.RepairQueue
	lastHeartbeatSent map[guid.GUID]time.Time
	nackCount         int

	security SecurityPlugin
	metrics  *metrics.Reporter // nil unless WithMetrics is used

	writers     map[guid.GUID]WriterHandle
	readers     map[guid.GUID]ReaderHandle
	readerState map[guid.GUID]*readerReliability

	localPublications  map[guid.GUID]discovery.EndpointRecord
	localSubscriptions map[guid.GUID]discovery.EndpointRecord

	spdpSeq    *reliability.SequenceGenerator
	sedpPubSeq *reliability.SequenceGenerator
	sedpSubSeq *reliability.SequenceGenerator

	leaseDuration   time.Duration
	heartbeatPeriod time.Duration

	enableStats   bool
	statsInterval time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Name returns the participant's human-readable name, set via
// participant.WithName.
func (p *Participant) Name() string { return p.name }

// GUID returns the participant's own entity GUID.
func (p *Participant) GUID() guid.GUID {
	return guid.GUID{Prefix: p.prefix, Entity: guid.EntityID{0, 0, 0, guid.EntityKindParticipant}}
}

// QosDefaults returns the profile new writers/readers should start from
// absent an explicit override (spec.md §6's qos_defaults option).
func (p *Participant) QosDefaults() qos.Profile { return p.qosDefaults }

// NextEntityID allocates a fresh entity id of the given kind for a new
// local writer/reader.
func (p *Participant) NextEntityID(kind byte) guid.GUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return guid.GUID{Prefix: p.prefix, Entity: p.entityIDs.Next(kind)}
}

// RegisterWriter adds a writer to the registry and the local-publication
// advertisement set the SEDP driver periodically sends, and — if the
// writer is reliable — wires it into the reliability driver's HEARTBEAT
// ticking via Heartbeat() (nil for BestEffort writers, which the driver
// skips).
func (p *Participant) RegisterWriter(w WriterHandle, rec discovery.EndpointRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writers[w.ID()] = w
	p.localPublications[w.ID()] = rec
}

// UnregisterWriter removes a writer and revokes any matches referencing
// it (spec.md §4.6: endpoint removal revokes matches).
func (p *Participant) UnregisterWriter(id guid.GUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.writers, id)
	delete(p.localPublications, id)
	delete(p.repairQueues, id)
	delete(p.lastHeartbeatSent, id)
	for _, m := range p.matches.For(id) {
		p.matches.Revoke(id, m.RemoteGUID)
	}
}

// RegisterReader adds a reader to the registry and local-subscription set.
// reliable readers additionally get NACK/GAP tracking state.
func (p *Participant) RegisterReader(r ReaderHandle, rec discovery.EndpointRecord, reliable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readers[r.ID()] = r
	p.localSubscriptions[r.ID()] = rec
	if reliable {
		p.readerState[r.ID()] = &readerReliability{
			gaps:      reliability.NewGapTracker(),
			hbRx:      reliability.NewHeartbeatRx(),
			scheduler: reliability.NewNackScheduler(nackWindow),
			coalescer: reliability.NewNackCoalescer(nackCoalesceDelay),
		}
	}
}

func (p *Participant) UnregisterReader(id guid.GUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.readers, id)
	delete(p.localSubscriptions, id)
	delete(p.readerState, id)
	for _, m := range p.matches.For(id) {
		p.matches.Revoke(id, m.RemoteGUID)
	}
}

// Matches returns the current confirmed matches for a local endpoint,
// used by callers (and CreateWriter/CreateReader's callers) to find where
// to address retransmissions or check liveliness.
func (p *Participant) Matches(localGUID guid.GUID) []discovery.Match {
	return p.matches.For(localGUID)
}

// NewWriterPacer builds a pacer seeded from the participant's current
// shared send rate (spec.md §4.5): every writer gets its own priority
// queues and token bucket, but the bucket's rate follows the one
// RateController the reliability driver adjusts under congestion.
func (p *Participant) NewWriterPacer() *congestion.WriterPacer {
	bucket := congestion.NewTokenBucket(p.rate.Rate(), p.rate.Rate())
	return congestion.NewWriterPacer(bucket, defaultP1Capacity, defaultP0ReserveFrac)
}

// Start opens the transport and launches the discovery, reliability, and
// (if enabled) stats drivers as independent goroutines, grounded on the
// teacher's Start()/updateLoop()/sessionCleanupLoop() shape but using
// context cancellation in place of a bare running bool (spec.md §4.8).
func (p *Participant) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return herrors.New(herrors.KindInvalidParameter, "participant", "already started")
	}
	if err := p.transport.Init(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.spdpSeq = reliability.NewSequenceGenerator()
	p.sedpPubSeq = reliability.NewSequenceGenerator()
	p.sedpSubSeq = reliability.NewSequenceGenerator()
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(3)
	go p.discoveryDriver(runCtx)
	go p.reliabilityDriver(runCtx)
	go p.receiveLoop(runCtx)

	if p.enableStats {
		p.wg.Add(1)
		go p.statsDriver(runCtx)
	}

	log.WithField("domain", p.domain).WithField("participant", p.id).Info("participant started")
	return nil
}

// Stop cancels the background drivers, waits for them to exit, and closes
// the transport.
func (p *Participant) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	return p.transport.Shutdown()
}

func (p *Participant) discoveryDriver(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(spdpAnnouncePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sendSpdpAnnouncement(ctx)
			p.advertiseLocalEndpoints(ctx)
			p.expireParticipants()
		}
	}
}

func (p *Participant) reliabilityDriver(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(reliabilityTickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Runs here rather than discoveryDriver's slower ticker so the
			// PROBE timeout fires close to its deadline even on a segment
			// with no discovery traffic to drive ProcessSample at all.
			p.detector.CheckTimeout()
			p.rate.MaybeIncrease()
			p.tickWriterSends()
			p.tickWriterHeartbeats()
			p.tickReaderNacks()
			p.tickCongestionScore()
		}
	}
}

// tickCongestionScore folds this interval's NACK volume into the shared
// Scorer and, once it crosses into Congested, drives an AIMD decrease —
// the same EAGAIN/NACK/queue-occupancy aggregation spec.md §4.5
// describes, with EAGAIN and queue occupancy currently left at zero
// since neither Transport nor WriterPacer surfaces them yet.
func (p *Participant) tickCongestionScore() {
	p.mu.Lock()
	nacks := p.nackCount
	p.nackCount = 0
	p.mu.Unlock()

	if action := p.scorer.Update(0, nacks, 0); action == congestion.Congested {
		p.rate.OnCongestionSignal()
	}
}

func (p *Participant) statsDriver(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.RLock()
			writers, readers, matches := len(p.writers), len(p.readers), p.matches.Len()
			p.mu.RUnlock()
			remotes := p.participants.Snapshot()
			rate := p.rate.Rate()
			log.WithField("writers", writers).WithField("readers", readers).
				WithField("matches", matches).WithField("remote_participants", len(remotes)).
				WithField("rate_bps", rate).
				Info("participant stats")
			if p.metrics != nil {
				p.metrics.LocalWriters.Set(float64(writers))
				p.metrics.LocalReaders.Set(float64(readers))
				p.metrics.Matches.Set(float64(matches))
				p.metrics.RemoteParticipants.Set(float64(len(remotes)))
				p.metrics.SendRateBps.Set(rate)
				p.metrics.RttSeconds.Set(p.rtt.SRTT().Seconds())
			}
		}
	}
}

// expireParticipants removes any remote participant whose SPDP lease has
// elapsed, along with its SEDP endpoints and confirmed matches
// (spec.md §4.6).
func (p *Participant) expireParticipants() {
	expired := p.participants.Expired()
	for _, id := range expired {
		removed := p.endpoints.RemoveParticipant(id)
		p.matches.RevokeEndpoints(removed)
		log.WithField("remote", id.String()).Info("participant lease expired")
	}
}
