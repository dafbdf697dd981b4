package participant

import (
	"net"
	"time"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/dialect"
	"github.com/hdds-io/hdds/pkg/discovery"
	"github.com/hdds-io/hdds/pkg/envconfig"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/hdds-io/hdds/pkg/metrics"
	"github.com/hdds-io/hdds/pkg/portmap"
	"github.com/hdds-io/hdds/pkg/qos"
	"github.com/hdds-io/hdds/pkg/transport"
)

// TransportKind selects which Transport plug-in the builder constructs
// (spec.md §6).
type TransportKind int

const (
	IntraProcess TransportKind = iota
	UdpMulticast
	UdpUnicast
	SharedMemory
	Composite
)

// DiscoveryKind selects how a participant finds its initial peers
// (spec.md §6).
type DiscoveryKind int

const (
	RtpsMulticast DiscoveryKind = iota
	SeedList
	K8sDns
)

const (
	defaultLeaseDuration   = 10 * time.Second
	defaultHeartbeatPeriod = 200 * time.Millisecond
	defaultSpdpMcastAddr   = "239.255.0.1" // OMG RTPS default SPDP group
	defaultShmCapacity     = 4096
	defaultP1Capacity      = 64
	defaultP0ReserveFrac   = 0.10
	defaultRepairBudgetRatio = 0.25
	defaultRepairMaxRetries  = 5
	defaultRepairBaseBackoff = 50 * time.Millisecond
	defaultScorerDecay       = 0.7
)

// Builder constructs a Participant via functional options, following the
// WithXxx(Option) pattern other_examples' pub_sub.go uses for its
// Subscribe options (spec.md §6 enumerates exactly this option set:
// name, domain_id, participant_id, transport, qos_defaults, discovery,
// security, dscp_config, enable_stats, stats_interval_secs).
type Builder struct {
	name          string
	domainID      uint32
	participantID uint32
	qosDefaults   qos.Profile

	transportKind  TransportKind
	compositeKinds []TransportKind
	unicastSeeds   []guid.Locator
	iface          *net.Interface
	mcastGroup     net.IP
	dscp           int
	txTime         bool

	discoveryKind DiscoveryKind
	seedListLocs  []guid.Locator
	k8sDns        *discovery.K8sDns

	security SecurityPlugin
	metrics  *metrics.Reporter

	enableStats   bool
	statsInterval time.Duration

	leaseDuration   time.Duration
	heartbeatPeriod time.Duration
}

// Option mutates a Builder mid-construction.
type Option func(*Builder)

// NewBuilder returns a Builder seeded with spec.md §3's OMG-default QoS,
// best-effort-friendly RTPS multicast discovery, and an in-process
// shared-memory transport — the zero-configuration path.
func NewBuilder() *Builder {
	return &Builder{
		name:            "hdds-participant",
		qosDefaults:     qos.DefaultProfile(),
		transportKind:   IntraProcess,
		discoveryKind:   RtpsMulticast,
		leaseDuration:   defaultLeaseDuration,
		heartbeatPeriod: defaultHeartbeatPeriod,
		statsInterval:   time.Second,
	}
}

func WithName(name string) Option { return func(b *Builder) { b.name = name } }

func WithDomainID(id uint32) Option { return func(b *Builder) { b.domainID = id } }

func WithParticipantID(id uint32) Option { return func(b *Builder) { b.participantID = id } }

func WithQosDefaults(p qos.Profile) Option { return func(b *Builder) { b.qosDefaults = p } }

func WithLeaseDuration(d time.Duration) Option { return func(b *Builder) { b.leaseDuration = d } }

func WithHeartbeatPeriod(d time.Duration) Option {
	return func(b *Builder) { b.heartbeatPeriod = d }
}

// WithTransport selects the transport plug-in kind. Composite requires
// WithCompositeTransports, and Build rejects it otherwise; UdpUnicast is
// not checked for seed locators.
func WithTransport(kind TransportKind) Option {
	return func(b *Builder) { b.transportKind = kind }
}

func WithCompositeTransports(kinds ...TransportKind) Option {
	return func(b *Builder) { b.compositeKinds = kinds }
}

// WithUnicastSeeds records peer locators that serve as the SeedList
// discovery source when WithDiscovery(SeedList) is set and WithSeedList
// supplied none. The UDP transport itself does not read them.
func WithUnicastSeeds(locators ...guid.Locator) Option {
	return func(b *Builder) { b.unicastSeeds = locators }
}

func WithInterface(iface *net.Interface) Option { return func(b *Builder) { b.iface = iface } }

func WithMulticastGroup(ip net.IP) Option { return func(b *Builder) { b.mcastGroup = ip } }

// WithDSCPConfig sets the IP_TOS marking and enables SO_TXTIME pacing on
// the UDP transport's default traffic profile (spec.md §4.3).
func WithDSCPConfig(dscp int, txTime bool) Option {
	return func(b *Builder) { b.dscp, b.txTime = dscp, txTime }
}

func WithDiscovery(kind DiscoveryKind) Option { return func(b *Builder) { b.discoveryKind = kind } }

func WithSeedList(locators ...guid.Locator) Option {
	return func(b *Builder) {
		b.discoveryKind = SeedList
		b.seedListLocs = locators
	}
}

// WithK8sDnsSource installs a pre-built K8sDns seed source directly,
// since discovery.NewK8sDns needs a kubernetes.Interface the builder
// itself has no business constructing.
func WithK8sDnsSource(src *discovery.K8sDns) Option {
	return func(b *Builder) {
		b.discoveryKind = K8sDns
		b.k8sDns = src
	}
}

// WithSecurity installs a security plug-in — typically a *security.Session
// produced by running a security.Authenticator's handshake to completion
// (EnableAuth(certs) in spec.md §6's builder option). Once installed, every
// outbound DATA payload is sealed with it and every inbound one opened
// with it; a sample that fails to open is dropped rather than delivered.
// Omitting this option leaves the participant unauthenticated (spec.md
// §6's Security: None default).
func WithSecurity(plugin SecurityPlugin) Option {
	return func(b *Builder) { b.security = plugin }
}

// WithBootstrap applies the DomainID and DSCP fields envconfig.Load
// recovered from the process environment (DSCP as its user-data value),
// overriding only the fields it actually found set (a nil Bootstrap
// field leaves the builder's existing default or any option applied
// before it untouched). The K8s and pod fields are not applied. Apply it
// first among options if callers should be able to override individual
// env values.
func WithBootstrap(b envconfig.Bootstrap) Option {
	return func(bl *Builder) {
		if b.DomainID != nil {
			bl.domainID = *b.DomainID
		}
		if b.DSCP != nil {
			bl.dscp = b.DSCP.UserData
		}
	}
}

func WithStats(interval time.Duration) Option {
	return func(b *Builder) {
		b.enableStats = true
		b.statsInterval = interval
	}
}

// WithMetrics installs a metrics.Reporter the stats driver updates on
// every tick in addition to its structured log line. Construct one
// Reporter per participant (metrics.NewReporter) so concurrently running
// participants in the same process don't collide on metric names.
func WithMetrics(r *metrics.Reporter) Option { return func(b *Builder) { b.metrics = r } }

// Build validates the accumulated options and assembles a Participant.
// It performs no I/O — Start opens sockets and launches the drivers.
func Build(opts ...Option) (*Participant, error) {
	b := NewBuilder()
	for _, opt := range opts {
		opt(b)
	}

	if err := portmap.Validate(b.domainID, b.participantID); err != nil {
		return nil, err
	}

	t, err := b.buildTransport()
	if err != nil {
		return nil, err
	}

	seeds, err := b.buildSeedSource()
	if err != nil {
		return nil, err
	}

	p := &Participant{
		name:            b.name,
		domain:          guid.DomainID(b.domainID),
		id:              guid.ParticipantID(b.participantID),
		prefix:          guid.NewPrefix(),
		qosDefaults:     b.qosDefaults,
		transport:       t,
		seeds:           seeds,
		participants:    discovery.NewParticipantTable(),
		endpoints:       discovery.NewEndpointTable(),
		matches:         discovery.NewMatchSet(),
		dialects:        dialect.NewRegistry(),
		detector:        dialect.NewDetector(uint16(portmap.SPDPMulticastPort(b.domainID)), uint16(portmap.MetatrafficUnicastPort(b.domainID, b.participantID))),
		rate:            congestion.NewRateController(congestion.DefaultRateControllerConfig(), 1_000_000),
		budget:          congestion.NewBudgetAllocator(defaultP0ReserveFrac),
		rtt:             congestion.NewRttEstimator(),
		scorer:          congestion.NewScorer(defaultScorerDecay),
		security:        b.security,
		metrics:         b.metrics,
		writers:         make(map[guid.GUID]WriterHandle),
		readers:         make(map[guid.GUID]ReaderHandle),
		readerState:     make(map[guid.GUID]*readerReliability),
		localPublications:  make(map[guid.GUID]discovery.EndpointRecord),
		localSubscriptions: make(map[guid.GUID]discovery.EndpointRecord),
		repairQueues:      make(map[guid.GUID]*congestion.RepairQueue),
		lastHeartbeatSent: make(map[guid.GUID]time.Time),
		leaseDuration:   b.leaseDuration,
		heartbeatPeriod: b.heartbeatPeriod,
		enableStats:     b.enableStats,
		statsInterval:   b.statsInterval,
	}
	return p, nil
}

func (b *Builder) buildTransport() (transport.Transport, error) {
	switch b.transportKind {
	case IntraProcess, SharedMemory:
		return transport.NewSharedMemory(b.domainID, hostID(), defaultShmCapacity), nil
	case UdpMulticast, UdpUnicast:
		return b.buildUDP(), nil
	case Composite:
		if len(b.compositeKinds) == 0 {
			return nil, herrors.New(herrors.KindConfig, "participant.builder", "composite transport requires WithCompositeTransports")
		}
		children := make([]transport.Transport, 0, len(b.compositeKinds))
		for _, kind := range b.compositeKinds {
			child := *b
			child.transportKind = kind
			t, err := child.buildTransport()
			if err != nil {
				return nil, err
			}
			children = append(children, t)
		}
		return transport.NewComposite(children...), nil
	default:
		return nil, herrors.New(herrors.KindConfig, "participant.builder", "unknown transport kind")
	}
}

func (b *Builder) buildUDP() transport.Transport {
	group := b.mcastGroup
	if group == nil {
		group = net.ParseIP(defaultSpdpMcastAddr)
	}
	profile := transport.TrafficProfile{Name: "default", DSCP: b.dscp, TXTime: b.txTime}
	port := int(portmap.SPDPMulticastPort(b.domainID))
	if b.transportKind == UdpUnicast {
		port = int(portmap.UserDataUnicastPort(b.domainID, b.participantID))
	}
	return transport.NewUDP(b.domainID, group, port, b.iface, []transport.TrafficProfile{profile})
}

func (b *Builder) buildSeedSource() (discovery.SeedSource, error) {
	switch b.discoveryKind {
	case RtpsMulticast:
		group := b.mcastGroup
		if group == nil {
			group = net.ParseIP(defaultSpdpMcastAddr)
		}
		ip4 := group.To4()
		loc := guid.NewUDPv4Locator(ip4[0], ip4[1], ip4[2], ip4[3], portmap.SPDPMulticastPort(b.domainID))
		return discovery.RtpsMulticastSeedSource{Locator: loc}, nil
	case SeedList:
		locs := b.seedListLocs
		if len(locs) == 0 {
			locs = b.unicastSeeds
		}
		return discovery.SeedListSource{Locators: locs}, nil
	case K8sDns:
		if b.k8sDns == nil {
			return nil, herrors.New(herrors.KindConfig, "participant.builder", "K8sDns discovery requires WithK8sDnsSource")
		}
		return b.k8sDns, nil
	default:
		return nil, herrors.New(herrors.KindConfig, "participant.builder", "unknown discovery kind")
	}
}
