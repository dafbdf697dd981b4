package participant

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/discovery"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/metrics"
	"github.com/hdds-io/hdds/pkg/security"
	"github.com/hdds-io/hdds/pkg/wire"
)

func newTestParticipant(t *testing.T, opts ...Option) (*Participant, *fakeTransport) {
	t.Helper()
	p, err := Build(append([]Option{WithDomainID(0), WithParticipantID(0), WithStats(10 * time.Millisecond)}, opts...)...)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ft := newFakeTransport()
	p.transport = ft
	return p, ft
}

func TestParticipantStartStopLifecycle(t *testing.T) {
	p, _ := newTestParticipant(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("expected error starting an already-running participant")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stop must be idempotent.
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestParticipantObservesInboundSpdpAnnouncement(t *testing.T) {
	p, ft := newTestParticipant(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	remoteGUID := guid.GUID{Prefix: guid.Prefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}, Entity: guid.EntityID{0, 0, 0, guid.EntityKindParticipant}}
	ann := discovery.ParticipantAnnouncement{
		ProtocolMajor:   2,
		ProtocolMinor:   3,
		ParticipantGUID: remoteGUID,
		DomainID:        0,
		LeaseDuration:   10 * time.Second,
	}
	payload := discovery.EncodeParticipantAnnouncement(ann)
	msg := p.buildMessage(guid.SPDPBuiltinParticipantWriter, guid.SPDPBuiltinParticipantReader, 1, payload)
	ft.deliver(msg)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := p.participants.Get(remoteGUID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("remote participant was never observed")
}

func TestSedpTrafficRefreshesParticipantLease(t *testing.T) {
	p, ft := newTestParticipant(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	remoteGUID := guid.GUID{Prefix: guid.Prefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}, Entity: guid.EntityID{0, 0, 0, guid.EntityKindParticipant}}
	ann := discovery.ParticipantAnnouncement{
		ProtocolMajor:   2,
		ProtocolMinor:   3,
		ParticipantGUID: remoteGUID,
		DomainID:        0,
		LeaseDuration:   time.Minute,
	}
	ft.deliver(p.buildMessage(guid.SPDPBuiltinParticipantWriter, guid.SPDPBuiltinParticipantReader, 1, discovery.EncodeParticipantAnnouncement(ann)))

	deadline := time.Now().Add(time.Second)
	var firstRenewed time.Time
	for time.Now().Before(deadline) {
		if rp, ok := p.participants.Get(remoteGUID); ok {
			firstRenewed = rp.LastRenewed
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if firstRenewed.IsZero() {
		t.Fatal("remote participant was never observed via SPDP")
	}
	time.Sleep(10 * time.Millisecond)

	rec := discovery.EndpointRecord{
		EndpointGUID:    guid.GUID{Prefix: remoteGUID.Prefix, Entity: guid.EntityID{0, 0, 1, guid.EntityKindWriterWithKey}},
		ParticipantGUID: remoteGUID,
		Kind:            discovery.Publication,
		TopicName:       "temperature",
		TypeName:        "reading",
		Disposition:     discovery.Alive,
	}
	ft.deliver(p.buildMessage(guid.SEDPBuiltinPublicationsWriter, guid.SEDPBuiltinPublicationsReader, 1, discovery.EncodeEndpointRecord(rec)))

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rp, ok := p.participants.Get(remoteGUID); ok && rp.LastRenewed.After(firstRenewed) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("SEDP traffic never refreshed the remote participant's lease")
}

func TestUnregisterWriterRevokesMatches(t *testing.T) {
	p, _ := newTestParticipant(t)
	writerID := p.NextEntityID(guid.EntityKindWriterWithKey)
	readerID := p.NextEntityID(guid.EntityKindReaderWithKey)

	rec := discovery.EndpointRecord{EndpointGUID: readerID, Kind: discovery.Subscription, Disposition: discovery.Alive, Qos: p.QosDefaults()}
	p.matches.TryMatch(writerID, p.QosDefaults(), true, rec)
	if len(p.Matches(writerID)) != 1 {
		t.Fatalf("expected one match before unregister, got %d", len(p.Matches(writerID)))
	}
	p.UnregisterWriter(writerID)
	if len(p.Matches(writerID)) != 0 {
		t.Fatalf("expected matches revoked after unregister, got %d", len(p.Matches(writerID)))
	}
}

func TestHandleAckNackRetransmitsCachedSampleAndScoresCongestion(t *testing.T) {
	p, ft := newTestParticipant(t)

	w, err := CreateWriter[reading](p, "temperature", "reading", readingDescriptor{}, p.QosDefaults(), congestion.P1)
	if err != nil {
		t.Fatalf("CreateWriter failed: %v", err)
	}
	seq, err := w.WriteUnkeyed(reading{Sensor: "a", Value: 1})
	if err != nil {
		t.Fatalf("WriteUnkeyed failed: %v", err)
	}

	remotePrefix := guid.Prefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	remoteReader := guid.GUID{Prefix: remotePrefix, Entity: guid.EntityID{0, 0, 1, guid.EntityKindReaderWithKey}}
	rec := discovery.EndpointRecord{
		EndpointGUID: remoteReader,
		Kind:         discovery.Subscription,
		Disposition:  discovery.Alive,
		Qos:          p.QosDefaults(),
		Locators:     []guid.Locator{guid.NewUDPv4Locator(10, 0, 0, 1, 7500)},
	}
	p.matches.TryMatch(w.ID(), p.QosDefaults(), true, rec)

	var writerEntity, readerEntity [4]byte
	copy(writerEntity[:], w.ID().Entity[:])
	copy(readerEntity[:], remoteReader.Entity[:])
	an := wire.AckNackSubmessage{
		ReaderID: readerEntity,
		WriterID: writerEntity,
		Base:     wire.SequenceNumber(seq),
		Bitmap:   seqsToBitmap([]uint64{seq}),
		Count:    1,
	}

	p.handleAckNack(remotePrefix, an)

	if got := ft.sentCount(); got != 1 {
		t.Fatalf("expected one retransmitted DATA message, got %d", got)
	}

	p.mu.RLock()
	nacks := p.nackCount
	p.mu.RUnlock()
	if nacks != 1 {
		t.Fatalf("expected nackCount to record the ACKNACK, got %d", nacks)
	}
	for i := 0; i < 20; i++ {
		p.tickCongestionScore()
	}
	p.mu.RLock()
	nacksAfter := p.nackCount
	p.mu.RUnlock()
	if nacksAfter != 0 {
		t.Fatalf("expected tickCongestionScore to reset nackCount, got %d", nacksAfter)
	}
}

func TestWriteDrainsToWireWithoutAckNack(t *testing.T) {
	p, ft := newTestParticipant(t)

	w, err := CreateWriter[reading](p, "temperature", "reading", readingDescriptor{}, p.QosDefaults(), congestion.P1)
	if err != nil {
		t.Fatalf("CreateWriter failed: %v", err)
	}
	remoteReader := guid.GUID{
		Prefix: guid.Prefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Entity: guid.EntityID{0, 0, 1, guid.EntityKindReaderWithKey},
	}
	rec := discovery.EndpointRecord{
		EndpointGUID: remoteReader,
		Kind:         discovery.Subscription,
		Disposition:  discovery.Alive,
		Qos:          p.QosDefaults(),
		Locators:     []guid.Locator{guid.NewUDPv4Locator(10, 0, 0, 1, 7500)},
	}
	p.matches.TryMatch(w.ID(), p.QosDefaults(), true, rec)

	if _, err := w.WriteUnkeyed(reading{Sensor: "a", Value: 1}); err != nil {
		t.Fatalf("WriteUnkeyed failed: %v", err)
	}
	if _, err := w.WriteUnkeyed(reading{Sensor: "a", Value: 2}); err != nil {
		t.Fatalf("WriteUnkeyed failed: %v", err)
	}

	p.tickWriterSends()

	if got := ft.sentCount(); got != 2 {
		t.Fatalf("expected two drained samples sent with no ACKNACK involved, got %d", got)
	}
}

func TestSecurityPluginEncryptsOutboundAndDecryptsInbound(t *testing.T) {
	sess, err := security.NewSession(make([]byte, 64), security.AesGcm)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	p, ft := newTestParticipant(t, WithSecurity(sess))

	remoteGUID := guid.GUID{Prefix: guid.Prefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}, Entity: guid.EntityID{0, 0, 0, guid.EntityKindParticipant}}
	ann := discovery.ParticipantAnnouncement{
		ProtocolMajor:   2,
		ProtocolMinor:   3,
		ParticipantGUID: remoteGUID,
		DomainID:        0,
		LeaseDuration:   10 * time.Second,
	}
	payload := discovery.EncodeParticipantAnnouncement(ann)
	msg := p.buildMessage(guid.SPDPBuiltinParticipantWriter, guid.SPDPBuiltinParticipantReader, 1, payload)

	// buildMessage must not have emitted the plaintext payload on the wire.
	var contains bool
	if idx := indexOfBytes(msg, payload); idx >= 0 {
		contains = true
	}
	if contains {
		t.Fatal("expected SPDP payload to be encrypted on the wire, found plaintext")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()
	ft.deliver(msg)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := p.participants.Get(remoteGUID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("remote participant was never observed through the security transform")
}

func TestSecurityPluginDropsTamperedPayload(t *testing.T) {
	sess, err := security.NewSession(make([]byte, 64), security.AesGcm)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	reporter := metrics.NewReporter()
	p, _ := newTestParticipant(t, WithSecurity(sess), WithMetrics(reporter))

	payload := discovery.EncodeParticipantAnnouncement(discovery.ParticipantAnnouncement{ProtocolMajor: 2, ProtocolMinor: 3})
	msg := p.buildMessage(guid.SPDPBuiltinParticipantWriter, guid.SPDPBuiltinParticipantReader, 1, payload)
	msg[len(msg)-1] ^= 0xFF

	r := wire.NewReadCursor(msg)
	hdr, err := r.MessageHeader()
	if err != nil {
		t.Fatalf("MessageHeader failed: %v", err)
	}
	subHdr, err := r.SubmessageHeader()
	if err != nil {
		t.Fatalf("SubmessageHeader failed: %v", err)
	}
	d, err := wire.DecodeData(r, subHdr)
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	p.handleData(hdr.GuidPrefix, d, guid.Locator{})

	if v := testutil.ToFloat64(reporter.SamplesDropped.WithLabelValues("security_transform_failed")); v != 1 {
		t.Fatalf("expected one dropped sample counted for a failed security transform, got %v", v)
	}
}

func indexOfBytes(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func TestStatsDriverUpdatesMetricsReporter(t *testing.T) {
	reporter := metrics.NewReporter()
	p, _ := newTestParticipant(t, WithMetrics(reporter))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v := testutil.ToFloat64(reporter.SendRateBps); v > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected stats driver to set SendRateBps via the metrics reporter")
}
