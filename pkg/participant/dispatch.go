package participant

import (
	"context"
	"time"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/discovery"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/reliability"
	"github.com/hdds-io/hdds/pkg/wire"
)

const recvBufferSize = 65536

// receiveLoop is the teacher's listen()-loop shape (source/server/server.go):
// a blocking Recv call handed straight to a per-datagram handler, generalized
// to stop on context cancellation instead of a running bool.
func (p *Participant) receiveLoop(ctx context.Context) {
	defer p.wg.Done()
	buf := make([]byte, recvBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, src, err := p.transport.Recv(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithField("error", err).Warn("receive failed")
			continue
		}
		p.dispatchMessage(buf[:n], src)
	}
}

// dispatchMessage decodes one RTPS message and walks its submessages,
// routing DATA/HEARTBEAT/ACKNACK/GAP to the builtin SPDP/SEDP handlers or
// to a registered user writer/reader by entity id (spec.md §4.1, §4.4).
func (p *Participant) dispatchMessage(raw []byte, src guid.Locator) {
	r := wire.NewReadCursor(raw)
	hdr, err := r.MessageHeader()
	if err != nil {
		log.WithField("error", err).Debug("dropping malformed message header")
		return
	}
	p.detector.ProcessSample(hdr.Vendor, 0)

	for r.Remaining() > 0 {
		subHdr, err := r.SubmessageHeader()
		if err != nil {
			return
		}
		bodyStart := r.Offset()
		switch subHdr.ID {
		case wire.SubmsgData:
			d, err := wire.DecodeData(r, subHdr)
			if err != nil {
				log.WithField("error", err).Debug("dropping malformed DATA")
			} else {
				p.handleData(hdr.GuidPrefix, d, src)
			}
		case wire.SubmsgHeartbeat:
			hb, err := wire.DecodeHeartbeat(r, subHdr)
			if err == nil {
				p.handleHeartbeat(hdr.GuidPrefix, hb)
			}
		case wire.SubmsgAckNack:
			an, err := wire.DecodeAckNack(r, subHdr)
			if err == nil {
				p.handleAckNack(hdr.GuidPrefix, an)
			}
		case wire.SubmsgGap:
			g, err := wire.DecodeGap(r, subHdr)
			if err == nil {
				p.handleGap(hdr.GuidPrefix, g)
			}
		}
		// Advance past any trailing bytes the handler didn't consume
		// (e.g. an error return), so one bad submessage never desyncs
		// the rest of the message.
		want := bodyStart + int(subHdr.BodyLength)
		if r.Offset() < want {
			if _, err := r.Raw(want - r.Offset()); err != nil {
				return
			}
		}
	}
}

func (p *Participant) handleData(srcPrefix [12]byte, d wire.DataSubmessage, src guid.Locator) {
	var writerEntity guid.EntityID
	copy(writerEntity[:], d.WriterID[:])
	var readerEntity guid.EntityID
	copy(readerEntity[:], d.ReaderID[:])
	writerGUID := guid.GUID{Prefix: srcPrefix, Entity: writerEntity}

	payload, ok := p.decryptInbound(d.Payload)
	if !ok {
		log.WithField("writer", writerGUID.String()).Warn("dropping DATA that failed security transform")
		if p.metrics != nil {
			p.metrics.SamplesDropped.WithLabelValues("security_transform_failed").Inc()
		}
		return
	}
	d.Payload = payload

	switch writerEntity {
	case guid.SPDPBuiltinParticipantWriter:
		ann, err := discovery.DecodeParticipantAnnouncement(d.Payload)
		if err != nil {
			log.WithField("error", err).Debug("dropping malformed SPDP sample")
			return
		}
		isNew := p.participants.Observe(ann)
		if isNew {
			log.WithField("remote", ann.ParticipantGUID.String()).Info("discovered participant")
		}
	case guid.SEDPBuiltinPublicationsWriter, guid.SEDPBuiltinSubscriptionsWriter:
		rec, err := discovery.DecodeEndpointRecord(d.Payload)
		if err != nil {
			log.WithField("error", err).Debug("dropping malformed SEDP sample")
			return
		}
		p.participants.Touch(rec.ParticipantGUID)
		p.endpoints.Apply(rec)
		if rec.Disposition == discovery.Alive {
			p.tryMatchRemote(rec)
		}
	default:
		p.mu.RLock()
		reader, ok := p.readers[guid.GUID{Prefix: srcPrefixOfLocalReader(p), Entity: readerEntity}]
		rel, hasRel := p.readerState[guid.GUID{Prefix: srcPrefixOfLocalReader(p), Entity: readerEntity}]
		p.mu.RUnlock()
		if !ok {
			return
		}
		seq := uint64(d.WriterSN)
		if _, err := reader.OnData(seq, d.Payload); err != nil {
			log.WithField("error", err).Warn("reader rejected sample")
			if p.metrics != nil {
				p.metrics.SamplesDropped.WithLabelValues("reader_rejected").Inc()
			}
		}
		if hasRel {
			rel.gaps.OnReceive(seq)
		}
		_ = writerGUID
	}
}

// srcPrefixOfLocalReader returns this participant's own GUID prefix — data
// addressed to a local reader always carries a ReaderID scoped to our own
// prefix, never the remote writer's.
func srcPrefixOfLocalReader(p *Participant) guid.Prefix { return p.prefix }

func (p *Participant) handleHeartbeat(srcPrefix [12]byte, hb wire.HeartbeatSubmessage) {
	var readerEntity guid.EntityID
	copy(readerEntity[:], hb.ReaderID[:])
	readerID := guid.GUID{Prefix: p.prefix, Entity: readerEntity}

	p.mu.RLock()
	rel, ok := p.readerState[readerID]
	p.mu.RUnlock()
	if !ok {
		return
	}
	if !rel.hbRx.Accept(hb.Count) {
		return
	}
	gaps := rel.hbRx.Gaps(rel.gaps, uint64(hb.FirstSN), uint64(hb.LastSN))
	pending := append([]reliability.Range(nil), rel.gaps.PendingGaps()...)
	rel.scheduler.Observe(append(pending, gaps...))
	if missing := rel.scheduler.Eligible(); len(missing) > 0 {
		rel.coalescer.Add(missing)
	}
}

func (p *Participant) handleAckNack(srcPrefix [12]byte, an wire.AckNackSubmessage) {
	var writerEntity guid.EntityID
	copy(writerEntity[:], an.WriterID[:])
	writerID := guid.GUID{Prefix: p.prefix, Entity: writerEntity}
	var readerEntity guid.EntityID
	copy(readerEntity[:], an.ReaderID[:])
	remoteReaderID := guid.GUID{Prefix: srcPrefix, Entity: readerEntity}

	p.mu.Lock()
	w, ok := p.writers[writerID]
	if !ok {
		p.mu.Unlock()
		return
	}
	rq, ok := p.repairQueues[writerID]
	if !ok {
		rq = congestion.NewRepairQueue(defaultRepairBudgetRatio, p.rate.Rate(), defaultRepairMaxRetries, defaultRepairBaseBackoff)
		p.repairQueues[writerID] = rq
	}
	p.nackCount++
	if sentAt, ok := p.lastHeartbeatSent[writerID]; ok {
		p.rtt.Observe(time.Since(sentAt))
	}
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.AckNacksReceived.Inc()
	}

	var loc guid.Locator
	haveLoc := false
	for _, m := range p.matches.For(writerID) {
		if m.RemoteGUID == remoteReaderID && len(m.RemoteLocators) > 0 {
			loc, haveLoc = m.RemoteLocators[0], true
			break
		}
	}

	if first, _, ok := w.Range(); ok {
		for seq := first; seq < uint64(an.Base); seq++ {
			rq.Forget(seq) // implicitly acknowledged: everything below Base was received
		}
	}

	requested := bitmapToSeqs(an.Base, an.Bitmap)
	handler := reliability.NewWriterRetransmitHandler(w.HistoryCache())
	actions, gapRanges := handler.Resolve(requested)
	for _, action := range actions {
		if action.Kind != reliability.RetransmitData {
			continue
		}
		if !rq.Admit(action.SeqNum, len(action.Payload)) {
			continue
		}
		log.WithField("writer", writerID.String()).WithField("seq", action.SeqNum).Debug("retransmitting")
		if p.metrics != nil {
			p.metrics.Retransmits.WithLabelValues("data").Inc()
		}
		if haveLoc {
			msg := p.buildMessage(writerEntity, readerEntity, action.SeqNum, action.Payload)
			_ = p.transport.Send(msg, loc)
		}
	}
	if len(gapRanges) > 0 {
		log.WithField("writer", writerID.String()).WithField("ranges", len(gapRanges)).Debug("sending GAP for evicted sequences")
		if p.metrics != nil {
			p.metrics.Retransmits.WithLabelValues("gap").Add(float64(len(gapRanges)))
		}
		if haveLoc {
			gw := wire.NewWriteCursor()
			gw.MessageHeader(wire.MessageHeader{Version: wire.DefaultProtocolVersion, Vendor: wire.NativeVendorID, GuidPrefix: p.prefix})
			for _, r := range gapRanges {
				wire.EncodeGap(gw, wire.GapSubmessage{
					ReaderID:    [4]byte(readerEntity),
					WriterID:    [4]byte(writerEntity),
					GapStart:    wire.SequenceNumber(r.Start),
					GapListBase: wire.SequenceNumber(r.End),
				})
			}
			_ = p.transport.Send(gw.Bytes(), loc)
		}
	}
}

func (p *Participant) handleGap(srcPrefix [12]byte, g wire.GapSubmessage) {
	var readerEntity guid.EntityID
	copy(readerEntity[:], g.ReaderID[:])
	readerID := guid.GUID{Prefix: p.prefix, Entity: readerEntity}

	p.mu.RLock()
	rel, ok := p.readerState[readerID]
	p.mu.RUnlock()
	if !ok {
		return
	}
	rel.gaps.MarkLost(reliability.Range{Start: uint64(g.GapStart), End: uint64(g.GapListBase)})
}

// bitmapToSeqs expands an SNBitmap into the concrete missing sequence
// numbers it represents, per spec.md §4.1's ACKNACK encoding: bit i of
// word i/32 (MSB-first) set means Base+i is missing.
func bitmapToSeqs(base wire.SequenceNumber, bm wire.SNBitmap) []uint64 {
	var out []uint64
	for i := uint32(0); i < bm.NumBits; i++ {
		word := bm.Bits[i/32]
		bit := uint32(0x80000000) >> (i % 32)
		if word&bit != 0 {
			out = append(out, uint64(base)+uint64(i))
		}
	}
	return out
}

// tryMatchRemote runs RxO matching between a freshly-applied remote SEDP
// record and every local endpoint of the opposite kind with the same
// topic name and an intersecting partition set (spec.md §4.6). Type
// names are not compared.
func (p *Participant) tryMatchRemote(rec discovery.EndpointRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch rec.Kind {
	case discovery.Publication:
		for id, local := range p.localSubscriptions {
			if local.TopicName != rec.TopicName || !local.Qos.Partition.Intersects(rec.Qos.Partition) {
				continue
			}
			p.matches.TryMatch(id, local.Qos, false, rec)
		}
	case discovery.Subscription:
		for id, local := range p.localPublications {
			if local.TopicName != rec.TopicName || !local.Qos.Partition.Intersects(rec.Qos.Partition) {
				continue
			}
			p.matches.TryMatch(id, local.Qos, true, rec)
		}
	}
}

// sendSpdpAnnouncement broadcasts this participant's SPDP sample to every
// seed locator (spec.md §4.6's periodic re-announcement).
func (p *Participant) sendSpdpAnnouncement(ctx context.Context) {
	locators, err := p.seeds.Seeds(ctx)
	if err != nil || len(locators) == 0 {
		return
	}
	ann := p.buildAnnouncement()
	payload := discovery.EncodeParticipantAnnouncement(ann)
	seq := p.spdpSeq.Next()
	msg := p.buildMessage(guid.SPDPBuiltinParticipantWriter, guid.SPDPBuiltinParticipantReader, seq, payload)
	for _, loc := range locators {
		_ = p.transport.Send(msg, loc)
	}
}

func (p *Participant) buildAnnouncement() discovery.ParticipantAnnouncement {
	p.mu.RLock()
	defer p.mu.RUnlock()
	local := p.transport.LocalLocator()
	return discovery.ParticipantAnnouncement{
		ProtocolMajor:      wire.DefaultProtocolVersion.Major,
		ProtocolMinor:      wire.DefaultProtocolVersion.Minor,
		VendorID:           [2]byte(wire.NativeVendorID),
		ParticipantGUID:    p.GUID(),
		DomainID:           p.domain,
		LeaseDuration:      p.leaseDuration,
		BuiltinEndpointSet: 0x3f,
		DefaultUnicastLocators: []guid.Locator{local},
		Mobility:           &discovery.MobilityInfo{HostID: hostID()},
	}
}

// advertiseLocalEndpoints broadcasts SEDP samples for every locally
// registered writer/reader (spec.md §4.6).
func (p *Participant) advertiseLocalEndpoints(ctx context.Context) {
	locators, err := p.seeds.Seeds(ctx)
	if err != nil || len(locators) == 0 {
		return
	}
	p.mu.RLock()
	pubs := make([]discovery.EndpointRecord, 0, len(p.localPublications))
	for _, rec := range p.localPublications {
		pubs = append(pubs, rec)
	}
	subs := make([]discovery.EndpointRecord, 0, len(p.localSubscriptions))
	for _, rec := range p.localSubscriptions {
		subs = append(subs, rec)
	}
	p.mu.RUnlock()

	for _, rec := range pubs {
		payload := discovery.EncodeEndpointRecord(rec)
		seq := p.sedpPubSeq.Next()
		msg := p.buildMessage(guid.SEDPBuiltinPublicationsWriter, guid.SEDPBuiltinPublicationsReader, seq, payload)
		for _, loc := range locators {
			_ = p.transport.Send(msg, loc)
		}
	}
	for _, rec := range subs {
		payload := discovery.EncodeEndpointRecord(rec)
		seq := p.sedpSubSeq.Next()
		msg := p.buildMessage(guid.SEDPBuiltinSubscriptionsWriter, guid.SEDPBuiltinSubscriptionsReader, seq, payload)
		for _, loc := range locators {
			_ = p.transport.Send(msg, loc)
		}
	}
}

// buildMessage wraps one DATA submessage in a MessageHeader, the common
// shape every outbound builtin sample shares.
func (p *Participant) buildMessage(writerID, readerID guid.EntityID, seq uint64, payload []byte) []byte {
	w := wire.NewWriteCursor()
	w.MessageHeader(wire.MessageHeader{
		Version:    wire.DefaultProtocolVersion,
		Vendor:     wire.NativeVendorID,
		GuidPrefix: p.prefix,
	})
	wire.EncodeData(w, wire.DataSubmessage{
		ReaderID: [4]byte(readerID),
		WriterID: [4]byte(writerID),
		WriterSN: wire.SequenceNumber(seq),
		Payload:  p.encryptOutbound(payload),
	})
	return w.Bytes()
}

// encryptOutbound applies the installed security plug-in's AEAD transform
// to a DATA submessage payload, or passes it through unchanged when no
// plug-in was installed (spec.md §6's Security: None default).
func (p *Participant) encryptOutbound(payload []byte) []byte {
	if p.security == nil {
		return payload
	}
	ct, err := p.security.Encrypt(payload)
	if err != nil {
		log.WithField("error", err).Warn("security transform failed on send, dropping payload")
		return nil
	}
	return ct
}

// decryptInbound reverses encryptOutbound. ok is false when a security
// plug-in is installed and decryption failed — callers must not
// interpret the returned payload in that case.
func (p *Participant) decryptInbound(payload []byte) (out []byte, ok bool) {
	if p.security == nil {
		return payload, true
	}
	pt, err := p.security.Decrypt(payload)
	if err != nil {
		return nil, false
	}
	return pt, true
}

// maxDrainPerWriterPerTick bounds how many queued samples tickWriterSends
// drains from a single writer's pacer per reliabilityDriver tick, so one
// writer's backlog can't starve the same tick's HEARTBEAT/NACK work.
const maxDrainPerWriterPerTick = 64

// tickWriterSends drains each registered writer's congestion pacer and
// puts every ready sample on the wire to its current matches (spec.md
// §4.5's non-blocking TrySend loop). Reliable retransmits already go out
// through handleAckNack; this is the ordinary first-send path.
func (p *Participant) tickWriterSends() {
	p.mu.RLock()
	writers := make([]WriterHandle, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.RUnlock()

	for _, w := range writers {
		pacer := w.Pacer()
		if pacer == nil {
			continue
		}
		matches := p.matches.For(w.ID())
		if len(matches) == 0 {
			continue
		}
		var writerEntity guid.EntityID
		copy(writerEntity[:], w.ID().Entity[:])

		for i := 0; i < maxDrainPerWriterPerTick; i++ {
			sample, result := pacer.TrySend()
			if result != congestion.SendOK {
				break
			}
			for _, m := range matches {
				var readerEntity guid.EntityID
				copy(readerEntity[:], m.RemoteGUID.Entity[:])
				// Rebuilt per reader: each carries a distinct ReaderID, and
				// buildMessage's security transform is cheap relative to
				// the UDP send it gates.
				msg := p.buildMessage(writerEntity, readerEntity, sample.SeqNum, sample.Payload)
				for _, loc := range m.RemoteLocators {
					_ = p.transport.Send(msg, loc)
				}
			}
			if p.metrics != nil {
				p.metrics.SamplesSent.Inc()
			}
		}
	}
}

// tickWriterHeartbeats sends a periodic HEARTBEAT for every reliable
// registered writer whose HeartbeatTx is due (spec.md §4.4).
func (p *Participant) tickWriterHeartbeats() {
	p.mu.RLock()
	writers := make([]WriterHandle, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.RUnlock()

	for _, w := range writers {
		hb := w.Heartbeat()
		if hb == nil || !hb.DuePeriodic() {
			continue
		}
		first, last, ok := w.Range()
		if !ok {
			continue
		}
		count, _ := hb.NextFlags(false, false)
		p.mu.Lock()
		p.lastHeartbeatSent[w.ID()] = time.Now()
		p.mu.Unlock()
		for _, m := range p.matches.For(w.ID()) {
			for _, loc := range m.RemoteLocators {
				hbw := wire.NewWriteCursor()
				hbw.MessageHeader(wire.MessageHeader{Version: wire.DefaultProtocolVersion, Vendor: wire.NativeVendorID, GuidPrefix: p.prefix})
				var readerEntity, writerEntity guid.EntityID
				copy(readerEntity[:], m.RemoteGUID.Entity[:])
				copy(writerEntity[:], w.ID().Entity[:])
				wire.EncodeHeartbeat(hbw, wire.HeartbeatSubmessage{
					ReaderID: [4]byte(readerEntity),
					WriterID: [4]byte(writerEntity),
					FirstSN:  wire.SequenceNumber(first),
					LastSN:   wire.SequenceNumber(last),
					Count:    count,
				})
				_ = p.transport.Send(hbw.Bytes(), loc)
				if p.metrics != nil {
					p.metrics.HeartbeatsSent.Inc()
				}
			}
		}
	}
}

// tickReaderNacks flushes any coalesced NACK for reliable readers whose
// coalescing window has elapsed (spec.md §4.4).
func (p *Participant) tickReaderNacks() {
	p.mu.RLock()
	type pending struct {
		id  guid.GUID
		rel *readerReliability
	}
	var all []pending
	for id, rel := range p.readerState {
		all = append(all, pending{id, rel})
	}
	p.mu.RUnlock()

	for _, pr := range all {
		seqs, ready := pr.rel.coalescer.FlushIfReady()
		if !ready || len(seqs) == 0 {
			continue
		}
		for _, m := range p.matches.For(pr.id) {
			for _, loc := range m.RemoteLocators {
				anw := wire.NewWriteCursor()
				anw.MessageHeader(wire.MessageHeader{Version: wire.DefaultProtocolVersion, Vendor: wire.NativeVendorID, GuidPrefix: p.prefix})
				bitmap := seqsToBitmap(seqs)
				var readerEntity, writerEntity guid.EntityID
				copy(readerEntity[:], pr.id.Entity[:])
				copy(writerEntity[:], m.RemoteGUID.Entity[:])
				wire.EncodeAckNack(anw, wire.AckNackSubmessage{
					ReaderID: [4]byte(readerEntity),
					WriterID: [4]byte(writerEntity),
					Base:     wire.SequenceNumber(seqs[0]),
					Bitmap:   bitmap,
					Count:    uint32(len(seqs)),
				})
				_ = p.transport.Send(anw.Bytes(), loc)
			}
		}
	}
}

// seqsToBitmap packs a sorted list of missing sequence numbers into an
// SNBitmap relative to its lowest entry, the inverse of bitmapToSeqs.
func seqsToBitmap(seqs []uint64) wire.SNBitmap {
	base := seqs[0]
	span := seqs[len(seqs)-1] - base + 1
	if span > 256 {
		span = 256
	}
	words := make([]uint32, (span+31)/32)
	for _, s := range seqs {
		off := s - base
		if off >= span {
			continue
		}
		word := off / 32
		bit := uint32(0x80000000) >> (off % 32)
		words[word] |= bit
	}
	return wire.SNBitmap{Base: wire.SequenceNumber(base), Bits: words, NumBits: uint32(span)}
}
