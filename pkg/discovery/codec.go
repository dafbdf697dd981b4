package discovery

import (
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
	"github.com/hdds-io/hdds/pkg/wire"
)

// Vendor-private parameter ids for fields the OMG baseline PIDs in
// pkg/wire don't cover or that HDDS encodes as a single opaque blob
// rather than per-policy PIDs (spec.md §4.6 built-in endpoints carry
// SPDP/SEDP data as parameter lists; these PIDs share the vendor-private
// space already used by PIDVendorMobility).
const (
	pidProtocolVersion      uint16 = 0x8010
	pidVendorID             uint16 = 0x8011
	pidDomainID             uint16 = 0x8012
	pidMetatrafficMulticast uint16 = 0x8013
	pidDefaultMulticast     uint16 = 0x8014
	pidEndpointKind         uint16 = 0x8015
	pidDisposition          uint16 = 0x8016
	pidQosProfile           uint16 = 0x8017
)

func encodeGUID(w *wire.WriteCursor, g guid.GUID) {
	w.Raw(g.Prefix[:])
	w.Raw(g.Entity[:])
}

func decodeGUID(r *wire.ReadCursor) (guid.GUID, error) {
	raw, err := r.Raw(16)
	if err != nil {
		return guid.GUID{}, err
	}
	var g guid.GUID
	copy(g.Prefix[:], raw[:12])
	copy(g.Entity[:], raw[12:16])
	return g, nil
}

func encodeLocator(w *wire.WriteCursor, loc guid.Locator) {
	w.I32(int32(loc.Kind))
	w.U32(loc.Port)
	w.Raw(loc.Address[:])
}

func decodeLocator(r *wire.ReadCursor) (guid.Locator, error) {
	kind, err := r.I32()
	if err != nil {
		return guid.Locator{}, err
	}
	port, err := r.U32()
	if err != nil {
		return guid.Locator{}, err
	}
	addr, err := r.Raw(16)
	if err != nil {
		return guid.Locator{}, err
	}
	var loc guid.Locator
	loc.Kind = guid.LocatorKind(kind)
	loc.Port = port
	copy(loc.Address[:], addr)
	return loc, nil
}

func writeString(w *wire.WriteCursor, s string) {
	w.U32(uint32(len(s)))
	w.Raw([]byte(s))
	w.Align(4)
}

func readString(r *wire.ReadCursor) (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	raw, err := r.Raw(int(n))
	if err != nil {
		return "", err
	}
	s := string(raw)
	if err := r.Align(4); err != nil {
		return "", err
	}
	return s, nil
}

func appendLocators(pl *wire.ParameterList, pid uint16, locs []guid.Locator) {
	for _, loc := range locs {
		w := wire.NewWriteCursor()
		encodeLocator(w, loc)
		pl.Params = append(pl.Params, wire.Parameter{PID: pid, Payload: w.Bytes()})
	}
}

func collectLocators(pl wire.ParameterList, pid uint16) ([]guid.Locator, error) {
	var out []guid.Locator
	for _, p := range pl.Params {
		if p.PID != pid {
			continue
		}
		loc, err := decodeLocator(wire.NewReadCursor(p.Payload))
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// encodeProfile serializes a qos.Profile as a single opaque blob rather
// than decomposing it into the OMG per-policy PIDs: HDDS-native peers
// round-trip it exactly, and a foreign-dialect peer's inline QoS is
// handled separately by the reader/writer's own parameter list, not by
// SEDP endpoint matching (see SPEC_FULL.md dialect notes).
func encodeProfile(w *wire.WriteCursor, p qos.Profile) {
	w.U8(uint8(p.Reliability))
	w.U8(uint8(p.Durability))
	w.U8(uint8(p.History.Kind))
	w.U8(uint8(p.Ownership.Kind))
	w.Align(4)
	w.I32(int32(p.History.Depth))
	w.U64(uint64(p.Deadline))
	w.U64(uint64(p.Lifespan))
	w.U64(uint64(p.LatencyBudget))
	w.U64(uint64(p.TimeBasedFilter))
	w.I32(p.Ownership.Strength)
	w.U8(uint8(p.DestinationOrder))
	w.U8(uint8(p.Presentation.Scope))
	w.U8(boolByte(p.Presentation.Coherent))
	w.U8(boolByte(p.Presentation.Ordered))
	w.I32(int32(p.ResourceLimits.MaxSamples))
	w.I32(int32(p.ResourceLimits.MaxInstances))
	w.I32(int32(p.ResourceLimits.MaxSamplesPerInstance))
	w.I32(p.TransportPriority)
	w.U32(uint32(len(p.Partition.Names)))
	for _, name := range p.Partition.Names {
		writeString(w, name)
	}
}

func decodeProfile(r *wire.ReadCursor) (qos.Profile, error) {
	var p qos.Profile
	reliability, err := r.U8()
	if err != nil {
		return p, err
	}
	durability, err := r.U8()
	if err != nil {
		return p, err
	}
	historyKind, err := r.U8()
	if err != nil {
		return p, err
	}
	ownershipKind, err := r.U8()
	if err != nil {
		return p, err
	}
	if err := r.Align(4); err != nil {
		return p, err
	}
	depth, err := r.I32()
	if err != nil {
		return p, err
	}
	deadline, err := r.U64()
	if err != nil {
		return p, err
	}
	lifespan, err := r.U64()
	if err != nil {
		return p, err
	}
	latencyBudget, err := r.U64()
	if err != nil {
		return p, err
	}
	timeBasedFilter, err := r.U64()
	if err != nil {
		return p, err
	}
	strength, err := r.I32()
	if err != nil {
		return p, err
	}
	destOrder, err := r.U8()
	if err != nil {
		return p, err
	}
	presScope, err := r.U8()
	if err != nil {
		return p, err
	}
	coherent, err := r.U8()
	if err != nil {
		return p, err
	}
	ordered, err := r.U8()
	if err != nil {
		return p, err
	}
	maxSamples, err := r.I32()
	if err != nil {
		return p, err
	}
	maxInstances, err := r.I32()
	if err != nil {
		return p, err
	}
	maxSamplesPerInstance, err := r.I32()
	if err != nil {
		return p, err
	}
	transportPriority, err := r.I32()
	if err != nil {
		return p, err
	}
	partitionCount, err := r.U32()
	if err != nil {
		return p, err
	}
	names := make([]string, 0, partitionCount)
	for i := uint32(0); i < partitionCount; i++ {
		name, err := readString(r)
		if err != nil {
			return p, err
		}
		names = append(names, name)
	}

	p.Reliability = qos.ReliabilityKind(reliability)
	p.Durability = qos.DurabilityKind(durability)
	p.History = qos.History{Kind: qos.HistoryKind(historyKind), Depth: int(depth)}
	p.Deadline = time.Duration(deadline)
	p.Lifespan = time.Duration(lifespan)
	p.LatencyBudget = time.Duration(latencyBudget)
	p.TimeBasedFilter = time.Duration(timeBasedFilter)
	p.Ownership = qos.Ownership{Kind: qos.OwnershipKind(ownershipKind), Strength: strength}
	p.DestinationOrder = qos.DestinationOrderKind(destOrder)
	p.Presentation = qos.Presentation{Scope: qos.PresentationScope(presScope), Coherent: coherent != 0, Ordered: ordered != 0}
	p.ResourceLimits = qos.ResourceLimits{MaxSamples: int(maxSamples), MaxInstances: int(maxInstances), MaxSamplesPerInstance: int(maxSamplesPerInstance)}
	p.TransportPriority = transportPriority
	p.Partition = qos.Partition{Names: names}
	return p, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// EncodeParticipantAnnouncement serializes one SPDP sample as a
// parameter list (spec.md §4.6).
func EncodeParticipantAnnouncement(ann ParticipantAnnouncement) []byte {
	var pl wire.ParameterList
	pl.Set(pidProtocolVersion, []byte{ann.ProtocolMajor, ann.ProtocolMinor})
	pl.Set(pidVendorID, ann.VendorID[:])

	{
		w := wire.NewWriteCursor()
		encodeGUID(w, ann.ParticipantGUID)
		pl.Set(wire.PIDParticipantGUID, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		w.U32(uint32(ann.DomainID))
		pl.Set(pidDomainID, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		w.U64(uint64(ann.LeaseDuration))
		pl.Set(wire.PIDLeaseDuration, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		w.U32(ann.BuiltinEndpointSet)
		pl.Set(wire.PIDBuiltinEndpointSet, w.Bytes())
	}

	appendLocators(&pl, wire.PIDMetatrafficUnicast, ann.MetatrafficUnicastLocators)
	appendLocators(&pl, pidMetatrafficMulticast, ann.MetatrafficMulticastLocators)
	appendLocators(&pl, wire.PIDDefaultUnicastLoc, ann.DefaultUnicastLocators)
	appendLocators(&pl, pidDefaultMulticast, ann.DefaultMulticastLocators)

	if ann.Mobility != nil {
		w := wire.NewWriteCursor()
		w.U32(ann.Mobility.Epoch)
		w.U64(ann.Mobility.HostID)
		w.U64(ann.Mobility.LocatorSetHash)
		pl.Set(wire.PIDVendorMobility, w.Bytes())
	}

	out := wire.NewWriteCursor()
	wire.EncodeParameterList(out, pl)
	return out.Bytes()
}

// DecodeParticipantAnnouncement is the inverse of
// EncodeParticipantAnnouncement.
func DecodeParticipantAnnouncement(raw []byte) (ParticipantAnnouncement, error) {
	r := wire.NewReadCursor(raw)
	pl, err := wire.DecodeParameterList(r)
	if err != nil {
		return ParticipantAnnouncement{}, err
	}

	var ann ParticipantAnnouncement
	if v, ok := pl.Get(pidProtocolVersion); ok && len(v) >= 2 {
		ann.ProtocolMajor, ann.ProtocolMinor = v[0], v[1]
	}
	if v, ok := pl.Get(pidVendorID); ok && len(v) >= 2 {
		copy(ann.VendorID[:], v)
	}
	if v, ok := pl.Get(wire.PIDParticipantGUID); ok {
		g, err := decodeGUID(wire.NewReadCursor(v))
		if err != nil {
			return ann, err
		}
		ann.ParticipantGUID = g
	}
	if v, ok := pl.Get(pidDomainID); ok {
		d, err := wire.NewReadCursor(v).U32()
		if err != nil {
			return ann, err
		}
		ann.DomainID = guid.DomainID(d)
	}
	if v, ok := pl.Get(wire.PIDLeaseDuration); ok {
		d, err := wire.NewReadCursor(v).U64()
		if err != nil {
			return ann, err
		}
		ann.LeaseDuration = time.Duration(d)
	}
	if v, ok := pl.Get(wire.PIDBuiltinEndpointSet); ok {
		s, err := wire.NewReadCursor(v).U32()
		if err != nil {
			return ann, err
		}
		ann.BuiltinEndpointSet = s
	}
	if v, ok := pl.Get(wire.PIDVendorMobility); ok {
		mr := wire.NewReadCursor(v)
		epoch, err := mr.U32()
		if err != nil {
			return ann, err
		}
		hostID, err := mr.U64()
		if err != nil {
			return ann, err
		}
		hash, err := mr.U64()
		if err != nil {
			return ann, err
		}
		ann.Mobility = &MobilityInfo{Epoch: epoch, HostID: hostID, LocatorSetHash: hash}
	}

	if ann.MetatrafficUnicastLocators, err = collectLocators(pl, wire.PIDMetatrafficUnicast); err != nil {
		return ann, err
	}
	if ann.MetatrafficMulticastLocators, err = collectLocators(pl, pidMetatrafficMulticast); err != nil {
		return ann, err
	}
	if ann.DefaultUnicastLocators, err = collectLocators(pl, wire.PIDDefaultUnicastLoc); err != nil {
		return ann, err
	}
	if ann.DefaultMulticastLocators, err = collectLocators(pl, pidDefaultMulticast); err != nil {
		return ann, err
	}
	return ann, nil
}

// EncodeEndpointRecord serializes one SEDP sample as a parameter list
// (spec.md §4.6).
func EncodeEndpointRecord(rec EndpointRecord) []byte {
	var pl wire.ParameterList
	{
		w := wire.NewWriteCursor()
		encodeGUID(w, rec.EndpointGUID)
		pl.Set(wire.PIDEndpointGUID, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		encodeGUID(w, rec.ParticipantGUID)
		pl.Set(wire.PIDParticipantGUID, w.Bytes())
	}
	pl.Set(pidEndpointKind, []byte{uint8(rec.Kind)})
	pl.Set(pidDisposition, []byte{uint8(rec.Disposition)})
	{
		w := wire.NewWriteCursor()
		writeString(w, rec.TopicName)
		pl.Set(wire.PIDTopicName, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		writeString(w, rec.TypeName)
		pl.Set(wire.PIDTypeName, w.Bytes())
	}
	{
		w := wire.NewWriteCursor()
		encodeProfile(w, rec.Qos)
		pl.Set(pidQosProfile, w.Bytes())
	}
	if rec.HasTypeObject {
		pl.Set(wire.PIDTypeObject, []byte{1})
	}
	appendLocators(&pl, wire.PIDUnicastLocator, rec.Locators)

	out := wire.NewWriteCursor()
	wire.EncodeParameterList(out, pl)
	return out.Bytes()
}

// DecodeEndpointRecord is the inverse of EncodeEndpointRecord.
func DecodeEndpointRecord(raw []byte) (EndpointRecord, error) {
	r := wire.NewReadCursor(raw)
	pl, err := wire.DecodeParameterList(r)
	if err != nil {
		return EndpointRecord{}, err
	}

	var rec EndpointRecord
	if v, ok := pl.Get(wire.PIDEndpointGUID); ok {
		g, err := decodeGUID(wire.NewReadCursor(v))
		if err != nil {
			return rec, err
		}
		rec.EndpointGUID = g
	}
	if v, ok := pl.Get(wire.PIDParticipantGUID); ok {
		g, err := decodeGUID(wire.NewReadCursor(v))
		if err != nil {
			return rec, err
		}
		rec.ParticipantGUID = g
	}
	if v, ok := pl.Get(pidEndpointKind); ok && len(v) >= 1 {
		rec.Kind = EndpointKind(v[0])
	}
	if v, ok := pl.Get(pidDisposition); ok && len(v) >= 1 {
		rec.Disposition = Disposition(v[0])
	}
	if v, ok := pl.Get(wire.PIDTopicName); ok {
		name, err := readString(wire.NewReadCursor(v))
		if err != nil {
			return rec, err
		}
		rec.TopicName = name
	}
	if v, ok := pl.Get(wire.PIDTypeName); ok {
		name, err := readString(wire.NewReadCursor(v))
		if err != nil {
			return rec, err
		}
		rec.TypeName = name
	}
	if v, ok := pl.Get(pidQosProfile); ok {
		profile, err := decodeProfile(wire.NewReadCursor(v))
		if err != nil {
			return rec, err
		}
		rec.Qos = profile
	}
	if _, ok := pl.Get(wire.PIDTypeObject); ok {
		rec.HasTypeObject = true
	}
	if rec.Locators, err = collectLocators(pl, wire.PIDUnicastLocator); err != nil {
		return rec, err
	}
	return rec, nil
}
