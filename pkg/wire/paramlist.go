package wire

import "github.com/hdds-io/hdds/pkg/herrors"

// Parameter identifiers used by inline QoS and SEDP/SPDP parameter lists,
// spec.md §3/§4.1/§4.6.
const (
	PIDSentinel           uint16 = 0x0001
	PIDPartition          uint16 = 0x0029
	PIDTopicName          uint16 = 0x0005
	PIDTypeName           uint16 = 0x0007
	PIDReliability        uint16 = 0x001a
	PIDDurability         uint16 = 0x001d
	PIDHistory            uint16 = 0x0040
	PIDDeadline           uint16 = 0x0023
	PIDLatencyBudget      uint16 = 0x0027
	PIDLifespan           uint16 = 0x002b
	PIDOwnership          uint16 = 0x001f
	PIDOwnershipStrength  uint16 = 0x0006
	PIDDestinationOrder   uint16 = 0x0025
	PIDPresentation       uint16 = 0x0021
	PIDResourceLimits     uint16 = 0x0041
	PIDTransportPriority  uint16 = 0x0049
	PIDTimeBasedFilter    uint16 = 0x0004
	PIDEndpointGUID       uint16 = 0x005a
	PIDParticipantGUID    uint16 = 0x0050
	PIDUnicastLocator     uint16 = 0x002f
	PIDMulticastLocator   uint16 = 0x0030
	PIDDefaultUnicastLoc  uint16 = 0x0031
	PIDMetatrafficUnicast uint16 = 0x0032
	PIDLeaseDuration      uint16 = 0x0002
	PIDBuiltinEndpointSet uint16 = 0x0058
	PIDVendorMobility     uint16 = 0x8001
	PIDTypeObject         uint16 = 0x0072
)

// Parameter is one (pid, payload) entry in a parameter list. Payload is
// already individually CDR-aligned by the caller (4-byte aligned, per CDR
// rules) — the list itself aligns each entry's length-prefixed body to 4.
type Parameter struct {
	PID     uint16
	Payload []byte
}

// ParameterList is an ordered sequence of parameters terminated by
// PIDSentinel.
type ParameterList struct {
	Params []Parameter
}

func (pl *ParameterList) Get(pid uint16) ([]byte, bool) {
	for _, p := range pl.Params {
		if p.PID == pid {
			return p.Payload, true
		}
	}
	return nil, false
}

func (pl *ParameterList) Set(pid uint16, payload []byte) {
	for i, p := range pl.Params {
		if p.PID == pid {
			pl.Params[i].Payload = payload
			return
		}
	}
	pl.Params = append(pl.Params, Parameter{PID: pid, Payload: payload})
}

// EncodeParameterList writes every parameter as (pid:u16, length:u16,
// payload padded to 4) followed by the sentinel.
func EncodeParameterList(w *WriteCursor, pl ParameterList) {
	for _, p := range pl.Params {
		w.U16(p.PID)
		w.U16(uint16(len(p.Payload)))
		w.Raw(p.Payload)
		w.Align(4)
	}
	w.U16(PIDSentinel)
	w.U16(0)
}

// DecodeParameterList reads parameters until PIDSentinel. Unknown PIDs are
// kept verbatim (forward compatibility). A buffer that ends before the
// sentinel, or a length that runs past the buffer, produces a Truncated
// error rather than a silently shortened list.
func DecodeParameterList(r *ReadCursor) (ParameterList, error) {
	var pl ParameterList
	for {
		if r.Remaining() < 4 {
			return pl, herrors.AtOffset(herrors.KindTruncated, "wire.DecodeParameterList", r.offset, "missing sentinel")
		}
		pid, err := r.U16()
		if err != nil {
			return pl, err
		}
		length, err := r.U16()
		if err != nil {
			return pl, err
		}
		if pid == PIDSentinel {
			return pl, nil
		}
		payload, err := r.Raw(int(length))
		if err != nil {
			return pl, err
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		pl.Params = append(pl.Params, Parameter{PID: pid, Payload: cp})
		if err := r.Align(4); err != nil {
			return pl, err
		}
	}
}

// SplitDataQosAndPayload separates a DATA submessage's raw inline-QoS
// bytes (which DecodeData cannot itself bound without parsing PIDs) from a
// trailing serialized payload, by scanning for PID_SENTINEL.
func SplitDataQosAndPayload(raw []byte) (qos ParameterList, payload []byte, err error) {
	r := NewReadCursor(raw)
	qos, err = DecodeParameterList(r)
	if err != nil {
		return qos, nil, err
	}
	payload = raw[r.Offset():]
	return qos, payload, nil
}
