package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
)

const (
	serialStartByte   = 0x7E
	serialEndByte     = 0x7F
	serialPayloadCap  = 50
	serialFragPayload = 251
	reassemblySlots   = 4
	bitmapSlots       = 16
)

// crc16CCITT computes the CRC16-CCITT (poly 0x1021, init 0xFFFF) frame
// check used by the serial transport (spec.md §4.3). No example repo in
// the retrieval pack imports a CRC16 package and hash/crc32 is the wrong
// polynomial and width, so this is a small table-driven implementation —
// the one deliberate stdlib-only piece of the transport layer.
var crc16Table [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16Table[i] = crc
	}
}

func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// serialFrame is one start-byte/length/source/CRC16/end-byte frame.
type serialFrame struct {
	Source  byte
	Payload []byte
}

// encodeSerialFrame builds a frame: start, length, source, payload,
// crc16 (big-endian), end. payload must be <= serialPayloadCap bytes.
func encodeSerialFrame(source byte, payload []byte) ([]byte, error) {
	if len(payload) > serialPayloadCap {
		return nil, herrors.New(herrors.KindInvalidParameter, "transport.serial", "payload exceeds 50-byte cap")
	}
	buf := make([]byte, 0, len(payload)+6)
	buf = append(buf, serialStartByte, byte(len(payload)), source)
	buf = append(buf, payload...)
	crc := crc16CCITT(buf[1:]) // length+source+payload
	buf = append(buf, byte(crc>>8), byte(crc))
	buf = append(buf, serialEndByte)
	return buf, nil
}

func decodeSerialFrame(buf []byte) (serialFrame, error) {
	if len(buf) < 6 {
		return serialFrame{}, herrors.New(herrors.KindTruncated, "transport.serial", "frame shorter than minimum")
	}
	if buf[0] != serialStartByte || buf[len(buf)-1] != serialEndByte {
		return serialFrame{}, herrors.New(herrors.KindInvalidFormat, "transport.serial", "bad start/end byte")
	}
	length := int(buf[1])
	source := buf[2]
	if len(buf) != length+6 {
		return serialFrame{}, herrors.New(herrors.KindInvalidFormat, "transport.serial", "length field mismatch")
	}
	payload := buf[3 : 3+length]
	wantCRC := uint16(buf[3+length])<<8 | uint16(buf[4+length])
	gotCRC := crc16CCITT(buf[1 : 3+length])
	if wantCRC != gotCRC {
		return serialFrame{}, herrors.New(herrors.KindInvalidFormat, "transport.serial", "CRC mismatch")
	}
	return serialFrame{Source: source, Payload: payload}, nil
}

// fragHeader precedes each fragment's payload within a reassembly slot:
// (sampleID byte, fragIndex byte, fragCount byte).
type fragHeader struct {
	SampleID  byte
	FragIndex byte
	FragCount byte
}

type reassemblySlot struct {
	sampleID  byte
	fragCount byte
	bitmap    uint16 // bit i set => fragment i received
	fragments [bitmapSlots][]byte
	active    bool
}

// FragmentAssembler reassembles DATA_FRAG-equivalent serial fragments
// using up to 4 round-robin reassembly slots, each tracking receipt via
// a 16-slot bitmap (spec.md §4.3).
type FragmentAssembler struct {
	mu    sync.Mutex
	slots [reassemblySlots]reassemblySlot
	next  int // round-robin eviction cursor
}

func NewFragmentAssembler() *FragmentAssembler {
	return &FragmentAssembler{}
}

// Add ingests one fragment, returning the reassembled sample and true
// once all fragments for its sampleID have arrived.
func (a *FragmentAssembler) Add(hdr fragHeader, payload []byte) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(hdr.FragCount) > bitmapSlots {
		return nil, false
	}

	idx := a.findOrEvict(hdr.SampleID, hdr.FragCount)
	slot := &a.slots[idx]
	slot.fragments[hdr.FragIndex] = payload
	slot.bitmap |= 1 << hdr.FragIndex

	full := uint16(1)<<hdr.FragCount - 1
	if slot.bitmap&full != full {
		return nil, false
	}

	var out []byte
	for i := byte(0); i < hdr.FragCount; i++ {
		out = append(out, slot.fragments[i]...)
	}
	*slot = reassemblySlot{}
	return out, true
}

func (a *FragmentAssembler) findOrEvict(sampleID, fragCount byte) int {
	for i := range a.slots {
		if a.slots[i].active && a.slots[i].sampleID == sampleID {
			return i
		}
	}
	for i := range a.slots {
		if !a.slots[i].active {
			a.slots[i] = reassemblySlot{sampleID: sampleID, fragCount: fragCount, active: true}
			return i
		}
	}
	idx := a.next
	a.next = (a.next + 1) % reassemblySlots
	a.slots[idx] = reassemblySlot{sampleID: sampleID, fragCount: fragCount, active: true}
	return idx
}

// Serial is the serial-radio transport plug-in (spec.md §4.3): framing
// plus fragmentation over an io.ReadWriteCloser (a physical or
// pseudo-terminal device).
type Serial struct {
	dev       io.ReadWriteCloser
	sourceID  byte
	assembler *FragmentAssembler
	nextSampleID byte
	local     guid.Locator
}

func NewSerial(dev io.ReadWriteCloser, sourceID byte) *Serial {
	return &Serial{dev: dev, sourceID: sourceID, assembler: NewFragmentAssembler()}
}

func (s *Serial) Init() error {
	s.local = guid.Locator{Kind: guid.LocatorKindSerial, Port: uint32(s.sourceID)}
	return nil
}

// Send fragments buf into serialFragPayload-byte pieces when it exceeds
// the frame's payload cap, prefixing each with a fragHeader.
func (s *Serial) Send(buf []byte, dst guid.Locator) error {
	if len(buf) <= serialPayloadCap-3 {
		frame, err := encodeSerialFrame(s.sourceID, append([]byte{s.nextSampleID, 0, 1}, buf...))
		if err != nil {
			return err
		}
		s.nextSampleID++
		_, err = s.dev.Write(frame)
		return err
	}

	sampleID := s.nextSampleID
	s.nextSampleID++
	fragCount := (len(buf) + serialFragPayload - 1) / serialFragPayload
	if fragCount > bitmapSlots {
		return herrors.New(herrors.KindInvalidParameter, "transport.serial", "sample too large for fragment bitmap")
	}
	for i := 0; i < fragCount; i++ {
		start := i * serialFragPayload
		end := start + serialFragPayload
		if end > len(buf) {
			end = len(buf)
		}
		chunkCap := serialPayloadCap - 3
		chunk := buf[start:end]
		for off := 0; off < len(chunk); off += chunkCap {
			cend := off + chunkCap
			if cend > len(chunk) {
				cend = len(chunk)
			}
			frame, err := encodeSerialFrame(s.sourceID, append([]byte{sampleID, byte(i), byte(fragCount)}, chunk[off:cend]...))
			if err != nil {
				return err
			}
			if _, err := s.dev.Write(frame); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Serial) Recv(ctx context.Context, buf []byte) (int, guid.Locator, error) {
	for {
		n, src, err := s.TryRecv(buf)
		if err != ErrWouldBlock {
			return n, src, err
		}
		select {
		case <-ctx.Done():
			return 0, guid.Locator{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// TryRecv reads one frame and feeds it through the FragmentAssembler,
// returning a complete sample once all its fragments have arrived.
func (s *Serial) TryRecv(buf []byte) (int, guid.Locator, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(s.dev, header); err != nil {
		return 0, guid.Locator{}, ErrWouldBlock
	}
	length := int(header[1])
	rest := make([]byte, length+3)
	if _, err := io.ReadFull(s.dev, rest); err != nil {
		return 0, guid.Locator{}, herrors.Wrap(herrors.KindTruncated, "transport.serial", "short frame read", err)
	}
	raw := append(header, rest...)
	frame, err := decodeSerialFrame(raw)
	if err != nil {
		return 0, guid.Locator{}, err
	}
	if len(frame.Payload) < 3 {
		return 0, guid.Locator{}, herrors.New(herrors.KindInvalidFormat, "transport.serial", "fragment header truncated")
	}
	hdr := fragHeader{SampleID: frame.Payload[0], FragIndex: frame.Payload[1], FragCount: frame.Payload[2]}
	data, complete := s.assembler.Add(hdr, frame.Payload[3:])
	if !complete {
		return 0, guid.Locator{}, ErrWouldBlock
	}
	n := copy(buf, data)
	return n, guid.Locator{Kind: guid.LocatorKindSerial, Port: uint32(frame.Source)}, nil
}

func (s *Serial) LocalLocator() guid.Locator { return s.local }
func (s *Serial) MTU() int                    { return bitmapSlots * serialFragPayload }
func (s *Serial) Shutdown() error             { return s.dev.Close() }
