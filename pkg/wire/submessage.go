package wire

import "github.com/hdds-io/hdds/pkg/herrors"

// Submessage ids, per spec.md §4.1.
const (
	SubmsgPad       byte = 0x01
	SubmsgAckNack    byte = 0x06
	SubmsgHeartbeat  byte = 0x07
	SubmsgGap        byte = 0x08
	SubmsgInfoTS     byte = 0x09
	SubmsgInfoDst    byte = 0x0e
	SubmsgData       byte = 0x15
	SubmsgDataFrag   byte = 0x16
)

// Flags byte bit 0: endianness (1 = little-endian, the only wire choice).
const FlagEndianness byte = 0x01

// SubmessageHeader is (id, flags, body_length_le) — 4 bytes total.
type SubmessageHeader struct {
	ID         byte
	Flags      byte
	BodyLength uint16
}

func (c *ReadCursor) SubmessageHeader() (SubmessageHeader, error) {
	id, err := c.U8()
	if err != nil {
		return SubmessageHeader{}, err
	}
	flags, err := c.U8()
	if err != nil {
		return SubmessageHeader{}, err
	}
	length, err := c.U16()
	if err != nil {
		return SubmessageHeader{}, err
	}
	return SubmessageHeader{ID: id, Flags: flags, BodyLength: length}, nil
}

func (c *WriteCursor) SubmessageHeader(h SubmessageHeader) {
	c.U8(h.ID)
	c.U8(h.Flags)
	c.U16(h.BodyLength)
}

// BeginSubmessage writes a placeholder header and returns the offset to
// patch once the body is known; callers call EndSubmessage(off) after
// writing the body.
func (c *WriteCursor) BeginSubmessage(id, flags byte) int {
	off := c.Offset()
	c.SubmessageHeader(SubmessageHeader{ID: id, Flags: flags})
	return off
}

func (c *WriteCursor) EndSubmessage(headerOffset int) {
	bodyLen := c.Offset() - headerOffset - 4
	b := c.buf
	b[headerOffset+2] = byte(bodyLen)
	b[headerOffset+3] = byte(bodyLen >> 8)
}

// CDR encapsulation kinds, spec.md §4.1/§6.
const (
	EncapsulationPlainCDRLE uint16 = 0x0001
	EncapsulationPLCDRLE    uint16 = 0x0003
)

// Encapsulation is the 4-byte CDR encapsulation header prefixing payloads.
type Encapsulation struct {
	Kind    uint16 // stored big-endian on the wire
	Options uint16
}

func (c *ReadCursor) Encapsulation() (Encapsulation, error) {
	if err := c.need(4, "encapsulation"); err != nil {
		return Encapsulation{}, err
	}
	kind := uint16(c.buf[c.offset])<<8 | uint16(c.buf[c.offset+1])
	opts := uint16(c.buf[c.offset+2])<<8 | uint16(c.buf[c.offset+3])
	c.offset += 4
	return Encapsulation{Kind: kind, Options: opts}, nil
}

func (c *WriteCursor) Encapsulation(e Encapsulation) {
	c.buf = append(c.buf, byte(e.Kind>>8), byte(e.Kind), byte(e.Options>>8), byte(e.Options))
}

// --- DATA ---

type DataSubmessage struct {
	ReaderID     [4]byte
	WriterID     [4]byte
	WriterSN     SequenceNumber
	InlineQos    []byte // raw parameter-list bytes, nil if absent
	Payload      []byte // encapsulation header + serialized sample
}

const (
	dataFlagInlineQos byte = 1 << 1
	dataFlagData      byte = 1 << 2
	dataFlagKey       byte = 1 << 3
)

func EncodeData(w *WriteCursor, d DataSubmessage) {
	flags := FlagEndianness
	if d.InlineQos != nil {
		flags |= dataFlagInlineQos
	}
	if d.Payload != nil {
		flags |= dataFlagData
	}
	off := w.BeginSubmessage(SubmsgData, flags)
	w.U16(0) // extraFlags
	qosOffset := uint16(0)
	if d.InlineQos != nil {
		qosOffset = 16 // fixed position given octetsToNextHeader below
	}
	w.U16(qosOffset)
	w.Raw(d.ReaderID[:])
	w.Raw(d.WriterID[:])
	w.SequenceNumber(d.WriterSN)
	if d.InlineQos != nil {
		w.Raw(d.InlineQos)
	}
	if d.Payload != nil {
		w.Raw(d.Payload)
	}
	w.EndSubmessage(off)
}

func DecodeData(r *ReadCursor, h SubmessageHeader) (DataSubmessage, error) {
	var d DataSubmessage
	end := r.offset + int(h.BodyLength)
	if _, err := r.U16(); err != nil { // extraFlags
		return d, err
	}
	qosOffset, err := r.U16()
	if err != nil {
		return d, err
	}
	readerID, err := r.Raw(4)
	if err != nil {
		return d, err
	}
	copy(d.ReaderID[:], readerID)
	writerID, err := r.Raw(4)
	if err != nil {
		return d, err
	}
	copy(d.WriterID[:], writerID)
	sn, err := r.SequenceNumber()
	if err != nil {
		return d, err
	}
	d.WriterSN = sn
	if h.Flags&dataFlagInlineQos != 0 {
		if qosOffset == 0 {
			return d, herrors.New(herrors.KindInvalidFormat, "wire.DecodeData", "inline qos flag set but offset zero")
		}
		qosStart := r.Offset()
		if _, err := DecodeParameterList(r); err != nil {
			return d, err
		}
		d.InlineQos = r.buf[qosStart:r.Offset()]
	}
	if h.Flags&dataFlagData != 0 {
		raw, err := r.Raw(end - r.offset)
		if err != nil {
			return d, err
		}
		d.Payload = raw
	}
	return d, nil
}

// --- DATA_FRAG ---

type DataFragSubmessage struct {
	ReaderID          [4]byte
	WriterID          [4]byte
	WriterSN          SequenceNumber
	FragmentStartNum  uint32
	FragmentsInSubmsg uint16
	FragmentSize      uint16
	SampleSize        uint32
	InlineQos         []byte
	FragmentData      []byte
}

func EncodeDataFrag(w *WriteCursor, d DataFragSubmessage) {
	flags := FlagEndianness
	if d.InlineQos != nil {
		flags |= dataFlagInlineQos
	}
	off := w.BeginSubmessage(SubmsgDataFrag, flags)
	w.U16(0)
	qosOffset := uint16(0)
	if d.InlineQos != nil {
		qosOffset = 28
	}
	w.U16(qosOffset)
	w.Raw(d.ReaderID[:])
	w.Raw(d.WriterID[:])
	w.SequenceNumber(d.WriterSN)
	w.U32(d.FragmentStartNum)
	w.U16(d.FragmentsInSubmsg)
	w.U16(d.FragmentSize)
	w.U32(d.SampleSize)
	if d.InlineQos != nil {
		w.Raw(d.InlineQos)
	}
	w.Raw(d.FragmentData)
	w.EndSubmessage(off)
}

func DecodeDataFrag(r *ReadCursor, h SubmessageHeader) (DataFragSubmessage, error) {
	var d DataFragSubmessage
	end := r.offset + int(h.BodyLength)
	if _, err := r.U16(); err != nil {
		return d, err
	}
	if _, err := r.U16(); err != nil {
		return d, err
	}
	readerID, err := r.Raw(4)
	if err != nil {
		return d, err
	}
	copy(d.ReaderID[:], readerID)
	writerID, err := r.Raw(4)
	if err != nil {
		return d, err
	}
	copy(d.WriterID[:], writerID)
	if d.WriterSN, err = r.SequenceNumber(); err != nil {
		return d, err
	}
	if d.FragmentStartNum, err = r.U32(); err != nil {
		return d, err
	}
	if d.FragmentsInSubmsg, err = r.U16(); err != nil {
		return d, err
	}
	if d.FragmentSize, err = r.U16(); err != nil {
		return d, err
	}
	if d.SampleSize, err = r.U32(); err != nil {
		return d, err
	}
	raw, err := r.Raw(end - r.offset)
	if err != nil {
		return d, err
	}
	d.FragmentData = raw
	return d, nil
}

// --- HEARTBEAT ---

const (
	HeartbeatFlagFinal       byte = 1 << 1
	HeartbeatFlagLiveliness  byte = 1 << 2
)

type HeartbeatSubmessage struct {
	Flags    byte
	ReaderID [4]byte
	WriterID [4]byte
	FirstSN  SequenceNumber
	LastSN   SequenceNumber
	Count    uint32
}

func EncodeHeartbeat(w *WriteCursor, h HeartbeatSubmessage) {
	off := w.BeginSubmessage(SubmsgHeartbeat, FlagEndianness|h.Flags)
	w.Raw(h.ReaderID[:])
	w.Raw(h.WriterID[:])
	w.SequenceNumber(h.FirstSN)
	w.SequenceNumber(h.LastSN)
	w.U32(h.Count)
	w.EndSubmessage(off)
}

func DecodeHeartbeat(r *ReadCursor, hdr SubmessageHeader) (HeartbeatSubmessage, error) {
	var h HeartbeatSubmessage
	h.Flags = hdr.Flags &^ FlagEndianness
	readerID, err := r.Raw(4)
	if err != nil {
		return h, err
	}
	copy(h.ReaderID[:], readerID)
	writerID, err := r.Raw(4)
	if err != nil {
		return h, err
	}
	copy(h.WriterID[:], writerID)
	if h.FirstSN, err = r.SequenceNumber(); err != nil {
		return h, err
	}
	if h.LastSN, err = r.SequenceNumber(); err != nil {
		return h, err
	}
	if h.Count, err = r.U32(); err != nil {
		return h, err
	}
	return h, nil
}

// --- ACKNACK ---

const AckNackFlagFinal byte = 1 << 1

// SNBitmap covers up to 256 bits of missing sequences starting at Base.
type SNBitmap struct {
	Base   SequenceNumber
	Bits   []uint32 // ceil(NumBits/32) words, MSB-first per word
	NumBits uint32
}

type AckNackSubmessage struct {
	Flags    byte
	ReaderID [4]byte
	WriterID [4]byte
	Base     SequenceNumber
	Bitmap   SNBitmap
	Count    uint32
}

func EncodeAckNack(w *WriteCursor, a AckNackSubmessage) {
	off := w.BeginSubmessage(SubmsgAckNack, FlagEndianness|a.Flags)
	w.Raw(a.ReaderID[:])
	w.Raw(a.WriterID[:])
	w.SequenceNumber(a.Base)
	w.U32(a.Bitmap.NumBits)
	for _, word := range a.Bitmap.Bits {
		w.U32(word)
	}
	w.U32(a.Count)
	w.EndSubmessage(off)
}

func DecodeAckNack(r *ReadCursor, h SubmessageHeader) (AckNackSubmessage, error) {
	var a AckNackSubmessage
	a.Flags = h.Flags &^ FlagEndianness
	readerID, err := r.Raw(4)
	if err != nil {
		return a, err
	}
	copy(a.ReaderID[:], readerID)
	writerID, err := r.Raw(4)
	if err != nil {
		return a, err
	}
	copy(a.WriterID[:], writerID)
	if a.Base, err = r.SequenceNumber(); err != nil {
		return a, err
	}
	numBits, err := r.U32()
	if err != nil {
		return a, err
	}
	if numBits > 256 {
		return a, herrors.New(herrors.KindInvalidFormat, "wire.DecodeAckNack", "bitmap exceeds 256 bits")
	}
	numWords := (numBits + 31) / 32
	words := make([]uint32, numWords)
	for i := range words {
		w, err := r.U32()
		if err != nil {
			return a, err
		}
		words[i] = w
	}
	a.Bitmap = SNBitmap{Base: a.Base, Bits: words, NumBits: numBits}
	if a.Count, err = r.U32(); err != nil {
		return a, err
	}
	return a, nil
}

// --- GAP ---

type GapSubmessage struct {
	ReaderID     [4]byte
	WriterID     [4]byte
	GapStart     SequenceNumber
	GapListBase  SequenceNumber
	Bitmap       SNBitmap
}

func EncodeGap(w *WriteCursor, g GapSubmessage) {
	off := w.BeginSubmessage(SubmsgGap, FlagEndianness)
	w.Raw(g.ReaderID[:])
	w.Raw(g.WriterID[:])
	w.SequenceNumber(g.GapStart)
	w.SequenceNumber(g.GapListBase)
	w.U32(g.Bitmap.NumBits)
	for _, word := range g.Bitmap.Bits {
		w.U32(word)
	}
	w.EndSubmessage(off)
}

func DecodeGap(r *ReadCursor, h SubmessageHeader) (GapSubmessage, error) {
	var g GapSubmessage
	readerID, err := r.Raw(4)
	if err != nil {
		return g, err
	}
	copy(g.ReaderID[:], readerID)
	writerID, err := r.Raw(4)
	if err != nil {
		return g, err
	}
	copy(g.WriterID[:], writerID)
	if g.GapStart, err = r.SequenceNumber(); err != nil {
		return g, err
	}
	if g.GapListBase, err = r.SequenceNumber(); err != nil {
		return g, err
	}
	numBits, err := r.U32()
	if err != nil {
		return g, err
	}
	numWords := (numBits + 31) / 32
	words := make([]uint32, numWords)
	for i := range words {
		w, err := r.U32()
		if err != nil {
			return g, err
		}
		words[i] = w
	}
	g.Bitmap = SNBitmap{Base: g.GapListBase, Bits: words, NumBits: numBits}
	return g, nil
}

// --- INFO_TS / INFO_DST ---

type InfoTSSubmessage struct {
	Seconds     int32
	Fraction    uint32
	Invalidate  bool // INVALIDATE flag: no timestamp follows
}

const infoTSFlagInvalidate byte = 1 << 1

func EncodeInfoTS(w *WriteCursor, t InfoTSSubmessage) {
	flags := FlagEndianness
	if t.Invalidate {
		flags |= infoTSFlagInvalidate
	}
	off := w.BeginSubmessage(SubmsgInfoTS, flags)
	if !t.Invalidate {
		w.I32(t.Seconds)
		w.U32(t.Fraction)
	}
	w.EndSubmessage(off)
}

func DecodeInfoTS(r *ReadCursor, h SubmessageHeader) (InfoTSSubmessage, error) {
	var t InfoTSSubmessage
	if h.Flags&infoTSFlagInvalidate != 0 {
		t.Invalidate = true
		return t, nil
	}
	var err error
	if t.Seconds, err = r.I32(); err != nil {
		return t, err
	}
	if t.Fraction, err = r.U32(); err != nil {
		return t, err
	}
	return t, nil
}

type InfoDstSubmessage struct {
	GuidPrefix [12]byte
}

func EncodeInfoDst(w *WriteCursor, d InfoDstSubmessage) {
	off := w.BeginSubmessage(SubmsgInfoDst, FlagEndianness)
	w.Raw(d.GuidPrefix[:])
	w.EndSubmessage(off)
}

func DecodeInfoDst(r *ReadCursor, h SubmessageHeader) (InfoDstSubmessage, error) {
	var d InfoDstSubmessage
	raw, err := r.Raw(12)
	if err != nil {
		return d, err
	}
	copy(d.GuidPrefix[:], raw)
	return d, nil
}
