// Package wire implements the CDR2 byte-cursor primitives and RTPS
// submessage codec of spec.md §4.1. Every read/write is bounds-checked;
// overflow past the buffer never panics — it returns a categorized
// *herrors.Error carrying the attempted offset, generalizing the
// teacher's BitStream.ReadByte/ReadBytes bounds checks to every fixed
// width and to alignment.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/hdds-io/hdds/pkg/herrors"
)

// ReadCursor reads from a borrowed byte buffer. Its fixed-width reads are
// little-endian (per spec.md §4.1's flags-byte LSB convention); the CDR
// encapsulation header read by Encapsulation is the one big-endian field.
type ReadCursor struct {
	buf    []byte
	offset int
}

func NewReadCursor(buf []byte) *ReadCursor {
	return &ReadCursor{buf: buf}
}

func (c *ReadCursor) Offset() int     { return c.offset }
func (c *ReadCursor) Remaining() int  { return len(c.buf) - c.offset }
func (c *ReadCursor) Bytes() []byte   { return c.buf }

func (c *ReadCursor) need(n int, reason string) error {
	if n < 0 || c.offset+n > len(c.buf) {
		return herrors.AtOffset(herrors.KindTruncated, "wire.ReadCursor", c.offset, reason)
	}
	return nil
}

func (c *ReadCursor) U8() (uint8, error) {
	if err := c.need(1, "u8"); err != nil {
		return 0, err
	}
	v := c.buf[c.offset]
	c.offset++
	return v, nil
}

func (c *ReadCursor) U16() (uint16, error) {
	if err := c.need(2, "u16"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.offset:])
	c.offset += 2
	return v, nil
}

func (c *ReadCursor) U32() (uint32, error) {
	if err := c.need(4, "u32"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.offset:])
	c.offset += 4
	return v, nil
}

func (c *ReadCursor) U64() (uint64, error) {
	if err := c.need(8, "u64"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.offset:])
	c.offset += 8
	return v, nil
}

func (c *ReadCursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *ReadCursor) F64() (float64, error) {
	v, err := c.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Raw reads n raw bytes. The returned slice aliases the underlying buffer;
// callers that retain it beyond the cursor's lifetime must copy.
func (c *ReadCursor) Raw(n int) ([]byte, error) {
	if err := c.need(n, "raw"); err != nil {
		return nil, err
	}
	v := c.buf[c.offset : c.offset+n]
	c.offset += n
	return v, nil
}

// Align rounds the offset up to a multiple of n (n in {1,2,4,8}), failing
// with BufferTooSmall if the aligned offset runs past the buffer.
func (c *ReadCursor) Align(n int) error {
	aligned := alignUp(c.offset, n)
	if aligned > len(c.buf) {
		return herrors.AtOffset(herrors.KindBufferTooSmall, "wire.ReadCursor", c.offset, "align overflow")
	}
	c.offset = aligned
	return nil
}

func alignUp(offset, n int) int {
	if n <= 1 {
		return offset
	}
	rem := offset % n
	if rem == 0 {
		return offset
	}
	return offset + (n - rem)
}

// WriteCursor appends to a growable byte buffer.
type WriteCursor struct {
	buf []byte
}

func NewWriteCursor() *WriteCursor {
	return &WriteCursor{buf: make([]byte, 0, 64)}
}

func NewWriteCursorCap(capacity int) *WriteCursor {
	return &WriteCursor{buf: make([]byte, 0, capacity)}
}

func (c *WriteCursor) Offset() int   { return len(c.buf) }
func (c *WriteCursor) Bytes() []byte { return c.buf }

func (c *WriteCursor) U8(v uint8) { c.buf = append(c.buf, v) }

func (c *WriteCursor) U16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	c.buf = append(c.buf, tmp[:]...)
}

func (c *WriteCursor) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	c.buf = append(c.buf, tmp[:]...)
}

func (c *WriteCursor) U64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	c.buf = append(c.buf, tmp[:]...)
}

func (c *WriteCursor) I32(v int32) { c.U32(uint32(v)) }

func (c *WriteCursor) F64(v float64) { c.U64(math.Float64bits(v)) }

func (c *WriteCursor) Raw(b []byte) { c.buf = append(c.buf, b...) }

// Align pads with zero bytes up to the next multiple of n.
func (c *WriteCursor) Align(n int) {
	aligned := alignUp(len(c.buf), n)
	for len(c.buf) < aligned {
		c.buf = append(c.buf, 0)
	}
}

// PatchU32 overwrites a previously written u32 at a fixed offset — used to
// backpatch a submessage's body_length once the body has been written.
func (c *WriteCursor) PatchU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(c.buf[offset:offset+4], v)
}
