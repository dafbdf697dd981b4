package wire

// SequenceNumber is the RTPS 64-bit sequence number, wire-encoded as
// (high:i32, low:u32) per spec.md §4.1.
type SequenceNumber int64

const SequenceNumberUnknown SequenceNumber = -1

func (c *ReadCursor) SequenceNumber() (SequenceNumber, error) {
	high, err := c.I32()
	if err != nil {
		return 0, err
	}
	low, err := c.U32()
	if err != nil {
		return 0, err
	}
	return SequenceNumber(int64(high)<<32 | int64(low)), nil
}

func (c *WriteCursor) SequenceNumber(sn SequenceNumber) {
	v := int64(sn)
	c.I32(int32(v >> 32))
	c.U32(uint32(v))
}
