package wire

import (
	"testing"

	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	w := NewWriteCursor()
	w.U8(0xAB)
	w.U16(0x1234)
	w.U32(0xdeadbeef)
	w.U64(0x0102030405060708)
	w.I32(-42)
	w.F64(3.14159)
	w.Raw([]byte{1, 2, 3})
	w.Align(4)
	w.U32(0xcafebabe)

	r := NewReadCursor(w.Bytes())
	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i32, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(-42), i32)

	f64, err := r.F64()
	require.NoError(t, err)
	require.InDelta(t, 3.14159, f64, 1e-9)

	raw, err := r.Raw(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, raw)

	require.NoError(t, r.Align(4))

	u32b, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xcafebabe), u32b)
}

func TestCursorTruncated(t *testing.T) {
	r := NewReadCursor([]byte{0x01, 0x02})
	_, err := r.U32()
	require.Error(t, err)
	require.True(t, herrors.Is(err, herrors.KindTruncated))
	var e *herrors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, 0, e.Offset)
}

func TestAlignOverflow(t *testing.T) {
	r := NewReadCursor([]byte{0x01})
	_, err := r.U8()
	require.NoError(t, err)
	err = r.Align(8)
	require.Error(t, err)
	require.True(t, herrors.Is(err, herrors.KindBufferTooSmall))
}

func TestSequenceNumberRoundTrip(t *testing.T) {
	w := NewWriteCursor()
	w.SequenceNumber(SequenceNumber(0x0102030405060708))
	r := NewReadCursor(w.Bytes())
	sn, err := r.SequenceNumber()
	require.NoError(t, err)
	require.Equal(t, SequenceNumber(0x0102030405060708), sn)
}
