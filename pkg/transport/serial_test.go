package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/stretchr/testify/require"
)

type loopDevice struct {
	*bytes.Buffer
}

func (l loopDevice) Close() error { return nil }

func TestCRC16RoundTripDetectsCorruption(t *testing.T) {
	frame, err := encodeSerialFrame(1, []byte("hi"))
	require.NoError(t, err)

	decoded, err := decodeSerialFrame(frame)
	require.NoError(t, err)
	require.Equal(t, byte(1), decoded.Source)
	require.Equal(t, []byte("hi"), decoded.Payload)

	frame[len(frame)-3] ^= 0xFF // corrupt the CRC high byte
	_, err = decodeSerialFrame(frame)
	require.Error(t, err)
}

func TestSerialSendRecvSmallSample(t *testing.T) {
	dev := loopDevice{bytes.NewBuffer(nil)}
	s := NewSerial(dev, 7)
	require.NoError(t, s.Init())

	require.NoError(t, s.Send([]byte("small sample"), guid.Locator{}))

	buf := make([]byte, 64)
	n, src, err := s.TryRecv(buf)
	require.NoError(t, err)
	require.Equal(t, "small sample", string(buf[:n]))
	require.Equal(t, uint32(7), src.Port)
}

func TestFragmentAssemblerReassemblesInOrder(t *testing.T) {
	a := NewFragmentAssembler()
	_, complete := a.Add(fragHeader{SampleID: 1, FragIndex: 1, FragCount: 3}, []byte("B"))
	require.False(t, complete)
	_, complete = a.Add(fragHeader{SampleID: 1, FragIndex: 0, FragCount: 3}, []byte("A"))
	require.False(t, complete)
	data, complete := a.Add(fragHeader{SampleID: 1, FragIndex: 2, FragCount: 3}, []byte("C"))
	require.True(t, complete)
	require.Equal(t, []byte("ABC"), data)
}

func TestFragmentAssemblerEvictsOldestSlotWhenFull(t *testing.T) {
	a := NewFragmentAssembler()
	for id := byte(0); id < reassemblySlots; id++ {
		a.Add(fragHeader{SampleID: id, FragIndex: 0, FragCount: 2}, []byte{id})
	}
	// A 5th concurrent sample must evict slot 0 round-robin.
	a.Add(fragHeader{SampleID: 99, FragIndex: 0, FragCount: 2}, []byte("x"))
	require.Equal(t, byte(99), a.slots[0].sampleID)
}

var _ io.ReadWriteCloser = loopDevice{}
