package congestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterPacerPrioritizesP0OverP1(t *testing.T) {
	bucket := NewTokenBucket(1000, 1000)
	p := NewWriterPacer(bucket, 10, 0.1)
	p.Enqueue(Sample{Priority: P1, Payload: []byte("bulk")})
	p.Enqueue(Sample{Priority: P0, Payload: []byte("urgent")})

	s, res := p.TrySend()
	require.Equal(t, SendOK, res)
	require.Equal(t, []byte("urgent"), s.Payload)
}

func TestWriterPacerP0BypassesExhaustedBucket(t *testing.T) {
	bucket := NewTokenBucket(0, 0)
	p := NewWriterPacer(bucket, 10, 0.1)
	p.Enqueue(Sample{Priority: P0, Payload: []byte("urgent")})

	_, res := p.TrySend()
	require.Equal(t, SendOK, res)
}

func TestWriterPacerP1BlocksOnEmptyBucket(t *testing.T) {
	bucket := NewTokenBucket(0, 0)
	p := NewWriterPacer(bucket, 10, 0.1)
	p.Enqueue(Sample{Priority: P1, Payload: []byte("bulk")})

	_, res := p.TrySend()
	require.Equal(t, SendWouldBlock, res)
}

func TestWriterPacerEmptyReportsEmpty(t *testing.T) {
	p := NewWriterPacer(NewTokenBucket(100, 100), 10, 0.1)
	_, res := p.TrySend()
	require.Equal(t, SendEmpty, res)
}
