package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeSuccessBothSidesDeriveSameSecret(t *testing.T) {
	initiator := NewHandshake()
	responder := NewHandshake()

	challengeReq, err := initiator.Begin()
	require.NoError(t, err)
	require.Len(t, challengeReq, 33)

	challengeResp, err := responder.Process(challengeReq)
	require.NoError(t, err)
	require.Len(t, challengeResp, 65)
	require.Equal(t, ChallengeReceived, responder.State())

	finalMsg, err := initiator.Process(challengeResp)
	require.NoError(t, err)
	require.Len(t, finalMsg, 33)
	require.Equal(t, Authenticated, initiator.State())

	resp, err := responder.Process(finalMsg)
	require.NoError(t, err)
	require.Nil(t, resp)
	require.Equal(t, Authenticated, responder.State())

	initiatorSecret, ok := initiator.SharedSecret()
	require.True(t, ok)
	responderSecret, ok := responder.SharedSecret()
	require.True(t, ok)
	require.Equal(t, initiatorSecret, responderSecret)
	require.Len(t, initiatorSecret, 64)
}

func TestHandshakeRejectsTamperedFinalMessage(t *testing.T) {
	initiator := NewHandshake()
	responder := NewHandshake()

	challengeReq, err := initiator.Begin()
	require.NoError(t, err)
	_, err = responder.Process(challengeReq)
	require.NoError(t, err)

	tampered := append([]byte{byte(msgFinalMessage)}, make([]byte, nonceSize)...)
	_, err = responder.Process(tampered)
	require.Error(t, err)
	require.Equal(t, Rejected, responder.State())
}

func TestHandshakeRejectsEmptyMessage(t *testing.T) {
	h := NewHandshake()
	_, err := h.Process(nil)
	require.Error(t, err)
	require.Equal(t, Rejected, h.State())
}

func TestHandshakeRejectsUnknownMessageType(t *testing.T) {
	h := NewHandshake()
	_, err := h.Process([]byte{99, 1, 2, 3})
	require.Error(t, err)
	require.Equal(t, Rejected, h.State())
}

func TestHandshakeRejectsOutOfOrderChallengeResponse(t *testing.T) {
	h := NewHandshake()
	_, err := h.Process(append([]byte{byte(msgChallengeResponse)}, make([]byte, 64)...))
	require.Error(t, err)
	require.Equal(t, Rejected, h.State())
}

func TestHandshakeSharedSecretUnavailableBeforeCompletion(t *testing.T) {
	h := NewHandshake()
	_, ok := h.SharedSecret()
	require.False(t, ok)

	_, err := h.Begin()
	require.NoError(t, err)
	_, ok = h.SharedSecret()
	require.False(t, ok)
}

func TestHandshakeBeginTwiceFails(t *testing.T) {
	h := NewHandshake()
	_, err := h.Begin()
	require.NoError(t, err)
	_, err = h.Begin()
	require.Error(t, err)
}
