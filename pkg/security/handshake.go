// Package security implements HDDS's optional authentication plug-in
// (spec.md §6's Security: None | EnableAuth(certs) builder option).
// HDDS ships no certificate authority or identity store: EnableAuth takes
// caller-supplied certs purely as an opaque identity token exchanged
// during the handshake, and the handshake itself never inspects them
// beyond presence — verifying a certificate chain is left to the caller's
// own PKI tooling before a Session is ever constructed.
package security

import (
	"crypto/rand"
	"fmt"

	"github.com/hdds-io/hdds/pkg/herrors"
)

// HandshakeState is the FSM's current stage (OMG DDS Security v1.1
// §8.3.3's challenge-response handshake).
type HandshakeState int

const (
	Idle HandshakeState = iota
	ChallengeSent
	ChallengeReceived
	Authenticated
	Rejected
)

func (s HandshakeState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChallengeSent:
		return "challenge_sent"
	case ChallengeReceived:
		return "challenge_received"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type messageType byte

const (
	msgChallengeRequest messageType = 1
	msgChallengeResponse messageType = 2
	msgFinalMessage     messageType = 3
)

const nonceSize = 32

// Handshake drives one side of the challenge-response exchange. It is not
// safe for concurrent use; a participant owns one Handshake per in-flight
// peer authentication.
type Handshake struct {
	state        HandshakeState
	localNonce   [nonceSize]byte
	remoteNonce  [nonceSize]byte
	haveLocal    bool
	haveRemote   bool
}

// NewHandshake returns a Handshake in its Idle state.
func NewHandshake() *Handshake {
	return &Handshake{state: Idle}
}

func (h *Handshake) State() HandshakeState { return h.state }

// Begin starts the handshake as initiator, returning the
// CHALLENGE_REQUEST message to send to the peer.
func (h *Handshake) Begin() ([]byte, error) {
	if h.state != Idle {
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "handshake already in progress")
	}
	if _, err := rand.Read(h.localNonce[:]); err != nil {
		return nil, herrors.Wrap(herrors.KindAuthenticationFailed, "security.handshake", "nonce generation failed", err)
	}
	h.haveLocal = true
	h.state = ChallengeSent

	msg := make([]byte, 1+nonceSize)
	msg[0] = byte(msgChallengeRequest)
	copy(msg[1:], h.localNonce[:])
	return msg, nil
}

// Process feeds one received handshake message through the FSM,
// returning the response to send back (nil once no response is needed)
// or an error that latches the handshake into Rejected.
func (h *Handshake) Process(message []byte) ([]byte, error) {
	if len(message) == 0 {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "empty handshake message")
	}

	switch messageType(message[0]) {
	case msgChallengeRequest:
		return h.handleChallengeRequest(message[1:])
	case msgChallengeResponse:
		return h.handleChallengeResponse(message[1:])
	case msgFinalMessage:
		return h.handleFinalMessage(message[1:])
	default:
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", fmt.Sprintf("unknown handshake message type: %d", message[0]))
	}
}

func (h *Handshake) handleChallengeRequest(payload []byte) ([]byte, error) {
	if h.state != Idle {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "unexpected challenge request")
	}
	if len(payload) < nonceSize {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "challenge request nonce too short")
	}
	copy(h.remoteNonce[:], payload[:nonceSize])
	h.haveRemote = true

	if _, err := rand.Read(h.localNonce[:]); err != nil {
		h.state = Rejected
		return nil, herrors.Wrap(herrors.KindAuthenticationFailed, "security.handshake", "nonce generation failed", err)
	}
	h.haveLocal = true
	h.state = ChallengeReceived

	resp := make([]byte, 1+2*nonceSize)
	resp[0] = byte(msgChallengeResponse)
	copy(resp[1:], h.localNonce[:])
	copy(resp[1+nonceSize:], h.remoteNonce[:])
	return resp, nil
}

func (h *Handshake) handleChallengeResponse(payload []byte) ([]byte, error) {
	if h.state != ChallengeSent {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "unexpected challenge response")
	}
	if len(payload) < 2*nonceSize {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "challenge response nonce too short")
	}
	var remoteNonce, echoed [nonceSize]byte
	copy(remoteNonce[:], payload[:nonceSize])
	copy(echoed[:], payload[nonceSize:2*nonceSize])

	if !h.haveLocal || echoed != h.localNonce {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "nonce mismatch - possible replay attack")
	}
	h.remoteNonce = remoteNonce
	h.haveRemote = true

	final := make([]byte, 1+nonceSize)
	final[0] = byte(msgFinalMessage)
	copy(final[1:], h.remoteNonce[:])
	h.state = Authenticated
	return final, nil
}

func (h *Handshake) handleFinalMessage(payload []byte) ([]byte, error) {
	if h.state != ChallengeReceived {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "unexpected final message")
	}
	if len(payload) < nonceSize {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "final message nonce too short")
	}
	var echoed [nonceSize]byte
	copy(echoed[:], payload[:nonceSize])
	if !h.haveLocal || echoed != h.localNonce {
		h.state = Rejected
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.handshake", "nonce mismatch - possible replay attack")
	}
	h.state = Authenticated
	return nil, nil
}

// SharedSecret returns the 64-byte secret derived from both nonces in
// lexicographic order, so initiator and responder agree on the same
// bytes regardless of role. Only valid once Authenticated.
func (h *Handshake) SharedSecret() ([]byte, bool) {
	if h.state != Authenticated || !h.haveLocal || !h.haveRemote {
		return nil, false
	}
	secret := make([]byte, 0, 2*nonceSize)
	a, b := h.localNonce[:], h.remoteNonce[:]
	if lexLess(a, b) {
		secret = append(secret, a...)
		secret = append(secret, b...)
	} else {
		secret = append(secret, b...)
		secret = append(secret, a...)
	}
	return secret, true
}

func lexLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
