package security

import "github.com/hdds-io/hdds/pkg/herrors"

// Authenticator drives a Handshake to completion and hands back the
// resulting Session. It is the shape EnableAuth(certs) constructs:
// spec.md §6's builder option supplies certs so a caller-chosen transport
// can exchange handshake messages out of band before the participant's
// data path ever needs a SecurityPlugin.
type Authenticator struct {
	certs     Certs
	handshake *Handshake
	cipher    Cipher
}

// NewAuthenticator starts a fresh, un-driven handshake. Certs are carried
// for the caller's own verification step — HDDS treats them as opaque.
func NewAuthenticator(certs Certs, cipher Cipher) *Authenticator {
	return &Authenticator{certs: certs, handshake: NewHandshake(), cipher: cipher}
}

func (a *Authenticator) Certs() Certs { return a.certs }

// BeginAsInitiator returns the CHALLENGE_REQUEST to send to the peer.
func (a *Authenticator) BeginAsInitiator() ([]byte, error) {
	return a.handshake.Begin()
}

// Process feeds one received handshake message through the FSM. Once it
// returns a nil response with a nil error, the handshake has either
// reached Authenticated (call Session) or the prior call already
// returned an error and latched Rejected.
func (a *Authenticator) Process(message []byte) ([]byte, error) {
	return a.handshake.Process(message)
}

func (a *Authenticator) State() HandshakeState { return a.handshake.State() }

// Session materializes the authenticated handshake into a SecurityPlugin
// implementation. Returns an error if the handshake has not reached
// Authenticated.
func (a *Authenticator) Session() (*Session, error) {
	secret, ok := a.handshake.SharedSecret()
	if !ok {
		return nil, herrors.New(herrors.KindAuthenticationFailed, "security.authenticator", "handshake not authenticated")
	}
	return NewSession(secret, a.cipher)
}
