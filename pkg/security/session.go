package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/hdds-io/hdds/pkg/herrors"
)

// Cipher selects the AEAD construction a Session seals payloads with.
// Both derive their key the same way; AesGcm is the default, ChaCha20
// is offered for peers that prefer software-only AEAD without AES-NI.
type Cipher int

const (
	AesGcm Cipher = iota
	ChaCha20Poly1305
)

// Certs is the caller-supplied identity material EnableAuth(certs) takes
// (spec.md §6). HDDS does not validate chains or expiry itself — it
// treats PeerCert as an opaque blob exchanged by reference and trusts the
// caller to have already verified it against their own PKI.
type Certs struct {
	LocalCert []byte
	PeerCert  []byte
}

// Session is a SecurityPlugin: it implements Encrypt/Decrypt against
// pkg/participant.SecurityPlugin once a handshake has produced a shared
// secret, and supports rotating to a fresh key without losing the
// ability to decrypt messages sealed under the immediately prior key
// (a brief overlap window matches how RTPS HEARTBEATs can arrive
// interleaved with the rotation boundary).
type Session struct {
	mu         sync.RWMutex
	cipherKind Cipher
	current    cipher.AEAD
	previous   cipher.AEAD // accepted for Decrypt during one rotation window; nil otherwise
	sendNonce  uint64
	epoch      uint32
}

const sessionInfoLabel = "hdds-security-session-v1"

// NewSession derives a Session's initial AEAD key from a completed
// handshake's shared secret via HKDF-SHA256, domain-separated by a
// fixed info label so the derived key is never reused for any other
// purpose.
func NewSession(sharedSecret []byte, kind Cipher) (*Session, error) {
	aead, err := deriveAEAD(sharedSecret, 0, kind)
	if err != nil {
		return nil, err
	}
	return &Session{cipherKind: kind, current: aead}, nil
}

func deriveAEAD(secret []byte, epoch uint32, kind Cipher) (cipher.AEAD, error) {
	var epochBytes [4]byte
	binary.BigEndian.PutUint32(epochBytes[:], epoch)

	h := hkdf.New(sha256.New, secret, epochBytes[:], []byte(sessionInfoLabel))
	key := make([]byte, keySize(kind))
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, herrors.Wrap(herrors.KindCryptoError, "security.session", "key derivation failed", err)
	}

	switch kind {
	case AesGcm:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, herrors.Wrap(herrors.KindCryptoError, "security.session", "aes key setup failed", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, herrors.Wrap(herrors.KindCryptoError, "security.session", "gcm setup failed", err)
		}
		return aead, nil
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, herrors.Wrap(herrors.KindCryptoError, "security.session", "chacha20poly1305 setup failed", err)
		}
		return aead, nil
	default:
		return nil, herrors.New(herrors.KindConfig, "security.session", "unknown cipher kind")
	}
}

func keySize(kind Cipher) int {
	if kind == ChaCha20Poly1305 {
		return chacha20poly1305.KeySize
	}
	return 32 // AES-256
}

// RotateKey replaces the session's AEAD under a write lock, deriving the
// next key from the same shared secret at an incremented epoch so both
// peers rotate to the identical key without a further handshake round
// trip. The outgoing key is kept as previous so in-flight messages
// sealed just before rotation still decrypt.
func (s *Session) RotateKey(sharedSecret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := deriveAEAD(sharedSecret, s.epoch+1, s.cipherKind)
	if err != nil {
		return err
	}
	s.previous = s.current
	s.current = next
	s.epoch++
	atomic.StoreUint64(&s.sendNonce, 0)
	return nil
}

// Encrypt seals plaintext under the session's current key, prepending a
// monotonically-increasing nonce so Decrypt never needs out-of-band
// sequencing.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.RLock()
	aead := s.current
	s.mu.RUnlock()

	seq := atomic.AddUint64(&s.sendNonce, 1)
	nonce := make([]byte, aead.NonceSize())
	binary.BigEndian.PutUint64(nonce[len(nonce)-8:], seq)

	out := make([]byte, len(nonce), len(nonce)+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt, trying the current key
// first and falling back to the previous key across a rotation boundary.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.RLock()
	current, previous := s.current, s.previous
	s.mu.RUnlock()

	nonceSize := current.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, herrors.New(herrors.KindCryptoError, "security.session", "ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	if pt, err := current.Open(nil, nonce, sealed, nil); err == nil {
		return pt, nil
	}
	if previous != nil {
		if pt, err := previous.Open(nil, nonce, sealed, nil); err == nil {
			return pt, nil
		}
	}
	return nil, herrors.New(herrors.KindCryptoError, "security.session", "authentication failed")
}
