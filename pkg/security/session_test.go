package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func completedPair(t *testing.T) (*Handshake, *Handshake) {
	t.Helper()
	initiator := NewHandshake()
	responder := NewHandshake()

	req, err := initiator.Begin()
	require.NoError(t, err)
	resp, err := responder.Process(req)
	require.NoError(t, err)
	final, err := initiator.Process(resp)
	require.NoError(t, err)
	_, err = responder.Process(final)
	require.NoError(t, err)
	return initiator, responder
}

func TestSessionEncryptDecryptRoundTripsAesGcm(t *testing.T) {
	initiator, responder := completedPair(t)
	secretA, _ := initiator.SharedSecret()
	secretB, _ := responder.SharedSecret()

	sessA, err := NewSession(secretA, AesGcm)
	require.NoError(t, err)
	sessB, err := NewSession(secretB, AesGcm)
	require.NoError(t, err)

	plaintext := []byte("rtps user data payload")
	ciphertext, err := sessA.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := sessB.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestSessionEncryptDecryptRoundTripsChaCha20Poly1305(t *testing.T) {
	initiator, responder := completedPair(t)
	secretA, _ := initiator.SharedSecret()
	secretB, _ := responder.SharedSecret()

	sessA, err := NewSession(secretA, ChaCha20Poly1305)
	require.NoError(t, err)
	sessB, err := NewSession(secretB, ChaCha20Poly1305)
	require.NoError(t, err)

	plaintext := []byte("another payload")
	ciphertext, err := sessA.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted, err := sessB.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestSessionRejectsTamperedCiphertext(t *testing.T) {
	initiator, responder := completedPair(t)
	secretA, _ := initiator.SharedSecret()
	secretB, _ := responder.SharedSecret()

	sessA, err := NewSession(secretA, AesGcm)
	require.NoError(t, err)
	sessB, err := NewSession(secretB, AesGcm)
	require.NoError(t, err)

	ciphertext, err := sessA.Encrypt([]byte("hello"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = sessB.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestSessionRotateKeyStillAcceptsMessagesSealedJustBeforeRotation(t *testing.T) {
	initiator, responder := completedPair(t)
	secretA, _ := initiator.SharedSecret()
	secretB, _ := responder.SharedSecret()

	sessA, err := NewSession(secretA, AesGcm)
	require.NoError(t, err)
	sessB, err := NewSession(secretB, AesGcm)
	require.NoError(t, err)

	inFlight, err := sessA.Encrypt([]byte("sent just before rotation"))
	require.NoError(t, err)

	require.NoError(t, sessA.RotateKey(secretA))
	require.NoError(t, sessB.RotateKey(secretB))

	decrypted, err := sessB.Decrypt(inFlight)
	require.NoError(t, err)
	require.Equal(t, "sent just before rotation", string(decrypted))

	afterRotation, err := sessA.Encrypt([]byte("sent after rotation"))
	require.NoError(t, err)
	decrypted, err = sessB.Decrypt(afterRotation)
	require.NoError(t, err)
	require.Equal(t, "sent after rotation", string(decrypted))
}

func TestSessionRotateKeyEventuallyInvalidatesOldKey(t *testing.T) {
	initiator, responder := completedPair(t)
	secretA, _ := initiator.SharedSecret()
	secretB, _ := responder.SharedSecret()

	sessA, err := NewSession(secretA, AesGcm)
	require.NoError(t, err)
	sessB, err := NewSession(secretB, AesGcm)
	require.NoError(t, err)

	stale, err := sessA.Encrypt([]byte("old epoch"))
	require.NoError(t, err)

	// Two rotations: the key active when `stale` was sealed is no longer
	// either current or previous.
	require.NoError(t, sessA.RotateKey(secretA))
	require.NoError(t, sessB.RotateKey(secretB))
	require.NoError(t, sessA.RotateKey(secretA))
	require.NoError(t, sessB.RotateKey(secretB))

	_, err = sessB.Decrypt(stale)
	require.Error(t, err)
}
