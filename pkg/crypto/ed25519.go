// ed25519.go wraps the standard library's crypto/ed25519 for the one place
// this library still wants a classical (non-post-quantum) signature: signing
// session-resumption tickets (pkg/tunnel/ticket.go), where the signer and
// verifier are the same process within a ticket's short lifetime and
// post-quantum forgery resistance buys nothing a symmetric ticket-encryption
// key doesn't already provide. Long-term identity signing uses Dilithium
// (dilithium.go); this is deliberately the lighter-weight sibling.
package crypto

import (
	"crypto/ed25519"

	qerrors "github.com/qscore/qscore/internal/errors"
)

// Ed25519SignatureSize is the fixed size of an Ed25519 signature in bytes.
const Ed25519SignatureSize = ed25519.SignatureSize

// Ed25519KeyPair holds an Ed25519 signing key pair.
type Ed25519KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair using the system
// CSPRNG.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("Ed25519KeyPair.Generate", err)
	}
	return &Ed25519KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// Ed25519Sign signs msg with sk, returning a 64-byte signature.
func Ed25519Sign(sk ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return ed25519.Sign(sk, msg), nil
}

// Ed25519Verify reports whether sig is a valid signature over msg under pk.
func Ed25519Verify(pk ed25519.PublicKey, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pk, msg, sig)
}

// Zeroize clears the private key in place.
func (kp *Ed25519KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	Zeroize(kp.PrivateKey)
}
