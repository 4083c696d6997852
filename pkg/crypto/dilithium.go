// dilithium.go implements the Dilithium/ML-DSA signature scheme wrapper,
// mirroring mlkem.go's wrapper shape: opaque key types, Generate/Sign/Verify
// free functions, and Bytes()/Parse round-tripping.
//
// ML-DSA (NIST FIPS 204) signs by rejection sampling a response vector z
// until its coefficients and the low bits of w - c*s2 both fall under
// parameter-set-specific bounds. The polynomial arithmetic, NTT,
// Power2Round/Decompose/HighBits/LowBits/MakeHint/UseHint, the
// SampleInBall challenge derivation and the rejection-sampling loop itself
// live in internal/mldsa; this file is the byte-oriented, opaque-key API
// over it.
//
// Default security level: ML-DSA-65 (NIST Category 3, roughly
// AES-192-equivalent), matching this package's original single-level
// wrapper; GenerateDilithiumKeyPairAtLevel exposes the full level spread
// spec.md's parameter table names (2, 3, 5).
package crypto

import (
	"github.com/qscore/qscore/internal/constants"
	qerrors "github.com/qscore/qscore/internal/errors"
	"github.com/qscore/qscore/internal/mldsa"
)

// DilithiumPublicKey wraps an encoded ML-DSA public key.
type DilithiumPublicKey struct {
	params mldsa.ParameterSet
	bytes  []byte
}

// DilithiumPrivateKey wraps an encoded ML-DSA private key.
type DilithiumPrivateKey struct {
	params mldsa.ParameterSet
	bytes  []byte
}

// DilithiumKeyPair represents a Dilithium key pair for post-quantum signing.
type DilithiumKeyPair struct {
	// VerifyKey is the public key used by others to verify signatures
	VerifyKey *DilithiumPublicKey

	// SigningKey is the private key used to produce signatures
	SigningKey *DilithiumPrivateKey
}

// GenerateDilithiumKeyPair generates a new ML-DSA-65 key pair using the
// system CSPRNG.
func GenerateDilithiumKeyPair() (*DilithiumKeyPair, error) {
	return GenerateDilithiumKeyPairAtLevel(3)
}

// GenerateDilithiumKeyPairAtLevel generates a key pair at one of spec.md's
// named ML-DSA security levels (2, 3, or 5).
func GenerateDilithiumKeyPairAtLevel(level int) (*DilithiumKeyPair, error) {
	p, ok := mldsa.ByLevel(level)
	if !ok {
		return nil, qerrors.ErrInvalidKeySize
	}
	pk, sk, err := mldsa.GenerateKeyPair(Reader, p)
	if err != nil {
		return nil, qerrors.NewCryptoError("DilithiumKeyPair.Generate", err)
	}
	return &DilithiumKeyPair{
		VerifyKey:  &DilithiumPublicKey{params: p, bytes: pk},
		SigningKey: &DilithiumPrivateKey{params: p, bytes: sk},
	}, nil
}

// NewDilithiumKeyPairFromSeed deterministically derives a key pair from a
// 32-byte seed, for KAT reproduction and for deriving long-term QSMP
// identity keys from a master secret.
func NewDilithiumKeyPairFromSeed(seed []byte) (*DilithiumKeyPair, error) {
	return NewDilithiumKeyPairFromSeedAtLevel(seed, 3)
}

// NewDilithiumKeyPairFromSeedAtLevel is NewDilithiumKeyPairFromSeed
// generalized to any of spec.md's named ML-DSA levels.
func NewDilithiumKeyPairFromSeedAtLevel(seed []byte, level int) (*DilithiumKeyPair, error) {
	if len(seed) != constants.DilithiumSeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	p, ok := mldsa.ByLevel(level)
	if !ok {
		return nil, qerrors.ErrInvalidKeySize
	}
	pk, sk, err := mldsa.GenerateKeyPair(&deterministicReader{data: seed}, p)
	if err != nil {
		return nil, qerrors.NewCryptoError("DilithiumKeyPair.FromSeed", err)
	}
	return &DilithiumKeyPair{
		VerifyKey:  &DilithiumPublicKey{params: p, bytes: pk},
		SigningKey: &DilithiumPrivateKey{params: p, bytes: sk},
	}, nil
}

// DilithiumSign signs msg with the given signing key, returning a detached
// signature. Signing is hedged: it consults the package CSPRNG for fresh
// per-signature randomness, then derives the rejection-sampling loop's
// commitments deterministically from that randomness and the key material.
func DilithiumSign(sk *DilithiumPrivateKey, msg []byte) ([]byte, error) {
	if sk == nil || sk.bytes == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	sig, err := mldsa.Sign(Reader, sk.params, sk.bytes, msg)
	if err != nil {
		return nil, qerrors.NewCryptoError("DilithiumSign", err)
	}
	return sig, nil
}

// DilithiumVerify reports whether sig is a valid ML-DSA signature over msg
// under pk. It returns only a boolean, with no further diagnostics, to
// avoid opening oracle channels.
func DilithiumVerify(pk *DilithiumPublicKey, msg, sig []byte) bool {
	if pk == nil || pk.bytes == nil {
		return false
	}
	return mldsa.Verify(pk.params, pk.bytes, msg, sig)
}

// Bytes returns the encoded bytes of the public key.
func (pk *DilithiumPublicKey) Bytes() []byte {
	if pk == nil || pk.bytes == nil {
		return nil
	}
	out := make([]byte, len(pk.bytes))
	copy(out, pk.bytes)
	return out
}

// ParseDilithiumPublicKey parses an ML-DSA-65 public key from its encoded
// form.
func ParseDilithiumPublicKey(data []byte) (*DilithiumPublicKey, error) {
	return ParseDilithiumPublicKeyAtLevel(data, 3)
}

// ParseDilithiumPublicKeyAtLevel parses a public key encoded at the given
// security level.
func ParseDilithiumPublicKeyAtLevel(data []byte, level int) (*DilithiumPublicKey, error) {
	p, ok := mldsa.ByLevel(level)
	if !ok || len(data) != p.PublicKeySize() {
		return nil, qerrors.ErrInvalidPublicKey
	}
	out := make([]byte, len(data))
	copy(out, data)
	return &DilithiumPublicKey{params: p, bytes: out}, nil
}

// Zeroize securely erases the private key material.
func (kp *DilithiumKeyPair) Zeroize() {
	if kp.SigningKey != nil {
		Zeroize(kp.SigningKey.bytes)
		kp.SigningKey = nil
	}
	kp.VerifyKey = nil
}
