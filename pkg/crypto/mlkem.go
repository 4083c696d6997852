// mlkem.go implements the ML-KEM key encapsulation mechanism wrapper.
//
// ML-KEM (Module-Lattice-based Key-Encapsulation Mechanism) is standardized in
// NIST FIPS 203. The security of ML-KEM is based on the computational difficulty
// of the Module Learning With Errors (MLWE) problem.
//
// Mathematical Foundation:
//
// The MLWE problem is defined over the polynomial ring R_q = Z_q[X]/(X^n + 1)
// where n = 256 and q = 3329.
//
// Given (A, b = As + e) where:
//   - A ∈ R_q^{k×k} is a uniformly random matrix
//   - s ∈ R_q^k is the secret vector
//   - e is an error vector sampled from a centered binomial distribution
//
// It is computationally infeasible to distinguish (A, As + e) from uniform random.
//
// The polynomial arithmetic, NTT, noise sampling, Compress/Decompress and the
// Fujisaki-Okamoto CCA wrapper live in internal/mlkem; this file is the
// byte-oriented, opaque-key API over it. The default security level is
// ML-KEM-1024 (k=4, NIST category 5), matching this package's original
// single-level wrapper; GenerateMLKEMKeyPairAtLevel exposes the full level
// spread spec.md's parameter table names (1, 3, 5, 6).
package crypto

import (
	qerrors "github.com/qscore/qscore/internal/errors"
	"github.com/qscore/qscore/internal/mlkem"
)

// MLKEMPublicKey wraps an encoded ML-KEM public key.
type MLKEMPublicKey struct {
	params mlkem.ParameterSet
	bytes  []byte
}

// MLKEMPrivateKey wraps an encoded ML-KEM private key.
type MLKEMPrivateKey struct {
	params mlkem.ParameterSet
	bytes  []byte
}

// MLKEMKeyPair represents an ML-KEM key pair for post-quantum key encapsulation.
type MLKEMKeyPair struct {
	// EncapsulationKey is the public key used by others to encapsulate secrets
	EncapsulationKey *MLKEMPublicKey

	// DecapsulationKey is the private key used to decapsulate secrets
	DecapsulationKey *MLKEMPrivateKey
}

// GenerateMLKEMKeyPair generates a new ML-KEM-1024 key pair.
//
// The key generation process:
// 1. Sample random seed d ← {0,1}^256
// 2. Sample random seed z ← {0,1}^256
// 3. Expand matrix A from seed using SHAKE-128
// 4. Sample secret vector s and error vector e from CBD(η₁)
// 5. Compute public key pk = (A, As + e)
// 6. Compute private key sk = (s, pk, H(pk), z)
//
// Returns error if the system's CSPRNG fails.
func GenerateMLKEMKeyPair() (*MLKEMKeyPair, error) {
	return GenerateMLKEMKeyPairAtLevel(5)
}

// GenerateMLKEMKeyPairAtLevel generates a key pair at one of spec.md's named
// ML-KEM security levels (1, 3, 5, or the non-standard extension level 6).
func GenerateMLKEMKeyPairAtLevel(level int) (*MLKEMKeyPair, error) {
	p, ok := mlkem.ByLevel(level)
	if !ok {
		return nil, qerrors.ErrInvalidKeySize
	}
	ek, dk, err := mlkem.GenerateKeyPair(Reader, p)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEMKeyPair.Generate", err)
	}
	return &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{params: p, bytes: ek},
		DecapsulationKey: &MLKEMPrivateKey{params: p, bytes: dk},
	}, nil
}

// NewMLKEMKeyPairFromSeed generates an ML-KEM-1024 key pair from a 64-byte seed.
// This is deterministic: the same seed will always produce the same key pair.
//
// The seed should be generated from a cryptographically secure source.
// This function is useful for key derivation from a master secret.
func NewMLKEMKeyPairFromSeed(seed []byte) (*MLKEMKeyPair, error) {
	return NewMLKEMKeyPairFromSeedAtLevel(seed, 5)
}

// NewMLKEMKeyPairFromSeedAtLevel is NewMLKEMKeyPairFromSeed generalized to
// any of spec.md's named ML-KEM levels.
func NewMLKEMKeyPairFromSeedAtLevel(seed []byte, level int) (*MLKEMKeyPair, error) {
	if len(seed) != 64 {
		return nil, qerrors.ErrInvalidKeySize
	}
	p, ok := mlkem.ByLevel(level)
	if !ok {
		return nil, qerrors.ErrInvalidKeySize
	}

	ek, dk, err := mlkem.GenerateKeyPair(&deterministicReader{data: seed}, p)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEMKeyPair.FromSeed", err)
	}
	return &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{params: p, bytes: ek},
		DecapsulationKey: &MLKEMPrivateKey{params: p, bytes: dk},
	}, nil
}

// deterministicReader provides deterministic "randomness" from a seed
type deterministicReader struct {
	data   []byte
	offset int
}

func (r *deterministicReader) Read(p []byte) (n int, err error) {
	n = copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

// MLKEMEncapsulate performs key encapsulation against ek's security level.
//
// Encapsulation process:
// 1. Sample random coins m ← {0,1}^256
// 2. Compute (K̄, r) = G(m || H(pk)) where G is SHA3-512
// 3. Compute ciphertext c using r as randomness
// 4. Compute K = KDF(K̄ || H(c)) as the final shared secret
//
// Parameters:
//   - ek: The recipient's encapsulation key (public key)
//
// Returns:
//   - ciphertext: The encapsulated ciphertext
//   - sharedSecret: The shared secret (32 bytes)
//   - error: Non-nil if encapsulation fails
func MLKEMEncapsulate(ek *MLKEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	if ek == nil || ek.bytes == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	ct, ss, err := mlkem.Encapsulate(Reader, ek.params, ek.bytes)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("MLKEMEncapsulate", err)
	}
	return ct, ss, nil
}

// MLKEMDecapsulate performs key decapsulation.
//
// Decapsulation process (IND-CCA2 secure via Fujisaki-Okamoto transform):
// 1. Decrypt ciphertext c to obtain m'
// 2. Recompute (K̄', r') = G(m' || H(pk))
// 3. Re-encrypt m' with r' to get c'
// 4. If c == c': return K = KDF(K̄' || H(c))
// 5. If c != c': return K = KDF(z || H(c)) (implicit rejection)
//
// The implicit rejection (step 5) ensures that decapsulation always returns
// a value that looks random, preventing distinguishing attacks.
//
// Parameters:
//   - dk: The decapsulation key (private key)
//   - ciphertext: The ciphertext to decapsulate
//
// Returns:
//   - sharedSecret: The shared secret (32 bytes)
//   - error: Non-nil if ciphertext is malformed
func MLKEMDecapsulate(dk *MLKEMPrivateKey, ciphertext []byte) ([]byte, error) {
	if dk == nil || dk.bytes == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != dk.params.CiphertextSize() {
		return nil, qerrors.ErrInvalidCiphertext
	}
	ss, err := mlkem.Decapsulate(dk.params, dk.bytes, ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEMDecapsulate", err)
	}
	return ss, nil
}

// Bytes returns the encoded bytes of the public key.
func (pk *MLKEMPublicKey) Bytes() []byte {
	if pk == nil || pk.bytes == nil {
		return nil
	}
	out := make([]byte, len(pk.bytes))
	copy(out, pk.bytes)
	return out
}

// PublicKeyBytes returns the encoded bytes of the encapsulation key.
func (kp *MLKEMKeyPair) PublicKeyBytes() []byte {
	return kp.EncapsulationKey.Bytes()
}

// ParseMLKEMPublicKey parses an ML-KEM-1024 public key from its encoded form.
func ParseMLKEMPublicKey(data []byte) (*MLKEMPublicKey, error) {
	return ParseMLKEMPublicKeyAtLevel(data, 5)
}

// ParseMLKEMPublicKeyAtLevel parses a public key encoded at the given
// security level.
func ParseMLKEMPublicKeyAtLevel(data []byte, level int) (*MLKEMPublicKey, error) {
	p, ok := mlkem.ByLevel(level)
	if !ok || len(data) != p.PublicKeySize() {
		return nil, qerrors.ErrInvalidPublicKey
	}
	out := make([]byte, len(data))
	copy(out, data)
	return &MLKEMPublicKey{params: p, bytes: out}, nil
}

// Zeroize securely erases the private key material.
// This should be called when the key pair is no longer needed.
func (kp *MLKEMKeyPair) Zeroize() {
	if kp.DecapsulationKey != nil {
		Zeroize(kp.DecapsulationKey.bytes)
		kp.DecapsulationKey = nil
	}
	kp.EncapsulationKey = nil
}
