// Package mlkem implements the Kyber / ML-KEM key-encapsulation mechanism
// (NIST FIPS 203) from its polynomial-ring arithmetic up: the number-theoretic
// transform over Z_3329[X]/(X^256+1), centered-binomial noise sampling,
// Compress/Decompress bit-dropping, and the implicit-rejection
// Fujisaki-Okamoto wrapper that lifts the IND-CPA scheme (K-PKE) to an
// IND-CCA2 KEM.
//
// pkg/crypto/mlkem.go is the byte-oriented, opaque-key public wrapper around
// this package; this package holds the actual ring math spec.md section 4.6
// describes, built the same way internal/keccak and internal/rijndael were:
// from the primitive operations up, with no external KEM library.
package mlkem

const (
	n        = 256  // polynomial degree
	q        = 3329 // modulus
	symBytes = 32    // width of all the hash/seed quantities: rho, sigma, z, m, shared secret
	eta2     = 2     // noise width used for e2 at every security level
)

// ParameterSet fixes the module rank and noise/compression widths for one
// ML-KEM security level. K, Eta1, Du and Dv are exactly the columns of
// spec.md's Kyber parameter table.
type ParameterSet struct {
	Name string
	K    int // module rank (number of polynomials per vector)
	Eta1 int // CBD noise width for s and e
	Du   int // compression width for the ciphertext's u component
	Dv   int // compression width for the ciphertext's v component
}

var (
	// Level1 is ML-KEM-512, NIST category 1.
	Level1 = ParameterSet{Name: "ML-KEM-512", K: 2, Eta1: 3, Du: 10, Dv: 4}
	// Level3 is ML-KEM-768, NIST category 3.
	Level3 = ParameterSet{Name: "ML-KEM-768", K: 3, Eta1: 2, Du: 10, Dv: 4}
	// Level5 is ML-KEM-1024, NIST category 5. This is the level the teacher
	// VPN hardcoded and remains the package default.
	Level5 = ParameterSet{Name: "ML-KEM-1024", K: 4, Eta1: 2, Du: 11, Dv: 5}
	// Level6 is the spec's S6P3936 extension: a k=5 module rank with no FIPS
	// 203 counterpart, named for its 3936-byte decapsulation key. Not
	// interoperable with any standardized ML-KEM implementation; it exists
	// because spec.md's parameter table lists it as a resolved Open Question.
	Level6 = ParameterSet{Name: "S6P3936", K: 5, Eta1: 2, Du: 11, Dv: 5}
)

// ByLevel resolves one of the NIST security levels (1, 3, 5) or the
// non-standard extension level (6) named in spec.md's parameter table.
func ByLevel(level int) (ParameterSet, bool) {
	switch level {
	case 1:
		return Level1, true
	case 3:
		return Level3, true
	case 5:
		return Level5, true
	case 6:
		return Level6, true
	default:
		return ParameterSet{}, false
	}
}

// PublicKeySize is the encapsulation key size: a ByteEncode_12 packing of the
// t vector (384*K bytes, 12 bits per coefficient) plus the 32-byte matrix
// seed rho.
func (p ParameterSet) PublicKeySize() int { return 384*p.K + symBytes }

// PrivateKeySize is the decapsulation key size: the packed s vector
// (384*K), the full encapsulation key (PublicKeySize), H(ek) and the
// implicit-rejection seed z (32 bytes each).
func (p ParameterSet) PrivateKeySize() int {
	return 384*p.K + p.PublicKeySize() + 2*symBytes
}

// CiphertextSize is 32*(Du*K + Dv): the compressed-and-packed u vector
// (K polynomials at Du bits each) followed by v (one polynomial at Dv bits).
func (p ParameterSet) CiphertextSize() int { return 32 * (p.Du*p.K + p.Dv) }

// SharedSecretSize is fixed at 32 bytes for every level.
func (p ParameterSet) SharedSecretSize() int { return symBytes }

// indcpaPublicKeySize and indcpaSecretKeySize are the sizes of the inner
// K-PKE keys, which the CCA KEM layer concatenates with bookkeeping fields.
func (p ParameterSet) indcpaPublicKeySize() int { return 384*p.K + symBytes }
func (p ParameterSet) indcpaSecretKeySize() int { return 384 * p.K }
