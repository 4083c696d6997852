// Package mldsa implements the Dilithium / ML-DSA lattice signature scheme
// (NIST FIPS 204) from its polynomial-ring arithmetic up: the full
// number-theoretic transform over Z_8380417[X]/(X^256+1), uniform and
// centered-binomial-bounded coefficient sampling, the Decompose/HighBits/
// LowBits/MakeHint/UseHint hint machinery, and the rejection-sampling
// Fiat-Shamir-with-aborts signing loop.
//
// pkg/crypto/dilithium.go is the byte-oriented public wrapper; this package
// holds the ring math spec.md section 4.7 describes, built from the
// primitive operations up the same way internal/mlkem was, with no external
// signature library.
package mldsa

const (
	n = 256     // polynomial degree
	q = 8380417 // prime modulus, q = 2^23 - 2^13 + 1
	d = 13      // dropped bits in t = t1*2^d + t0

	seedBytes = 32
	// trBytes is the length of tr = H(pk), following the original
	// (pre-FIPS204 "round 3") Dilithium CRHBYTES convention. This package
	// targets that byte layout rather than the final FIPS 204 revision's
	// wider commitment hash, so that the default parameter set continues to
	// match the sizes already recorded in internal/constants (inherited
	// from circl's dilithium/mode3, which implements round-3 Dilithium).
	trBytes = 48
	// muBytes is the length of mu = H(tr || M), the message representative
	// that both the commitment and the challenge are computed from.
	muBytes = 64
	// cTildeBytes is the packed length of the challenge seed c~ embedded in
	// every signature.
	cTildeBytes = 32
)

// ParameterSet fixes the module dimensions, noise width, challenge weight
// and rounding widths for one ML-DSA security level, per spec.md's
// Dilithium parameter table.
type ParameterSet struct {
	Name   string
	K      int   // rows of A / length of t, s2
	L      int   // columns of A / length of s1
	Eta    int   // coefficient bound for s1, s2
	Tau    int   // number of nonzero coefficients in the challenge polynomial
	Gamma1 int32 // coefficient range bound for y (a power of two)
	Gamma2 int32 // low-order rounding range, (q-1)/88 or (q-1)/32
	Beta   int   // Tau * Eta, the max inner-product perturbation MakeHint tolerates
	Omega  int   // max total nonzero hint coefficients across h
}

var (
	// Level2 is ML-DSA-44, NIST category 2.
	Level2 = ParameterSet{Name: "ML-DSA-44", K: 4, L: 4, Eta: 2, Tau: 39, Gamma1: 1 << 17, Gamma2: (q - 1) / 88, Beta: 78, Omega: 80}
	// Level3 is ML-DSA-65, NIST category 3. This is the level the teacher
	// VPN hardcoded (circl's dilithium/mode3) and remains the package default.
	Level3 = ParameterSet{Name: "ML-DSA-65", K: 6, L: 5, Eta: 4, Tau: 49, Gamma1: 1 << 19, Gamma2: (q - 1) / 32, Beta: 196, Omega: 55}
	// Level5 is ML-DSA-87, NIST category 5.
	Level5 = ParameterSet{Name: "ML-DSA-87", K: 8, L: 7, Eta: 2, Tau: 60, Gamma1: 1 << 19, Gamma2: (q - 1) / 32, Beta: 120, Omega: 75}
)

// ByLevel resolves one of the NIST security levels (2, 3, 5) named in
// spec.md's parameter table.
func ByLevel(level int) (ParameterSet, bool) {
	switch level {
	case 2:
		return Level2, true
	case 3:
		return Level3, true
	case 5:
		return Level5, true
	default:
		return ParameterSet{}, false
	}
}

// etaBits is the number of bits needed to pack a coefficient in [-Eta, Eta]
// as an unsigned offset in [0, 2*Eta].
func etaBits(eta int) int {
	switch eta {
	case 2:
		return 3
	case 4:
		return 4
	default:
		bits := 0
		for (1 << bits) <= 2*eta {
			bits++
		}
		return bits
	}
}

// gamma1Bits is the number of bits needed to pack a coefficient offset in
// [0, 2*Gamma1); Gamma1 is always a power of two, so this is exact.
func gamma1Bits(gamma1 int32) int {
	bits := 0
	for v := int32(1); v < 2*gamma1; v <<= 1 {
		bits++
	}
	return bits
}

func (p ParameterSet) etaBytes() int     { return n * etaBits(p.Eta) / 8 }
func (p ParameterSet) gamma1Bytes() int  { return n * gamma1Bits(p.Gamma1) / 8 }
func (p ParameterSet) t0Bytes() int      { return n * d / 8 }
func (p ParameterSet) t1Bytes() int      { return n * 10 / 8 }

// PublicKeySize is rho (32 bytes) followed by the packed t1 vector.
func (p ParameterSet) PublicKeySize() int { return seedBytes + p.K*p.t1Bytes() }

// PrivateKeySize is rho, the signing seed K, tr, the packed s1/s2 vectors
// and the packed t0 vector.
func (p ParameterSet) PrivateKeySize() int {
	return 2*seedBytes + trBytes + (p.L+p.K)*p.etaBytes() + p.K*p.t0Bytes()
}

// SignatureSize is the challenge seed c~, the packed z vector and the
// sparse hint encoding (Omega nonzero positions plus K bucket counts).
func (p ParameterSet) SignatureSize() int {
	return cTildeBytes + p.L*p.gamma1Bytes() + p.Omega + p.K
}

// SeedSize is the width of the single seed GenerateKeyPair expands into
// (rho, rho', K) via SHAKE-256, matching spec.md's deterministic-keygen
// entry point.
const SeedSize = seedBytes
