package mldsa

import (
	"errors"
	"io"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrVerificationFailed is returned by Sign only if the rejection loop
	// cannot find an acceptable (z, h) pair after a bounded number of
	// attempts; this should not happen in practice (each attempt succeeds
	// with roughly constant, non-negligible probability).
	ErrVerificationFailed = errors.New("mldsa: signing did not converge")
	errInvalidEncoding    = errors.New("mldsa: invalid key or signature encoding")
)

// maxSignAttempts bounds the Fiat-Shamir-with-aborts rejection loop. The
// per-attempt success probability is high enough that hundreds of
// consecutive rejections indicates a parameter or implementation bug
// rather than bad luck.
const maxSignAttempts = 1000

// GenerateKeyPair runs ML-DSA.KeyGen (FIPS 204 Algorithm 6): expand a
// 32-byte seed into (rho, rho', K) via SHAKE-256, sample A, s1 and s2,
// compute t = A*s1 + s2, split it into (t1, t0), and pack both keys.
func GenerateKeyPair(rng io.Reader, p ParameterSet) (pk, sk []byte, err error) {
	seed := make([]byte, SeedSize)
	if _, err = io.ReadFull(rng, seed); err != nil {
		return nil, nil, err
	}

	h := sha3.NewShake256()
	h.Write(seed)
	expanded := make([]byte, 2*seedBytes+seedBytes)
	h.Read(expanded)
	rho := expanded[:seedBytes]
	rhoPrime := expanded[seedBytes : 2*seedBytes]
	kSeed := expanded[2*seedBytes:]

	a := expandA(rho, p.K, p.L)

	s1 := newPolyVec(p.L)
	for i := 0; i < p.L; i++ {
		s1[i] = rejBoundedPoly(rhoPrime, uint16(i), p.Eta)
	}
	s2 := newPolyVec(p.K)
	for i := 0; i < p.K; i++ {
		s2[i] = rejBoundedPoly(rhoPrime, uint16(p.L+i), p.Eta)
	}

	s1Hat := make(polyVec, p.L)
	copy(s1Hat, s1)
	s1Hat.ntt()

	tHat := matVecMulNTT(a, s1Hat)
	t := make(polyVec, p.K)
	copy(t, tHat)
	t.invNTT()
	t = t.add(s2)

	t1 := newPolyVec(p.K)
	t0 := newPolyVec(p.K)
	for i := 0; i < p.K; i++ {
		for j := 0; j < n; j++ {
			r1, r0 := power2Round(t[i].coeffs[j])
			t1[i].coeffs[j] = r1
			t0[i].coeffs[j] = r0
		}
	}

	pk = make([]byte, 0, p.PublicKeySize())
	pk = append(pk, rho...)
	for i := 0; i < p.K; i++ {
		pk = append(pk, t1[i].packT1()...)
	}

	tr := sha3.NewShake256()
	tr.Write(pk)
	trOut := make([]byte, trBytes)
	tr.Read(trOut)

	sk = make([]byte, 0, p.PrivateKeySize())
	sk = append(sk, rho...)
	sk = append(sk, kSeed...)
	sk = append(sk, trOut...)
	for i := 0; i < p.L; i++ {
		sk = append(sk, s1[i].packEta(p.Eta)...)
	}
	for i := 0; i < p.K; i++ {
		sk = append(sk, s2[i].packEta(p.Eta)...)
	}
	for i := 0; i < p.K; i++ {
		sk = append(sk, t0[i].packT0()...)
	}
	return pk, sk, nil
}

type secretKey struct {
	rho, kSeed, tr []byte
	s1, s2, t0     polyVec
}

func parseSecretKey(p ParameterSet, sk []byte) (*secretKey, error) {
	if len(sk) != p.PrivateKeySize() {
		return nil, errInvalidEncoding
	}
	off := 0
	rho := sk[off : off+seedBytes]
	off += seedBytes
	kSeed := sk[off : off+seedBytes]
	off += seedBytes
	tr := sk[off : off+trBytes]
	off += trBytes

	s1 := newPolyVec(p.L)
	eb := p.etaBytes()
	for i := 0; i < p.L; i++ {
		s1[i] = *unpackEta(sk[off:off+eb], p.Eta)
		off += eb
	}
	s2 := newPolyVec(p.K)
	for i := 0; i < p.K; i++ {
		s2[i] = *unpackEta(sk[off:off+eb], p.Eta)
		off += eb
	}
	t0 := newPolyVec(p.K)
	tb := p.t0Bytes()
	for i := 0; i < p.K; i++ {
		t0[i] = *unpackT0(sk[off : off+tb])
		off += tb
	}
	return &secretKey{rho: rho, kSeed: kSeed, tr: tr, s1: s1, s2: s2, t0: t0}, nil
}

// Sign runs ML-DSA.Sign (FIPS 204 Algorithm 7): derive a per-message
// (rho'', mu) pair, then repeatedly sample a commitment y until the
// resulting (z, h) pair survives every rejection check, signing msg under
// sk. The commitment randomness is derived deterministically from rho'',
// kSeed and an attempt counter rather than drawn fresh from rng, so the
// scheme stays secure even if rng happens to repeat (hedged signing, as in
// the FIPS 204 reference algorithm); rng is only consulted for the
// 32 bytes of fresh per-signature randomness mu is not already forcing.
func Sign(rng io.Reader, p ParameterSet, sk, msg []byte) ([]byte, error) {
	key, err := parseSecretKey(p, sk)
	if err != nil {
		return nil, err
	}

	rnd := make([]byte, seedBytes)
	if _, err := io.ReadFull(rng, rnd); err != nil {
		return nil, err
	}

	muH := sha3.NewShake256()
	muH.Write(key.tr)
	muH.Write(msg)
	mu := make([]byte, muBytes)
	muH.Read(mu)

	rhoPPH := sha3.NewShake256()
	rhoPPH.Write(key.kSeed)
	rhoPPH.Write(rnd)
	rhoPPH.Write(mu)
	rhoPP := make([]byte, 64)
	rhoPPH.Read(rhoPP)

	a := expandA(key.rho, p.K, p.L)

	s1Hat := make(polyVec, p.L)
	copy(s1Hat, key.s1)
	s1Hat.ntt()
	s2Hat := make(polyVec, p.K)
	copy(s2Hat, key.s2)
	s2Hat.ntt()
	t0Hat := make(polyVec, p.K)
	copy(t0Hat, key.t0)
	t0Hat.ntt()

	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		y := newPolyVec(p.L)
		for i := 0; i < p.L; i++ {
			y[i] = sampleMask(rhoPP, uint16(attempt*p.L+i), p.Gamma1)
		}

		yHat := make(polyVec, p.L)
		copy(yHat, y)
		yHat.ntt()

		wHat := matVecMulNTT(a, yHat)
		w := make(polyVec, p.K)
		copy(w, wHat)
		w.invNTT()

		w1 := w.highBitsVec(p.Gamma2)

		cSeed := computeCTilde(mu, w1, p)
		c := sampleInBall(cSeed, p.Tau)
		cHat := c
		cHat.ntt()

		cs1 := make(polyVec, p.L)
		for i := 0; i < p.L; i++ {
			t := mulNTT(&cHat, &s1Hat[i])
			cs1[i] = *t
		}
		cs1.invNTT()
		z := y.add(cs1)
		if z.maxInfinityNorm() >= p.Gamma1-int32(p.Beta) {
			continue
		}

		cs2 := make(polyVec, p.K)
		for i := 0; i < p.K; i++ {
			t := mulNTT(&cHat, &s2Hat[i])
			cs2[i] = *t
		}
		cs2.invNTT()
		wMinusCs2 := w.sub(cs2)
		lowR0 := newPolyVec(p.K)
		for i := 0; i < p.K; i++ {
			for j := 0; j < n; j++ {
				lowR0[i].coeffs[j] = lowBits(wMinusCs2[i].coeffs[j], p.Gamma2)
			}
		}
		if lowR0.maxInfinityNorm() >= p.Gamma2-int32(p.Beta) {
			continue
		}

		ct0 := make(polyVec, p.K)
		for i := 0; i < p.K; i++ {
			t := mulNTT(&cHat, &t0Hat[i])
			ct0[i] = *t
		}
		ct0.invNTT()
		if ct0.maxInfinityNorm() >= p.Gamma2 {
			continue
		}

		h := make([]poly, p.K)
		hintCount := 0
		for i := 0; i < p.K; i++ {
			for j := 0; j < n; j++ {
				if makeHint(ct0[i].coeffs[j], wMinusCs2[i].coeffs[j], p.Gamma2) {
					h[i].coeffs[j] = 1
					hintCount++
				}
			}
		}
		if hintCount > p.Omega {
			continue
		}

		sig := make([]byte, 0, p.SignatureSize())
		sig = append(sig, cSeed...)
		for i := 0; i < p.L; i++ {
			sig = append(sig, z[i].packZ(p.Gamma1)...)
		}
		packedHint := packHint(h, p.Omega)
		if packedHint == nil {
			continue
		}
		sig = append(sig, packedHint...)
		return sig, nil
	}
	return nil, ErrVerificationFailed
}

// computeCTilde hashes (mu, w1) down to the cTildeBytes challenge seed,
// per FIPS 204's H(mu || w1Encode(w1)).
func computeCTilde(mu []byte, w1 polyVec, p ParameterSet) []byte {
	h := sha3.NewShake256()
	h.Write(mu)
	for i := range w1 {
		// w1's coefficients are small nonnegative integers (0..(q-1)/(2*gamma2));
		// 6 bits covers every parameter set's range with room to spare.
		h.Write(packUnsignedBytesForHash(w1[i].coeffs[:]))
	}
	out := make([]byte, cTildeBytes)
	h.Read(out)
	return out
}

func packUnsignedBytesForHash(coeffs []int32) []byte {
	return packUnsigned(coeffs, 6)
}

// Verify runs ML-DSA.Verify (FIPS 204 Algorithm 8): recompute w1 from the
// signature's z and challenge, and accept only if it hashes back to the
// embedded challenge seed and every structural bound holds.
func Verify(p ParameterSet, pk, msg, sig []byte) bool {
	if len(pk) != p.PublicKeySize() || len(sig) != p.SignatureSize() {
		return false
	}
	rho := pk[:seedBytes]
	t1 := newPolyVec(p.K)
	tb := p.t1Bytes()
	off := seedBytes
	for i := 0; i < p.K; i++ {
		t1[i] = *unpackT1(pk[off : off+tb])
		off += tb
	}

	off = 0
	cSeed := sig[:cTildeBytes]
	off += cTildeBytes
	z := newPolyVec(p.L)
	zb := p.gamma1Bytes()
	for i := 0; i < p.L; i++ {
		z[i] = *unpackZ(sig[off:off+zb], p.Gamma1)
		off += zb
	}
	if z.maxInfinityNorm() >= p.Gamma1-int32(p.Beta) {
		return false
	}
	hBits, ok := unpackHint(sig[off:], p.K, p.Omega)
	if !ok {
		return false
	}

	trH := sha3.NewShake256()
	trH.Write(pk)
	tr := make([]byte, trBytes)
	trH.Read(tr)
	muH := sha3.NewShake256()
	muH.Write(tr)
	muH.Write(msg)
	mu := make([]byte, muBytes)
	muH.Read(mu)

	a := expandA(rho, p.K, p.L)
	c := sampleInBall(cSeed, p.Tau)
	cHat := c
	cHat.ntt()

	zHat := make(polyVec, p.L)
	copy(zHat, z)
	zHat.ntt()
	aZHat := matVecMulNTT(a, zHat)

	t1Shifted := newPolyVec(p.K)
	for i := 0; i < p.K; i++ {
		for j := 0; j < n; j++ {
			t1Shifted[i].coeffs[j] = modMulShift(t1[i].coeffs[j])
		}
	}
	t1Shifted.ntt()

	ct1 := make(polyVec, p.K)
	for i := 0; i < p.K; i++ {
		t := mulNTT(&cHat, &t1Shifted[i])
		ct1[i] = *t
	}

	wApprox := make(polyVec, p.K)
	for i := 0; i < p.K; i++ {
		wApprox[i] = *aZHat[i].sub(&ct1[i])
	}
	wApprox.invNTT()

	w1 := newPolyVec(p.K)
	for i := 0; i < p.K; i++ {
		for j := 0; j < n; j++ {
			w1[i].coeffs[j] = useHint(wApprox[i].coeffs[j], hBits[i][j], p.Gamma2)
		}
	}

	expected := computeCTilde(mu, w1, p)
	if len(expected) != len(cSeed) {
		return false
	}
	for i := range expected {
		if expected[i] != cSeed[i] {
			return false
		}
	}
	return true
}

// modMulShift multiplies a t1 coefficient by 2^d, recovering the
// high-order contribution t1*2^d used in Verify's w reconstruction
// (t1*2^d stands in for t0, which the verifier never sees).
func modMulShift(v int32) int32 {
	return modMul(v, int32(1)<<d)
}
