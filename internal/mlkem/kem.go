package mlkem

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/sha3"
)

// This file wraps the IND-CPA scheme in indcpa.go with a Fujisaki-Okamoto
// transform to get an IND-CCA2 key-encapsulation mechanism, following the
// construction spec.md section 4.6 spells out explicitly (G = SHA3-512,
// H = SHA3-256, KDF = SHAKE-256, with an implicit-rejection seed z folded in
// on decapsulation failure) rather than the slightly different KDF step
// FIPS 203 itself settled on. This is the same re-encrypt-and-compare shape
// as the round-2/3 Kyber reference implementation this module is grounded
// on (see other_examples' Yawning-kyber kem.go), adapted to this package's
// generic ParameterSet and to spec.md's G/H/KDF naming.

// GenerateKeyPair runs K-PKE.KeyGen and appends the FO bookkeeping fields
// (H(ek), a random implicit-rejection seed z) to the decapsulation key.
func GenerateKeyPair(rng io.Reader, p ParameterSet) (ek, dk []byte, err error) {
	seed := make([]byte, symBytes)
	if _, err = io.ReadFull(rng, seed); err != nil {
		return nil, nil, err
	}
	z := make([]byte, symBytes)
	if _, err = io.ReadFull(rng, z); err != nil {
		return nil, nil, err
	}

	ekPKE, dkPKE := cpaKeyGen(p, seed)
	hek := sha3.Sum256(ekPKE)

	dk = make([]byte, 0, p.PrivateKeySize())
	dk = append(dk, dkPKE...)
	dk = append(dk, ekPKE...)
	dk = append(dk, hek[:]...)
	dk = append(dk, z...)
	return ekPKE, dk, nil
}

// Encapsulate draws a fresh message m, derives (Kbar, coins) = G(m || H(ek)),
// encrypts m under those coins, and folds H(ciphertext) into the final
// KDF input, returning the ciphertext and the 32-byte shared secret.
func Encapsulate(rng io.Reader, p ParameterSet, ek []byte) (ct, ss []byte, err error) {
	if len(ek) != p.PublicKeySize() {
		return nil, nil, errInvalidKeySize
	}
	raw := make([]byte, symBytes)
	if _, err = io.ReadFull(rng, raw); err != nil {
		return nil, nil, err
	}
	m := sha3.Sum256(raw) // never release raw system-RNG output directly

	hek := sha3.Sum256(ek)
	var grInput [2 * symBytes]byte
	copy(grInput[:symBytes], m[:])
	copy(grInput[symBytes:], hek[:])
	kr := sha3.Sum512(grInput[:])

	ct = cpaEncrypt(p, ek, m[:], kr[symBytes:])

	hc := sha3.Sum256(ct)
	copy(kr[symBytes:], hc[:])

	ss = make([]byte, symBytes)
	sh := sha3.NewShake256()
	sh.Write(kr[:])
	sh.Read(ss)
	return ct, ss, nil
}

// Decapsulate recovers m' by decrypting ct, re-derives (Kbar', coins') and
// re-encrypts; if the re-encryption doesn't reproduce ct, the returned
// secret is instead derived from the private rejection seed z, in constant
// time with respect to which branch was taken.
func Decapsulate(p ParameterSet, dk, ct []byte) ([]byte, error) {
	if len(dk) != p.PrivateKeySize() || len(ct) != p.CiphertextSize() {
		return nil, errInvalidKeySize
	}
	dkPKE := dk[:p.indcpaSecretKeySize()]
	ekPKE := dk[p.indcpaSecretKeySize() : p.indcpaSecretKeySize()+p.indcpaPublicKeySize()]
	hek := dk[p.indcpaSecretKeySize()+p.indcpaPublicKeySize() : p.indcpaSecretKeySize()+p.indcpaPublicKeySize()+symBytes]
	z := dk[p.indcpaSecretKeySize()+p.indcpaPublicKeySize()+symBytes:]

	m := cpaDecrypt(p, dkPKE, ct)

	var grInput [2 * symBytes]byte
	copy(grInput[:symBytes], m)
	copy(grInput[symBytes:], hek)
	kr := sha3.Sum512(grInput[:])

	ct2 := cpaEncrypt(p, ekPKE, m, kr[symBytes:])

	hc := sha3.Sum256(ct)
	same := subtle.ConstantTimeCompare(ct, ct2) == 1

	copy(kr[symBytes:], hc[:])
	// On success kr[:32] already holds Kbar; on failure overwrite it with z,
	// in constant time so the branch taken isn't observable.
	subtle.ConstantTimeCopy(boolToInt(!same), kr[:symBytes], z)

	ss := make([]byte, symBytes)
	sh := sha3.NewShake256()
	sh.Write(kr[:])
	sh.Read(ss)
	return ss, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
