package mlkem

import "golang.org/x/crypto/sha3"

// cpaKeyGen is K-PKE.KeyGen (FIPS 203 Algorithm 13): derive (rho, sigma)
// from a 32-byte seed via SHA3-512, sample the public matrix A and the
// secret/error vectors s, e, and return the packed encapsulation key
// (t || rho) and decapsulation key (s), both in byte form.
func cpaKeyGen(p ParameterSet, seed []byte) (ekPKE, dkPKE []byte) {
	h := sha3.Sum512(seed)
	rho, sigma := h[:32], h[32:]

	a := genMatrix(rho, p.K, false)
	s := cbdVec(sigma, p.Eta1, p.K, 0)
	e := cbdVec(sigma, p.Eta1, p.K, byte(p.K))

	sHat := make(polyVec, p.K)
	copy(sHat, s)
	sHat.ntt()
	eHat := make(polyVec, p.K)
	copy(eHat, e)
	eHat.ntt()

	tHat := matVecMulNTT(a, sHat).add(eHat)

	ekPKE = append(tHat.byteEncode12(), rho...)
	dkPKE = sHat.byteEncode12()
	return
}

// cpaEncrypt is K-PKE.Encrypt (FIPS 203 Algorithm 14): unpack (t, rho) from
// ekPKE, sample y/e1/e2 from the given 32 bytes of coins, and compute the
// compressed ciphertext (c1, c2).
func cpaEncrypt(p ParameterSet, ekPKE, m, coins []byte) []byte {
	tHat := byteDecode12Vec(ekPKE[:384*p.K], p.K)
	rho := ekPKE[384*p.K:]

	aT := genMatrix(rho, p.K, true)

	y := cbdVec(coins, p.Eta1, p.K, 0)
	e1 := cbdVec(coins, p.Eta1, p.K, byte(p.K))
	e2 := cbdPoly(coins, eta2, byte(2*p.K))

	yHat := make(polyVec, p.K)
	copy(yHat, y)
	yHat.ntt()

	u := matVecMulNTT(aT, yHat)
	u.invNTT()
	u = u.add(e1)

	vHat := dot(tHat, yHat)
	vHat.invNTT()
	mu := encodeMessage(m)
	v := *vHat.add(&e2).add(mu)

	c1 := u.compress(p.Du).byteEncodeD(p.Du)
	c2 := v.compress(p.Dv).byteEncodeD(p.Dv)
	return append(c1, c2...)
}

// cpaDecrypt is K-PKE.Decrypt (FIPS 203 Algorithm 15).
func cpaDecrypt(p ParameterSet, dkPKE, ct []byte) []byte {
	uLen := n * p.Du * p.K / 8
	u := byteDecodeDVec(ct[:uLen], p.Du, p.K).decompress(p.Du)
	v := byteDecodeD(ct[uLen:], p.Dv).decompress(p.Dv)

	sHat := byteDecode12Vec(dkPKE, p.K)

	uHat := make(polyVec, p.K)
	copy(uHat, u)
	uHat.ntt()

	w := dot(sHat, uHat)
	w.invNTT()
	mPoly := v.sub(&w)
	return decodeMessage(mPoly)
}
