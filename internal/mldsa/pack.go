package mldsa

// packUnsigned/unpackUnsigned densely pack/unpack n coefficients at a fixed
// bit width, little-endian across byte boundaries. Shared by t1 (10 bits),
// t0 and z (after centering to an unsigned offset), and s1/s2.
func packUnsigned(vals []int32, bits int) []byte {
	out := make([]byte, len(vals)*bits/8)
	var acc uint32
	var accBits int
	pos := 0
	for _, v := range vals {
		acc |= uint32(v) << accBits
		accBits += bits
		for accBits >= 8 {
			out[pos] = byte(acc)
			acc >>= 8
			accBits -= 8
			pos++
		}
	}
	return out
}

func unpackUnsigned(b []byte, count, bits int) []int32 {
	out := make([]int32, count)
	var acc uint32
	var accBits int
	pos := 0
	mask := uint32(1)<<bits - 1
	for i := 0; i < count; i++ {
		for accBits < bits {
			acc |= uint32(b[pos]) << accBits
			accBits += 8
			pos++
		}
		out[i] = int32(acc & mask)
		acc >>= bits
		accBits -= bits
	}
	return out
}

// packT1 packs the 10-bit t1 component of the public key.
func (p *poly) packT1() []byte { return packUnsigned(p.coeffs[:], 10) }

func unpackT1(b []byte) *poly {
	var r poly
	copy(r.coeffs[:], unpackUnsigned(b, n, 10))
	return &r
}

// packT0 packs t0, whose centered values lie in (-2^(d-1), 2^(d-1)], as an
// unsigned offset in [0, 2^d) by mapping each c to 2^(d-1) - c.
func (p *poly) packT0() []byte {
	vals := make([]int32, n)
	for i, c := range p.coeffs {
		vals[i] = (1 << (d - 1)) - c
	}
	return packUnsigned(vals, d)
}

func unpackT0(b []byte) *poly {
	raw := unpackUnsigned(b, n, d)
	var r poly
	for i, v := range raw {
		r.coeffs[i] = (((1 << (d - 1)) - v) + q) % q
	}
	return &r
}

// packEta packs coefficients in [-Eta, Eta] as an unsigned offset in
// [0, 2*Eta].
func (p *poly) packEta(eta int) []byte {
	vals := make([]int32, n)
	for i, c := range p.coeffs {
		vals[i] = int32(eta) - centeredMod(c, q)
	}
	return packUnsigned(vals, etaBits(eta))
}

func unpackEta(b []byte, eta int) *poly {
	raw := unpackUnsigned(b, n, etaBits(eta))
	var r poly
	for i, v := range raw {
		r.coeffs[i] = ((int32(eta) - v) + q) % q
	}
	return &r
}

// packZ packs coefficients in (-Gamma1, Gamma1] as an unsigned offset in
// [0, 2*Gamma1).
func (p *poly) packZ(gamma1 int32) []byte {
	vals := make([]int32, n)
	for i, c := range p.coeffs {
		vals[i] = gamma1 - centeredMod(c, q)
	}
	return packUnsigned(vals, gamma1Bits(gamma1))
}

func unpackZ(b []byte, gamma1 int32) *poly {
	raw := unpackUnsigned(b, n, gamma1Bits(gamma1))
	var r poly
	for i, v := range raw {
		r.coeffs[i] = ((gamma1 - v) + q) % q
	}
	return &r
}
