package mldsa

// poly is a polynomial in Z_q[X]/(X^256+1), coefficients held in [0, q).
type poly struct {
	coeffs [n]int32
}

// zeta is a primitive 512th root of unity mod q (q - 1 = 2^23 * ... and
// 512 | q-1, per FIPS 204). zetas[i] = zeta^(BitRev8(i)) mod q is computed
// at init time rather than transcribed as a 256-entry literal table, which
// is the more reliable way to get every entry right without a test run.
const zeta = 1753

var zetas [256]int32

func modExp(base, exp, mod int64) int64 {
	result := int64(1)
	base %= mod
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % mod
		}
		base = (base * base) % mod
		exp >>= 1
	}
	return result
}

func bitrev8(i int) int {
	r := 0
	for b := 0; b < 8; b++ {
		r |= ((i >> b) & 1) << (7 - b)
	}
	return r
}

func init() {
	for i := 0; i < 256; i++ {
		zetas[i] = int32(modExp(zeta, int64(bitrev8(i)), q))
	}
}

func modAdd(a, b int32) int32 {
	v := (a + b) % q
	if v < 0 {
		v += q
	}
	return v
}

func modSub(a, b int32) int32 {
	v := (a - b) % q
	if v < 0 {
		v += q
	}
	return v
}

func modMul(a, b int32) int32 {
	v := (int64(a) * int64(b)) % q
	if v < 0 {
		v += q
	}
	return int32(v)
}

func negModQ(a int32) int32 {
	if a == 0 {
		return 0
	}
	return q - a
}

func (a *poly) add(b *poly) *poly {
	var r poly
	for i := range r.coeffs {
		r.coeffs[i] = modAdd(a.coeffs[i], b.coeffs[i])
	}
	return &r
}

func (a *poly) sub(b *poly) *poly {
	var r poly
	for i := range r.coeffs {
		r.coeffs[i] = modSub(a.coeffs[i], b.coeffs[i])
	}
	return &r
}

// ntt applies the complete (8-level) forward NTT in place, per FIPS 204's
// NTT algorithm. Unlike ML-KEM's incomplete transform, X^256+1 splits fully
// into 256 linear factors here, so the NTT domain is just 256 independent
// scalars and mulNTT below is a plain coefficientwise product.
func (p *poly) ntt() {
	k := 0
	for length := 128; length >= 1; length /= 2 {
		for start := 0; start < n; start += 2 * length {
			k++
			zeta := zetas[k]
			for j := start; j < start+length; j++ {
				t := modMul(zeta, p.coeffs[j+length])
				p.coeffs[j+length] = modSub(p.coeffs[j], t)
				p.coeffs[j] = modAdd(p.coeffs[j], t)
			}
		}
	}
}

// nInv is n^-1 mod q, computed via Fermat's little theorem (q is prime).
var nInv = int32(modExp(n, q-2, q))

// invNTT applies the inverse of ntt in place.
func (p *poly) invNTT() {
	k := 256
	for length := 1; length <= 128; length *= 2 {
		for start := 0; start < n; start += 2 * length {
			k--
			zeta := negModQ(zetas[k])
			for j := start; j < start+length; j++ {
				t := p.coeffs[j]
				p.coeffs[j] = modAdd(t, p.coeffs[j+length])
				p.coeffs[j+length] = modMul(zeta, modSub(t, p.coeffs[j+length]))
			}
		}
	}
	for i := range p.coeffs {
		p.coeffs[i] = modMul(p.coeffs[i], nInv)
	}
}

// mulNTT multiplies two NTT-domain polynomials coefficientwise.
func mulNTT(a, b *poly) *poly {
	var r poly
	for i := range r.coeffs {
		r.coeffs[i] = modMul(a.coeffs[i], b.coeffs[i])
	}
	return &r
}

// centeredMod returns r's representative in (-(m-1)/2, m/2] rather than [0, m).
func centeredMod(r, m int32) int32 {
	v := r % m
	if v < 0 {
		v += m
	}
	if v > m/2 {
		v -= m
	}
	return v
}

// power2Round splits r = r1*2^d + r0 with r0 in (-2^(d-1), 2^(d-1)], per
// FIPS 204 Algorithm 35. Used at key generation to drop the low bits of t.
func power2Round(r int32) (r1, r0 int32) {
	rPlus := ((r % q) + q) % q
	r0 = centeredMod(rPlus, 1<<d)
	r1 = (rPlus - r0) >> d
	return
}

// decompose splits r into HighBits/LowBits around 2*gamma2, per FIPS 204
// Algorithm 36, handling the wraparound case at r = q-1.
func decompose(r, gamma2 int32) (r1, r0 int32) {
	rPlus := ((r % q) + q) % q
	r0 = centeredMod(rPlus, 2*gamma2)
	if rPlus-r0 == q-1 {
		r1 = 0
		r0 = r0 - 1
	} else {
		r1 = (rPlus - r0) / (2 * gamma2)
	}
	return
}

func highBits(r, gamma2 int32) int32 {
	r1, _ := decompose(r, gamma2)
	return r1
}

func lowBits(r, gamma2 int32) int32 {
	_, r0 := decompose(r, gamma2)
	return r0
}

// makeHint reports whether the high bits of r and r+z differ, per FIPS 204
// Algorithm 37.
func makeHint(z, r, gamma2 int32) bool {
	return highBits(r, gamma2) != highBits(modAdd(r, z), gamma2)
}

// useHint recovers the corrected high bits of r given a hint bit, per
// FIPS 204 Algorithm 38.
func useHint(r int32, hint bool, gamma2 int32) int32 {
	r1, r0 := decompose(r, gamma2)
	if !hint {
		return r1
	}
	m := (q - 1) / (2 * gamma2)
	if r0 > 0 {
		return (r1 + 1) % m
	}
	return ((r1-1)%m + m) % m
}

// infinityNorm returns the largest centered absolute value among p's
// coefficients, used by the signer's rejection checks.
func (p *poly) infinityNorm() int32 {
	var max int32
	for _, c := range p.coeffs {
		v := centeredMod(c, q)
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	return max
}

func (p *poly) highBitsPoly(gamma2 int32) *poly {
	var r poly
	for i, c := range p.coeffs {
		r.coeffs[i] = highBits(c, gamma2)
	}
	return &r
}

func (p *poly) useHintPoly(hints []bool, gamma2 int32) *poly {
	var r poly
	for i, c := range p.coeffs {
		r.coeffs[i] = useHint(c, hints[i], gamma2)
	}
	return &r
}
