package mlkem

import (
	"golang.org/x/crypto/sha3"
)

type polyVec []poly

func newPolyVec(k int) polyVec { return make(polyVec, k) }

func (v polyVec) ntt() {
	for i := range v {
		v[i].ntt()
	}
}

func (v polyVec) invNTT() {
	for i := range v {
		v[i].invNTT()
	}
}

func (v polyVec) add(w polyVec) polyVec {
	r := newPolyVec(len(v))
	for i := range v {
		r[i] = *v[i].add(&w[i])
	}
	return r
}

// dot computes sum_i v[i] (*) w[i] in the NTT domain, the inner product
// FIPS 203 uses for both A.s (matrix-vector) row products and t^T.y.
func dot(v, w polyVec) poly {
	acc := mulNTT(&v[0], &w[0])
	for i := 1; i < len(v); i++ {
		acc = acc.add(mulNTT(&v[i], &w[i]))
	}
	return *acc
}

func (v polyVec) compress(d int) polyVec {
	r := newPolyVec(len(v))
	for i := range v {
		r[i] = *v[i].compress(d)
	}
	return r
}

func (v polyVec) decompress(d int) polyVec {
	r := newPolyVec(len(v))
	for i := range v {
		r[i] = *v[i].decompress(d)
	}
	return r
}

func (v polyVec) byteEncode12() []byte {
	out := make([]byte, 0, 384*len(v))
	for i := range v {
		out = append(out, v[i].byteEncode12()...)
	}
	return out
}

func byteDecode12Vec(b []byte, k int) polyVec {
	r := newPolyVec(k)
	for i := 0; i < k; i++ {
		r[i] = *byteDecode12(b[384*i : 384*(i+1)])
	}
	return r
}

func (v polyVec) byteEncodeD(d int) []byte {
	perPoly := n * d / 8
	out := make([]byte, 0, perPoly*len(v))
	for i := range v {
		out = append(out, v[i].byteEncodeD(d)...)
	}
	return out
}

func byteDecodeDVec(b []byte, d, k int) polyVec {
	perPoly := n * d / 8
	r := newPolyVec(k)
	for i := 0; i < k; i++ {
		r[i] = *byteDecodeD(b[perPoly*i:perPoly*(i+1)], d)
	}
	return r
}

// xofRate is the SHAKE-128 rate in bytes, used both for matrix expansion and
// as the block size genMatrix reads its rejection-sampling stream in.
const xofRate = 168

// genMatrixColumn samples one entry of the public matrix A (NTT domain
// directly, since A is only ever used as an NTT-domain operand) by rejection
// sampling 12-bit little-endian values out of SHAKE-128(rho || j || i) (or
// rho || i || j for the transposed matrix Encrypt needs), discarding any
// value >= q, per FIPS 203 Algorithm 7.
func genMatrixColumn(rho []byte, i, j byte) poly {
	h := sha3.NewShake128()
	h.Write(rho)
	h.Write([]byte{j, i})

	var p poly
	count := 0
	var buf [xofRate]byte
	pos := len(buf)
	for count < n {
		if pos >= len(buf) {
			h.Read(buf[:])
			pos = 0
		}
		val := uint16(buf[pos]) | uint16(buf[pos+1])<<8
		pos += 2
		val &= 0x0fff
		if val < q {
			p.coeffs[count] = int16(val)
			count++
		}
	}
	return p
}

// genMatrix builds the k*k public matrix A in NTT domain. When transposed is
// true, column (i,j) is sampled as genMatrixColumn(rho, j, i) instead of
// (i, j), giving A^T without resampling rho twice.
func genMatrix(rho []byte, k int, transposed bool) []polyVec {
	a := make([]polyVec, k)
	for i := 0; i < k; i++ {
		a[i] = newPolyVec(k)
		for j := 0; j < k; j++ {
			if transposed {
				a[i][j] = genMatrixColumn(rho, byte(j), byte(i))
			} else {
				a[i][j] = genMatrixColumn(rho, byte(i), byte(j))
			}
		}
	}
	return a
}

func matVecMulNTT(a []polyVec, v polyVec) polyVec {
	k := len(a)
	r := newPolyVec(k)
	for i := 0; i < k; i++ {
		r[i] = dot(a[i], v)
	}
	return r
}

// cbdVec samples k independent CBD_eta polynomials from SHAKE-256(sigma ||
// nonce), nonce starting at startNonce and incrementing once per
// polynomial, per FIPS 203's PRF.
func cbdVec(sigma []byte, eta, k int, startNonce byte) polyVec {
	r := newPolyVec(k)
	need := 64 * eta
	for i := 0; i < k; i++ {
		h := sha3.NewShake256()
		h.Write(sigma)
		h.Write([]byte{startNonce + byte(i)})
		buf := make([]byte, need)
		h.Read(buf)
		r[i] = *cbd(buf, eta)
	}
	return r
}

func cbdPoly(sigma []byte, eta int, nonce byte) poly {
	h := sha3.NewShake256()
	h.Write(sigma)
	h.Write([]byte{nonce})
	buf := make([]byte, 64*eta)
	h.Read(buf)
	return *cbd(buf, eta)
}
