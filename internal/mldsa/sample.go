package mldsa

import "golang.org/x/crypto/sha3"

// expandA rejection-samples the public K*L matrix from rho, reading 3
// bytes per candidate coefficient off SHAKE-128(rho || j || i) and
// discarding values >= q (q needs 23 bits, so a 3-byte/24-bit read with
// the top bit masked off gives a workable acceptance rate), per FIPS 204's
// ExpandA / RejNTTPoly.
func expandA(rho []byte, k, l int) [][]poly {
	a := make([][]poly, k)
	for i := 0; i < k; i++ {
		a[i] = make([]poly, l)
		for j := 0; j < l; j++ {
			a[i][j] = rejNTTPoly(rho, byte(j), byte(i))
		}
	}
	return a
}

func rejNTTPoly(seed []byte, j, i byte) poly {
	h := sha3.NewShake128()
	h.Write(seed)
	h.Write([]byte{j, i})

	var p poly
	count := 0
	var buf [3]byte
	for count < n {
		h.Read(buf[:])
		val := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
		val &= 0x7fffff
		if val < q {
			p.coeffs[count] = int32(val)
			count++
		}
	}
	return p
}

// rejBoundedPoly samples a poly with coefficients in [-eta, eta] from
// SHAKE-256(seed || nonce), rejection-sampling nibbles per FIPS 204's
// RejBoundedPoly.
func rejBoundedPoly(seed []byte, nonce uint16, eta int) poly {
	h := sha3.NewShake256()
	h.Write(seed)
	h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	var p poly
	count := 0
	var buf [1]byte
	bound := uint8(2*eta + 1)
	for count < n {
		h.Read(buf[:])
		for _, nib := range [2]uint8{buf[0] & 0x0f, buf[0] >> 4} {
			if count >= n {
				break
			}
			if nib < bound {
				p.coeffs[count] = int32(eta) - int32(nib)
				if p.coeffs[count] < 0 {
					p.coeffs[count] += q
				}
				count++
			}
		}
	}
	return p
}

// sampleMask samples a poly with coefficients in (-gamma1, gamma1] from
// SHAKE-256(seed || nonce), reading exactly gamma1Bits(gamma1) bits per
// coefficient with no rejection needed since gamma1 is a power of two.
func sampleMask(seed []byte, nonce uint16, gamma1 int32) poly {
	bits := gamma1Bits(gamma1)
	h := sha3.NewShake256()
	h.Write(seed)
	h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	buf := make([]byte, n*bits/8)
	h.Read(buf)
	raw := unpackUnsigned(buf, n, bits)
	var p poly
	for i, v := range raw {
		p.coeffs[i] = ((gamma1 - v) + q) % q
	}
	return p
}

// sampleInBall derives the degree-n challenge polynomial with exactly tau
// nonzero coefficients, each +-1, from the 32-byte challenge seed c~, per
// FIPS 204 Algorithm 29 (SampleInBall).
func sampleInBall(seed []byte, tau int) poly {
	h := sha3.NewShake256()
	h.Write(seed)

	var signBuf [8]byte
	h.Read(signBuf[:])
	signs := uint64(0)
	for i := 7; i >= 0; i-- {
		signs = signs<<8 | uint64(signBuf[i])
	}

	var p poly
	var jBuf [1]byte
	for i := n - tau; i < n; i++ {
		var j int
		for {
			h.Read(jBuf[:])
			j = int(jBuf[0])
			if j <= i {
				break
			}
		}
		p.coeffs[i] = p.coeffs[j]
		if signs&1 == 1 {
			p.coeffs[j] = q - 1
		} else {
			p.coeffs[j] = 1
		}
		signs >>= 1
	}
	return p
}
