// streamcipher.go exposes raw ChaCha20 keystream generation and the
// Poly1305 one-time MAC. golang.org/x/crypto/chacha20 supplies the
// keystream; Poly1305 is implemented here directly, because x/crypto keeps
// its poly1305 code in an internal package and only exports the combined
// ChaCha20-Poly1305 AEAD (which aead.go already wraps for tunnel
// transport). Components that need the primitives separately (CSX, KAT
// reproduction) use this file.
package crypto

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"

	qerrors "github.com/qscore/qscore/internal/errors"
)

// ChaCha20XOR encrypts (or decrypts; the cipher is its own inverse)
// plaintext with ChaCha20 under key (32 bytes, or 16 bytes repeated into a
// 256-bit key), a 12-byte nonce, and an initial block counter.
func ChaCha20XOR(key, nonce []byte, counter uint32, plaintext []byte) ([]byte, error) {
	fullKey := key
	if len(key) == 16 {
		fullKey = make([]byte, 32)
		copy(fullKey, key)
		copy(fullKey[16:], key)
	}
	c, err := chacha20.NewUnauthenticatedCipher(fullKey, nonce)
	if err != nil {
		return nil, qerrors.NewCryptoError("ChaCha20XOR", err)
	}
	c.SetCounter(counter)
	out := make([]byte, len(plaintext))
	c.XORKeyStream(out, plaintext)
	return out, nil
}

// Poly1305Tag computes the one-time Poly1305 MAC of msg under a 32-byte key
// (r || s). r is clamped per RFC 8439 §2.5; each 16-byte message block gets a
// 17th 0x01 byte appended and is accumulated as acc = (acc + block) * r over
// GF(2^130 - 5), with the final accumulator added to s mod 2^128.
//
// The field arithmetic uses five 26-bit limbs with 64-bit products, so no
// limb operation branches on secret data.
func Poly1305Tag(key, msg []byte) ([16]byte, error) {
	var tag [16]byte
	if len(key) != 32 {
		return tag, qerrors.ErrInvalidKeySize
	}

	// clamp r into 26-bit limbs
	r0 := binary.LittleEndian.Uint32(key[0:4]) & 0x3ffffff
	r1 := (binary.LittleEndian.Uint32(key[3:7]) >> 2) & 0x3ffff03
	r2 := (binary.LittleEndian.Uint32(key[6:10]) >> 4) & 0x3ffc0ff
	r3 := (binary.LittleEndian.Uint32(key[9:13]) >> 6) & 0x3f03fff
	r4 := (binary.LittleEndian.Uint32(key[12:16]) >> 8) & 0x00fffff

	s1 := r1 * 5
	s2 := r2 * 5
	s3 := r3 * 5
	s4 := r4 * 5

	var h0, h1, h2, h3, h4 uint32

	for len(msg) > 0 {
		var block [17]byte
		hibit := uint32(1 << 24) // the appended 0x01 byte for a full block
		if len(msg) >= 16 {
			copy(block[:16], msg[:16])
			msg = msg[16:]
		} else {
			n := copy(block[:], msg)
			block[n] = 0x01
			hibit = 0
			msg = nil
		}

		h0 += binary.LittleEndian.Uint32(block[0:4]) & 0x3ffffff
		h1 += (binary.LittleEndian.Uint32(block[3:7]) >> 2) & 0x3ffffff
		h2 += (binary.LittleEndian.Uint32(block[6:10]) >> 4) & 0x3ffffff
		h3 += (binary.LittleEndian.Uint32(block[9:13]) >> 6) & 0x3ffffff
		h4 += (binary.LittleEndian.Uint32(block[12:16]) >> 8) | hibit

		// acc * r, with the 2^130 = 5 wraparound folded in via s1..s4
		d0 := uint64(h0)*uint64(r0) + uint64(h1)*uint64(s4) + uint64(h2)*uint64(s3) + uint64(h3)*uint64(s2) + uint64(h4)*uint64(s1)
		d1 := uint64(h0)*uint64(r1) + uint64(h1)*uint64(r0) + uint64(h2)*uint64(s4) + uint64(h3)*uint64(s3) + uint64(h4)*uint64(s2)
		d2 := uint64(h0)*uint64(r2) + uint64(h1)*uint64(r1) + uint64(h2)*uint64(r0) + uint64(h3)*uint64(s4) + uint64(h4)*uint64(s3)
		d3 := uint64(h0)*uint64(r3) + uint64(h1)*uint64(r2) + uint64(h2)*uint64(r1) + uint64(h3)*uint64(r0) + uint64(h4)*uint64(s4)
		d4 := uint64(h0)*uint64(r4) + uint64(h1)*uint64(r3) + uint64(h2)*uint64(r2) + uint64(h3)*uint64(r1) + uint64(h4)*uint64(r0)

		c := d0 >> 26
		h0 = uint32(d0) & 0x3ffffff
		d1 += c
		c = d1 >> 26
		h1 = uint32(d1) & 0x3ffffff
		d2 += c
		c = d2 >> 26
		h2 = uint32(d2) & 0x3ffffff
		d3 += c
		c = d3 >> 26
		h3 = uint32(d3) & 0x3ffffff
		d4 += c
		c = d4 >> 26
		h4 = uint32(d4) & 0x3ffffff
		h0 += uint32(c) * 5
		c2 := h0 >> 26
		h0 &= 0x3ffffff
		h1 += c2
	}

	// full carry chain
	c := h1 >> 26
	h1 &= 0x3ffffff
	h2 += c
	c = h2 >> 26
	h2 &= 0x3ffffff
	h3 += c
	c = h3 >> 26
	h3 &= 0x3ffffff
	h4 += c
	c = h4 >> 26
	h4 &= 0x3ffffff
	h0 += c * 5
	c = h0 >> 26
	h0 &= 0x3ffffff
	h1 += c

	// compute h + (-p) and select it iff h >= p, without branching
	g0 := h0 + 5
	c = g0 >> 26
	g0 &= 0x3ffffff
	g1 := h1 + c
	c = g1 >> 26
	g1 &= 0x3ffffff
	g2 := h2 + c
	c = g2 >> 26
	g2 &= 0x3ffffff
	g3 := h3 + c
	c = g3 >> 26
	g3 &= 0x3ffffff
	g4 := h4 + c - (1 << 26)

	mask := (g4 >> 31) - 1 // all-ones iff h >= p
	h0 = (h0 &^ mask) | (g0 & mask)
	h1 = (h1 &^ mask) | (g1 & mask)
	h2 = (h2 &^ mask) | (g2 & mask)
	h3 = (h3 &^ mask) | (g3 & mask)
	h4 = (h4 &^ mask) | (g4 & mask)

	// h mod 2^128, repacked into 32-bit words
	h0 = h0 | h1<<26
	h1 = h1>>6 | h2<<20
	h2 = h2>>12 | h3<<14
	h3 = h3>>18 | h4<<8

	// tag = h + s mod 2^128
	f := uint64(h0) + uint64(binary.LittleEndian.Uint32(key[16:20]))
	binary.LittleEndian.PutUint32(tag[0:4], uint32(f))
	f = uint64(h1) + uint64(binary.LittleEndian.Uint32(key[20:24])) + f>>32
	binary.LittleEndian.PutUint32(tag[4:8], uint32(f))
	f = uint64(h2) + uint64(binary.LittleEndian.Uint32(key[24:28])) + f>>32
	binary.LittleEndian.PutUint32(tag[8:12], uint32(f))
	f = uint64(h3) + uint64(binary.LittleEndian.Uint32(key[28:32])) + f>>32
	binary.LittleEndian.PutUint32(tag[12:16], uint32(f))

	return tag, nil
}

// Poly1305Verify reports whether tag is the correct Poly1305 MAC for
// (key, msg), comparing in constant time.
func Poly1305Verify(key, msg []byte, tag [16]byte) bool {
	expected, err := Poly1305Tag(key, msg)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected[:], tag[:]) == 1
}
