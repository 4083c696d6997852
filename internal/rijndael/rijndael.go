// Package rijndael implements the wide-block Rijndael round transform used
// by RCS: SubBytes, a width-dependent ShiftRows, MixColumns, and
// AddRoundKey, generalized from the 128-bit AES block to 256- and 512-bit
// blocks. No Go library packages wide-block Rijndael (AES implementations,
// including crypto/aes, are fixed at a 128-bit block by design), so this is
// built directly from the S-box and the GF(2^8) arithmetic AES already uses.
//
// This package is the round primitive only. Key scheduling for RCS is done
// by expanding the user key through cSHAKE (see pkg/crypto/rcs.go), not by
// the classical Rijndael key-schedule recurrence.
package rijndael

// sbox is the AES/Rijndael S-box, shared by all block widths.
var sbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

var invSbox [256]byte

func init() {
	for i, v := range sbox {
		invSbox[v] = byte(i)
	}
}

// ShiftOffsets returns the row-shift distances (C1, C2, C3) for a state with
// the given number of 4-byte columns (Nb). Nb=4 and Nb=6 follow the
// original Rijndael submission table; Nb=8 (RCS-256) follows it too. Nb=16
// (RCS-512) is not part of the original table and is this implementation's
// own extension, chosen to keep shift distances spread across the wider row.
func ShiftOffsets(nb int) (c1, c2, c3 int) {
	switch {
	case nb <= 4:
		return 1, 2, 3
	case nb <= 6:
		return 1, 2, 3
	case nb <= 8:
		return 1, 3, 4
	default: // nb == 16
		return 1, 5, 8
	}
}

// SubBytes applies the S-box to every byte of state in place.
func SubBytes(state []byte) {
	for i, b := range state {
		state[i] = sbox[b]
	}
}

// InvSubBytes applies the inverse S-box to every byte of state in place.
func InvSubBytes(state []byte) {
	for i, b := range state {
		state[i] = invSbox[b]
	}
}

// ShiftRows cyclically shifts each of the 4 rows of the Nb-column state left
// by the width-appropriate offset.
func ShiftRows(state []byte) {
	nb := len(state) / 4
	c1, c2, c3 := ShiftOffsets(nb)
	shiftRow(state, nb, 1, c1)
	shiftRow(state, nb, 2, c2)
	shiftRow(state, nb, 3, c3)
}

// InvShiftRows is the inverse of ShiftRows.
func InvShiftRows(state []byte) {
	nb := len(state) / 4
	c1, c2, c3 := ShiftOffsets(nb)
	shiftRow(state, nb, 1, nb-c1)
	shiftRow(state, nb, 2, nb-c2)
	shiftRow(state, nb, 3, nb-c3)
}

// state[row + 4*col] is the byte layout; shiftRow rotates row r left by n columns.
func shiftRow(state []byte, nb, row, n int) {
	n %= nb
	if n == 0 {
		return
	}
	tmp := make([]byte, nb)
	for col := 0; col < nb; col++ {
		tmp[col] = state[row+4*((col+n)%nb)]
	}
	for col := 0; col < nb; col++ {
		state[row+4*col] = tmp[col]
	}
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return (b << 1) ^ 0x1b
	}
	return b << 1
}

func gmul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

// MixColumns applies the standard AES MixColumns matrix to every 4-byte
// column of the Nb-column state.
func MixColumns(state []byte) {
	nb := len(state) / 4
	for col := 0; col < nb; col++ {
		i := 4 * col
		a0, a1, a2, a3 := state[i], state[i+1], state[i+2], state[i+3]
		state[i] = xtime(a0) ^ (xtime(a1) ^ a1) ^ a2 ^ a3
		state[i+1] = a0 ^ xtime(a1) ^ (xtime(a2) ^ a2) ^ a3
		state[i+2] = a0 ^ a1 ^ xtime(a2) ^ (xtime(a3) ^ a3)
		state[i+3] = (xtime(a0) ^ a0) ^ a1 ^ a2 ^ xtime(a3)
	}
}

// InvMixColumns is the inverse of MixColumns.
func InvMixColumns(state []byte) {
	nb := len(state) / 4
	for col := 0; col < nb; col++ {
		i := 4 * col
		a0, a1, a2, a3 := state[i], state[i+1], state[i+2], state[i+3]
		state[i] = gmul(a0, 0x0e) ^ gmul(a1, 0x0b) ^ gmul(a2, 0x0d) ^ gmul(a3, 0x09)
		state[i+1] = gmul(a0, 0x09) ^ gmul(a1, 0x0e) ^ gmul(a2, 0x0b) ^ gmul(a3, 0x0d)
		state[i+2] = gmul(a0, 0x0d) ^ gmul(a1, 0x09) ^ gmul(a2, 0x0e) ^ gmul(a3, 0x0b)
		state[i+3] = gmul(a0, 0x0b) ^ gmul(a1, 0x0d) ^ gmul(a2, 0x09) ^ gmul(a3, 0x0e)
	}
}

// AddRoundKey XORs the round key into the state.
func AddRoundKey(state, roundKey []byte) {
	for i := range state {
		state[i] ^= roundKey[i]
	}
}

// EncryptBlock runs the full forward Rijndael round sequence over state
// in place, given rounds+1 round keys each len(state) bytes long.
func EncryptBlock(state []byte, roundKeys [][]byte) {
	rounds := len(roundKeys) - 1
	AddRoundKey(state, roundKeys[0])
	for r := 1; r < rounds; r++ {
		SubBytes(state)
		ShiftRows(state)
		MixColumns(state)
		AddRoundKey(state, roundKeys[r])
	}
	SubBytes(state)
	ShiftRows(state)
	AddRoundKey(state, roundKeys[rounds])
}

// DecryptBlock runs the inverse cipher (FIPS 197 InvCipher) over state in place,
// given the same rounds+1 round keys EncryptBlock used, in the same order.
// RCS/CSX never need this (CTR mode makes the forward round its own
// inverse); RHX's CBC/ECB block modes do.
func DecryptBlock(state []byte, roundKeys [][]byte) {
	rounds := len(roundKeys) - 1
	AddRoundKey(state, roundKeys[rounds])
	for r := rounds - 1; r >= 1; r-- {
		InvShiftRows(state)
		InvSubBytes(state)
		AddRoundKey(state, roundKeys[r])
		InvMixColumns(state)
	}
	InvShiftRows(state)
	InvSubBytes(state)
	AddRoundKey(state, roundKeys[0])
}
