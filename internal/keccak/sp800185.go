package keccak

// SP 800-185 bit-string encoding helpers shared by cSHAKE and KMAC.

func leftEncode(x uint64) []byte {
	if x == 0 {
		return []byte{1, 0}
	}
	var tmp [8]byte
	n := 0
	for v := x; v > 0; v >>= 8 {
		n++
	}
	for i := 0; i < n; i++ {
		tmp[n-1-i] = byte(x >> (8 * i))
	}
	return append([]byte{byte(n)}, tmp[:n]...)
}

func rightEncode(x uint64) []byte {
	if x == 0 {
		return []byte{0, 1}
	}
	var tmp [8]byte
	n := 0
	for v := x; v > 0; v >>= 8 {
		n++
	}
	for i := 0; i < n; i++ {
		tmp[n-1-i] = byte(x >> (8 * i))
	}
	return append(tmp[:n], byte(n))
}

func encodeString(s []byte) []byte {
	out := leftEncode(uint64(len(s)) * 8)
	return append(out, s...)
}

// bytepad pads x with left_encode(w) so the result is a multiple of w bytes.
func bytepad(x []byte, w int) []byte {
	prefix := leftEncode(uint64(w))
	out := make([]byte, 0, len(prefix)+len(x)+w)
	out = append(out, prefix...)
	out = append(out, x...)
	for len(out)%w != 0 {
		out = append(out, 0)
	}
	return out
}

// EncodeString exports encodeString for callers outside this package that
// need to frame their own bytepad(encode_string(...)) sequences incrementally
// (RCS's streaming MAC, in particular) rather than through a single KMAC call.
func EncodeString(s []byte) []byte { return encodeString(s) }

// Bytepad exports bytepad; see EncodeString.
func Bytepad(x []byte, w int) []byte { return bytepad(x, w) }

// RightEncode exports rightEncode; see EncodeString.
func RightEncode(x uint64) []byte { return rightEncode(x) }

// NewCShake absorbs the cSHAKE domain frame bytepad(encode_string(N) ||
// encode_string(S), rate) into a fresh sponge and returns it ready for
// message absorption. When both N and S are empty, cSHAKE degenerates to
// plain SHAKE and callers should use a bare State instead.
func NewCShake(rate, rounds int, funcName, custom []byte) *State {
	s := NewState(rate, rounds)
	frame := bytepad(append(encodeString(funcName), encodeString(custom)...), rate)
	s.Absorb(frame)
	return s
}

// KMAC computes KMAC(K, X, L, S) per SP 800-185 using the given rate/round
// Keccak sponge. L is the output length in bytes.
func KMAC(rate, rounds int, key, data, customization []byte, outLen int) []byte {
	s := NewCShake(rate, rounds, []byte("KMAC"), customization)
	s.Absorb(bytepad(encodeString(key), rate))
	s.Absorb(data)
	s.Absorb(rightEncode(uint64(outLen) * 8))
	s.Finalize(0x04)
	out := make([]byte, outLen)
	s.Squeeze(out)
	return out
}
