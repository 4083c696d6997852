// Package keccak implements the Keccak-f[1600] permutation and a generic
// sponge construction parameterized over the round count.
//
// golang.org/x/crypto/sha3 already implements the standard 24-round sponge
// for SHA-3/SHAKE/cSHAKE, and pkg/crypto delegates to it for those. This
// package exists for the cases that library does not cover: the reduced
// 12-round permutation used by the non-standard KMAC-R12 variant (see
// rcs.go), and a KMAC (SP 800-185) construction, which x/crypto/sha3 does
// not provide at all.
package keccak

const laneCount = 25

// roundConstants are the ι-step round constants for all 24 rounds; a
// 12-round permutation uses the last 12 of them (rounds 12..23), matching
// the "start late" reduced-round convention used by Keccak variants such as
// KangarooTwelve.
var roundConstants = [24]uint64{
	0x0000000000000001, 0x0000000000008082, 0x800000000000808A, 0x8000000080008000,
	0x000000000000808B, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
	0x000000000000008A, 0x0000000000000088, 0x0000000080008009, 0x000000008000000A,
	0x000000008000808B, 0x800000000000008B, 0x8000000000008089, 0x8000000000008003,
	0x8000000000008002, 0x8000000000000080, 0x000000000000800A, 0x800000008000000A,
	0x8000000080008081, 0x8000000000008080, 0x0000000080000001, 0x8000000080008008,
}

// rotationOffsets is the ρ-step bit-rotation table indexed by x+5y.
var rotationOffsets = [25]uint{
	0, 1, 62, 28, 27,
	36, 44, 6, 55, 20,
	3, 10, 43, 25, 39,
	41, 45, 15, 21, 8,
	18, 2, 61, 56, 14,
}

// piLane maps each lane index to the source index it receives from in the π step.
var piLane = [25]int{
	0, 6, 12, 18, 24,
	3, 9, 10, 16, 22,
	1, 7, 13, 19, 20,
	4, 5, 11, 17, 23,
	2, 8, 14, 15, 21,
}

func rotl64(x uint64, n uint) uint64 {
	n &= 63
	if n == 0 {
		return x
	}
	return (x << n) | (x >> (64 - n))
}

// Permute applies the Keccak-f[1600] permutation to state using the given
// number of rounds (12 or 24). state must have exactly 25 lanes.
func Permute(state *[laneCount]uint64, rounds int) {
	start := 24 - rounds
	var b [25]uint64
	var c [5]uint64
	var d [5]uint64

	for round := start; round < 24; round++ {
		// θ
		for x := 0; x < 5; x++ {
			c[x] = state[x] ^ state[x+5] ^ state[x+10] ^ state[x+15] ^ state[x+20]
		}
		for x := 0; x < 5; x++ {
			d[x] = c[(x+4)%5] ^ rotl64(c[(x+1)%5], 1)
		}
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				state[x+5*y] ^= d[x]
			}
		}

		// ρ and π
		for i := 0; i < 25; i++ {
			b[i] = rotl64(state[piLane[i]], rotationOffsets[piLane[i]])
		}

		// χ
		for y := 0; y < 5; y++ {
			row := y * 5
			for x := 0; x < 5; x++ {
				state[row+x] = b[row+x] ^ ((^b[row+(x+1)%5]) & b[row+(x+2)%5])
			}
		}

		// ι
		state[0] ^= roundConstants[round]
	}
}

// State is a 1600-bit Keccak sponge state plus absorb/squeeze bookkeeping.
type State struct {
	lanes  [laneCount]uint64
	rate      int // bytes absorbed/squeezed per permutation call
	rounds    int
	pos       int // byte offset into the current rate-sized buffer
	buf       [200]byte
	squeezing bool
}

// NewState creates a sponge with the given rate (in bytes) and round count (12 or 24).
func NewState(rateBytes, rounds int) *State {
	return &State{rate: rateBytes, rounds: rounds}
}

func (s *State) laneBytes() []byte {
	// view the lane array as bytes, little-endian, for absorb/squeeze XOR.
	var out [200]byte
	for i, lane := range s.lanes {
		out[8*i+0] = byte(lane)
		out[8*i+1] = byte(lane >> 8)
		out[8*i+2] = byte(lane >> 16)
		out[8*i+3] = byte(lane >> 24)
		out[8*i+4] = byte(lane >> 32)
		out[8*i+5] = byte(lane >> 40)
		out[8*i+6] = byte(lane >> 48)
		out[8*i+7] = byte(lane >> 56)
	}
	return out[:]
}

func (s *State) setLaneBytes(b []byte) {
	for i := 0; i < laneCount; i++ {
		off := i * 8
		s.lanes[i] = uint64(b[off]) | uint64(b[off+1])<<8 | uint64(b[off+2])<<16 |
			uint64(b[off+3])<<24 | uint64(b[off+4])<<32 | uint64(b[off+5])<<40 |
			uint64(b[off+6])<<48 | uint64(b[off+7])<<56
	}
}

// Absorb XORs input into the sponge, permuting whenever a full rate-sized
// block accumulates. It may be called repeatedly before Finalize.
func (s *State) Absorb(input []byte) {
	if s.squeezing {
		panic("keccak: Absorb called after squeezing began")
	}
	for len(input) > 0 {
		n := s.rate - s.pos
		if n > len(input) {
			n = len(input)
		}
		for i := 0; i < n; i++ {
			s.buf[s.pos+i] ^= input[i]
		}
		s.pos += n
		input = input[n:]
		if s.pos == s.rate {
			s.permuteBuf()
			s.pos = 0
		}
	}
}

func (s *State) permuteBuf() {
	laneBytes := s.laneBytes()
	for i := 0; i < s.rate; i++ {
		laneBytes[i] ^= s.buf[i]
	}
	s.setLaneBytes(laneBytes)
	Permute(&s.lanes, s.rounds)
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// Finalize pads the absorbed input with the given domain-separation byte
// (e.g. 0x06 for SHA-3, 0x1F for SHAKE, 0x04 for cSHAKE/KMAC) followed by
// zeros and a trailing 0x80 in the last byte of the rate, then permutes once
// more and switches the state into squeezing mode.
func (s *State) Finalize(domainSep byte) {
	if s.squeezing {
		return
	}
	s.buf[s.pos] ^= domainSep
	s.buf[s.rate-1] ^= 0x80
	s.permuteBuf()
	s.pos = 0
	s.squeezing = true
}

// Squeeze emits out-length bytes, permuting between rate-sized chunks.
func (s *State) Squeeze(out []byte) {
	if !s.squeezing {
		panic("keccak: Squeeze called before Finalize")
	}
	laneBytes := s.laneBytes()
	for len(out) > 0 {
		if s.pos == s.rate {
			Permute(&s.lanes, s.rounds)
			laneBytes = s.laneBytes()
			s.pos = 0
		}
		n := s.rate - s.pos
		if n > len(out) {
			n = len(out)
		}
		copy(out, laneBytes[s.pos:s.pos+n])
		out = out[n:]
		s.pos += n
	}
}

// Reset zeros the sponge state so it can be reused or safely discarded.
func (s *State) Reset() {
	for i := range s.lanes {
		s.lanes[i] = 0
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.pos = 0
	s.squeezing = false
}
