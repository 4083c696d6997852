package keccak

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/sha3"
)

// Our 24-round sponge must reproduce the SHAKE-128 empty-input test vector
// from NIST FIPS 202.
func TestSqueeze24RoundMatchesShake128EmptyInput(t *testing.T) {
	want := make([]byte, 32)
	ref := sha3.NewShake128()
	_, _ = ref.Read(want)

	s := NewState(168, 24)
	s.Finalize(0x1F)
	got := make([]byte, 32)
	s.Squeeze(got)

	if !bytes.Equal(got, want) {
		t.Fatalf("shake128(empty) mismatch:\n got  %x\n want %x", got, want)
	}
}

func TestPermute12RoundDiffersFrom24Round(t *testing.T) {
	var a, b [25]uint64
	a[0] = 1
	b[0] = 1
	Permute(&a, 12)
	Permute(&b, 24)
	if a == b {
		t.Fatal("12-round and 24-round permutations produced identical output")
	}
}

func TestKMACDeterministicAndKeySensitive(t *testing.T) {
	out1 := KMAC(136, 24, []byte("key-one"), []byte("hello"), nil, 32)
	out2 := KMAC(136, 24, []byte("key-one"), []byte("hello"), nil, 32)
	if !bytes.Equal(out1, out2) {
		t.Fatal("KMAC is not deterministic for identical inputs")
	}

	out3 := KMAC(136, 24, []byte("key-two"), []byte("hello"), nil, 32)
	if bytes.Equal(out1, out3) {
		t.Fatal("KMAC output did not change with the key")
	}

	out4 := KMAC(136, 12, []byte("key-one"), []byte("hello"), nil, 32)
	if bytes.Equal(out1, out4) {
		t.Fatal("KMAC-R12 collided with the 24-round variant")
	}
}

func TestLeftRightEncodeZero(t *testing.T) {
	if !bytes.Equal(leftEncode(0), []byte{1, 0}) {
		t.Fatalf("left_encode(0) = %x, want 0100", leftEncode(0))
	}
	if !bytes.Equal(rightEncode(0), []byte{0, 1}) {
		t.Fatalf("right_encode(0) = %x, want 0001", rightEncode(0))
	}
}
