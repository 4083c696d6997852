package crypto

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/chacha20"
)

func TestCSXRoundTripChaCha20Nonce(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, chacha20.NonceSize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	plaintext := []byte("wide-state chacha authenticated stream payload")
	ad := []byte("header")

	ct, err := CSXEncrypt(key, nonce, ad, plaintext, CSXAuthKMAC)
	if err != nil {
		t.Fatalf("CSXEncrypt: %v", err)
	}
	if len(ct) != len(plaintext)+32 {
		t.Fatalf("unexpected ciphertext length: got %d want %d", len(ct), len(plaintext)+32)
	}
	pt, err := CSXDecrypt(key, nonce, ad, ct, CSXAuthKMAC)
	if err != nil {
		t.Fatalf("CSXDecrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}
}

func TestCSXRoundTripXChaChaNonce(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, chacha20.NonceSizeX)
	plaintext := bytes.Repeat([]byte{0x42}, 97)

	ct, err := CSXEncrypt(key, nonce, nil, plaintext, CSXAuthKMACR12)
	if err != nil {
		t.Fatalf("CSXEncrypt: %v", err)
	}
	pt, err := CSXDecrypt(key, nonce, nil, ct, CSXAuthKMACR12)
	if err != nil {
		t.Fatalf("CSXDecrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatal("round trip mismatch")
	}
}

func TestCSXTamperedCiphertextRejected(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, chacha20.NonceSize)
	plaintext := []byte("do not tamper with this")

	ct, err := CSXEncrypt(key, nonce, nil, plaintext, CSXAuthKMAC)
	if err != nil {
		t.Fatalf("CSXEncrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0x01
	if _, err := CSXDecrypt(key, nonce, nil, ct, CSXAuthKMAC); err == nil {
		t.Fatal("expected authentication failure on tampered tag")
	}
}

func TestCSXUnauthenticatedHasNoTag(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, chacha20.NonceSize)
	plaintext := []byte("no mac here")

	ct, err := CSXEncrypt(key, nonce, nil, plaintext, CSXAuthNone)
	if err != nil {
		t.Fatalf("CSXEncrypt: %v", err)
	}
	if len(ct) != len(plaintext) {
		t.Fatalf("unauthenticated ciphertext should carry no tag: got %d want %d", len(ct), len(plaintext))
	}
}

func TestCSXInvalidNonceSizeRejected(t *testing.T) {
	key := make([]byte, 32)
	if _, err := NewCSXCipher(key, make([]byte, 8), true, CSXAuthKMAC); err == nil {
		t.Fatal("expected error for invalid nonce size")
	}
}
