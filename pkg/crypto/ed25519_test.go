package crypto_test

import (
	"testing"

	"github.com/qscore/qscore/pkg/crypto"
)

func TestEd25519SignVerify(t *testing.T) {
	kp, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair failed: %v", err)
	}

	msg := []byte("ticket ciphertext to be provenance-signed")
	sig, err := crypto.Ed25519Sign(kp.PrivateKey, msg)
	if err != nil {
		t.Fatalf("Ed25519Sign failed: %v", err)
	}
	if len(sig) != crypto.Ed25519SignatureSize {
		t.Errorf("signature size: got %d, want %d", len(sig), crypto.Ed25519SignatureSize)
	}

	if !crypto.Ed25519Verify(kp.PublicKey, msg, sig) {
		t.Error("valid signature rejected")
	}

	sig[0] ^= 0x01
	if crypto.Ed25519Verify(kp.PublicKey, msg, sig) {
		t.Error("tampered signature accepted")
	}
}

func TestEd25519InvalidKeySizes(t *testing.T) {
	if _, err := crypto.Ed25519Sign(make([]byte, 10), []byte("msg")); err == nil {
		t.Error("expected error for a short private key")
	}
	if crypto.Ed25519Verify(make([]byte, 10), []byte("msg"), make([]byte, crypto.Ed25519SignatureSize)) {
		t.Error("verify with a short public key should fail")
	}
}

func TestEd25519Zeroize(t *testing.T) {
	kp, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair failed: %v", err)
	}
	kp.Zeroize()
	for i, b := range kp.PrivateKey {
		if b != 0 {
			t.Fatalf("private key byte %d not zeroed", i)
		}
	}
}
