// End-to-end tests for the wide-block cipher suites (RCS-256, RCS-512,
// CSX-256) at the session layer: keys derived per suite, traffic encrypted
// by the initiator, decrypted by the responder, tamper rejected.
package integration

import (
	"bytes"
	"testing"

	"github.com/qscore/qscore/internal/constants"
	"github.com/qscore/qscore/pkg/crypto"
	"github.com/qscore/qscore/pkg/tunnel"
)

func establishSuitePair(t *testing.T, suite constants.CipherSuite) (*tunnel.Session, *tunnel.Session) {
	t.Helper()

	clientSession, err := tunnel.NewSession(tunnel.RoleInitiator)
	if err != nil {
		t.Fatalf("failed to create client session: %v", err)
	}
	serverSession, err := tunnel.NewSession(tunnel.RoleResponder)
	if err != nil {
		t.Fatalf("failed to create server session: %v", err)
	}

	masterSecret, err := crypto.SecureRandomBytes(constants.CHKEMSharedSecretSize)
	if err != nil {
		t.Fatalf("failed to generate master secret: %v", err)
	}

	if err := clientSession.InitializeKeys(masterSecret, suite); err != nil {
		t.Fatalf("client InitializeKeys failed for %s: %v", suite, err)
	}
	if err := serverSession.InitializeKeys(masterSecret, suite); err != nil {
		t.Fatalf("server InitializeKeys failed for %s: %v", suite, err)
	}

	return clientSession, serverSession
}

func TestWideCipherSuiteTraffic(t *testing.T) {
	suites := []constants.CipherSuite{
		constants.CipherSuiteRCS256,
		constants.CipherSuiteRCS512,
		constants.CipherSuiteCSX256,
	}

	for _, suite := range suites {
		t.Run(suite.String(), func(t *testing.T) {
			clientSession, serverSession := establishSuitePair(t, suite)
			defer clientSession.Close()
			defer serverSession.Close()

			messages := [][]byte{
				[]byte("first message over a wide-block suite"),
				bytes.Repeat([]byte{0x7E}, 1024),
				[]byte{0x00},
			}

			for i, msg := range messages {
				ciphertext, seq, err := clientSession.Encrypt(msg)
				if err != nil {
					t.Fatalf("Encrypt message %d failed: %v", i, err)
				}
				if bytes.Contains(ciphertext, msg) && len(msg) > 4 {
					t.Errorf("message %d appears in ciphertext", i)
				}

				plaintext, err := serverSession.Decrypt(ciphertext, seq)
				if err != nil {
					t.Fatalf("Decrypt message %d failed: %v", i, err)
				}
				if !bytes.Equal(plaintext, msg) {
					t.Errorf("message %d roundtrip mismatch", i)
				}
			}
		})
	}
}

func TestWideCipherSuiteTamperRejected(t *testing.T) {
	clientSession, serverSession := establishSuitePair(t, constants.CipherSuiteRCS256)
	defer clientSession.Close()
	defer serverSession.Close()

	ciphertext, seq, err := clientSession.Encrypt([]byte("integrity protected"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)/2] ^= 0x01
	if _, err := serverSession.Decrypt(tampered, seq); err == nil {
		t.Fatal("expected decryption of tampered traffic to fail")
	}
}

func TestWideCipherSuiteKeySizes(t *testing.T) {
	if got := constants.CipherSuiteRCS512.KeySize(); got != constants.RCS512KeySize {
		t.Errorf("RCS-512 key size: got %d, want %d", got, constants.RCS512KeySize)
	}
	if got := constants.CipherSuiteRCS256.KeySize(); got != constants.RCS256KeySize {
		t.Errorf("RCS-256 key size: got %d, want %d", got, constants.RCS256KeySize)
	}
}
