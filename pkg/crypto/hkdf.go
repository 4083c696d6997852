// hkdf.go implements HKDF (RFC 5869) over golang.org/x/crypto/hkdf:
// HMAC-Extract followed by HMAC-Expand in counter mode.
//
// kdf.go already covers SHAKE-256-based derivation for CH-KEM; this file
// covers the HMAC-based alternative for callers that need HKDF proper
// rather than a sponge-based KDF (see rcs.go for the cSHAKE schedule).
package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	qerrors "github.com/qscore/qscore/internal/errors"
)

// HKDFSHA256 derives outLen bytes from secret using HKDF-SHA-256 with the
// given salt and info context string.
func HKDFSHA256(secret, salt, info []byte, outLen int) ([]byte, error) {
	return hkdfExpand(sha256.New, secret, salt, info, outLen)
}

// HKDFSHA512 derives outLen bytes from secret using HKDF-SHA-512.
func HKDFSHA512(secret, salt, info []byte, outLen int) ([]byte, error) {
	return hkdfExpand(sha512.New, secret, salt, info, outLen)
}

func hkdfExpand(newHash func() hash.Hash, secret, salt, info []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, qerrors.ErrInvalidKeySize
	}
	reader := hkdf.New(newHash, secret, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, qerrors.NewCryptoError("HKDF", err)
	}
	return out, nil
}
