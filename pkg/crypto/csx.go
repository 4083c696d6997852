// csx.go implements CSX, the ChaCha-family sibling of RCS: plain ChaCha20
// (or XChaCha20, via a 24-byte nonce) keystream XOR, authenticated with a
// KMAC tag instead of Poly1305. It exposes the same
// initialize/set_associated/transform/finalize contract and the same
// KMAC/KMAC-R12 mode choice RCS exposes, so the two wide-cipher families are
// interchangeable at the protocol layer (pkg/protocol's cipher-suite
// negotiation treats CipherSuiteRCS256 and CipherSuiteCSX256 identically
// above this file).
//
// golang.org/x/crypto/chacha20 supplies the keystream; golang.org/x/crypto's
// package tree has no KMAC, so the MAC composition reuses internal/keccak
// exactly as rcs.go does.
package crypto

import (
	"crypto/cipher"
	"crypto/subtle"

	"golang.org/x/crypto/chacha20"

	"github.com/qscore/qscore/internal/keccak"
	qerrors "github.com/qscore/qscore/internal/errors"
)

// chacha20NonceSizeStd mirrors chacha20.NonceSize for use by aead.go without
// that file needing to import golang.org/x/crypto/chacha20 directly.
const chacha20NonceSizeStd = chacha20.NonceSize

// CSXAuthMode selects the MAC construction absorbed over the ciphertext.
type CSXAuthMode int

const (
	// CSXAuthKMAC uses standard 24-round KMAC-256.
	CSXAuthKMAC CSXAuthMode = iota
	// CSXAuthKMACR12 uses the non-standard 12-round KMAC-R12 variant,
	// mirroring RCSAuthKMACR12. Not NIST-compliant; interop-only.
	CSXAuthKMACR12
	// CSXAuthNone disables authentication entirely.
	CSXAuthNone
)

const (
	csxKeySize   = 32
	csxTagSize   = 32
	csxMACRate   = 136 // SHA3-256/KMAC-256 sponge rate
	csxKeyCustom = "CSX-256"
)

// CSXCipher is a streaming CSX cipher state, mirroring RCSCipher's contract.
type CSXCipher struct {
	chacha   *chacha20.Cipher
	encrypt  bool
	authMode CSXAuthMode
	mac      *keccak.State
	nonce    []byte
	adSet    bool
	ctLen    uint64
	done     bool
}

// NewCSXCipher initializes a CSX cipher. key must be 32 bytes; nonce must be
// 12 bytes (ChaCha20) or 24 bytes (XChaCha20, extended-nonce variant).
func NewCSXCipher(key, nonce []byte, encrypt bool, authMode CSXAuthMode) (*CSXCipher, error) {
	if len(key) != csxKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	if len(nonce) != chacha20.NonceSize && len(nonce) != chacha20.NonceSizeX {
		return nil, qerrors.ErrInvalidNonce
	}

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, qerrors.NewCryptoError("CSXCipher.init", err)
	}

	c := &CSXCipher{
		chacha:   stream,
		encrypt:  encrypt,
		authMode: authMode,
		nonce:    append([]byte(nil), nonce...),
	}

	if authMode != CSXAuthNone {
		macKey, err := deriveCSXMACKey(key, nonce, authMode)
		if err != nil {
			return nil, err
		}
		rounds := 24
		if authMode == CSXAuthKMACR12 {
			rounds = 12
		}
		c.mac = keccak.NewCShake(csxMACRate, rounds, []byte("KMAC"), nil)
		c.mac.Absorb(keccak.Bytepad(keccak.EncodeString(macKey), csxMACRate))
	}

	return c, nil
}

// deriveCSXMACKey derives a MAC key independent of the ChaCha20 keystream
// via cSHAKE-256(key, nonce), so recovering the tag key never helps recover
// keystream (and vice versa), the same separation RCS's cSHAKE-derived MAC
// key gets from its round-key expansion.
func deriveCSXMACKey(key, nonce []byte, authMode CSXAuthMode) ([]byte, error) {
	s := keccak.NewCShake(csxMACRate, 24, []byte("CSX-MACKey"), []byte(csxKeyCustom))
	s.Absorb(key)
	s.Absorb(nonce)
	s.Finalize(0x04)
	out := make([]byte, csxTagSize)
	s.Squeeze(out)
	return out, nil
}

// SetAssociatedData absorbs ad into the MAC exactly once, before the first
// Transform call, if at all.
func (c *CSXCipher) SetAssociatedData(ad []byte) error {
	if c.adSet {
		return qerrors.ErrInvalidState
	}
	c.adSet = true
	if c.mac == nil {
		return nil
	}
	c.mac.Absorb(ad)
	c.mac.Absorb(c.nonce)
	return nil
}

// Transform encrypts or decrypts src into dst via the ChaCha20 keystream and,
// if authenticated, absorbs the ciphertext into the MAC. May be called
// repeatedly to stream a message.
func (c *CSXCipher) Transform(dst, src []byte) error {
	if c.done {
		return qerrors.ErrInvalidState
	}
	if !c.adSet {
		if err := c.SetAssociatedData(nil); err != nil {
			return err
		}
	}
	if len(dst) != len(src) {
		return qerrors.ErrInvalidCiphertext
	}

	c.chacha.XORKeyStream(dst, src)

	if c.mac != nil {
		if c.encrypt {
			c.mac.Absorb(dst)
		} else {
			c.mac.Absorb(src)
		}
	}
	c.ctLen += uint64(len(src))
	return nil
}

// Finalize flushes the MAC and returns the tag. Unauthenticated ciphers
// return a nil tag.
func (c *CSXCipher) Finalize() ([]byte, error) {
	if c.done {
		return nil, qerrors.ErrInvalidState
	}
	c.done = true
	if c.mac == nil {
		return nil, nil
	}
	var lenSuffix [8]byte
	putUint64LE(lenSuffix[:], c.ctLen)
	c.mac.Absorb(lenSuffix[:])
	c.mac.Absorb(keccak.RightEncode(uint64(csxTagSize) * 8))
	c.mac.Finalize(0x04)
	tag := make([]byte, csxTagSize)
	c.mac.Squeeze(tag)
	return tag, nil
}

// CSXEncrypt is a one-shot convenience wrapper returning ciphertext || tag.
func CSXEncrypt(key, nonce, ad, plaintext []byte, authMode CSXAuthMode) ([]byte, error) {
	c, err := NewCSXCipher(key, nonce, true, authMode)
	if err != nil {
		return nil, err
	}
	if err := c.SetAssociatedData(ad); err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	if err := c.Transform(ciphertext, plaintext); err != nil {
		return nil, err
	}
	tag, err := c.Finalize()
	if err != nil {
		return nil, err
	}
	return append(ciphertext, tag...), nil
}

// CSXDecrypt is the inverse of CSXEncrypt, rejecting tampered ciphertext
// before returning any plaintext.
func CSXDecrypt(key, nonce, ad, ciphertextAndTag []byte, authMode CSXAuthMode) ([]byte, error) {
	tagSize := csxTagSize
	if authMode == CSXAuthNone {
		tagSize = 0
	}
	if len(ciphertextAndTag) < tagSize {
		return nil, qerrors.ErrCiphertextTooShort
	}
	ciphertext := ciphertextAndTag[:len(ciphertextAndTag)-tagSize]
	receivedTag := ciphertextAndTag[len(ciphertextAndTag)-tagSize:]

	c, err := NewCSXCipher(key, nonce, false, authMode)
	if err != nil {
		return nil, err
	}
	if err := c.SetAssociatedData(ad); err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	if err := c.Transform(plaintext, ciphertext); err != nil {
		return nil, err
	}
	tag, err := c.Finalize()
	if err != nil {
		return nil, err
	}

	if authMode != CSXAuthNone && subtle.ConstantTimeCompare(tag, receivedTag) != 1 {
		Zeroize(plaintext)
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// csxAEAD adapts CSXEncrypt/CSXDecrypt to cipher.AEAD, the same way rcsAEAD
// does for RCS, so pkg/crypto/aead.go can dispatch to it transparently.
type csxAEAD struct {
	key []byte
}

func newCSXAEAD(key []byte) cipher.AEAD {
	return &csxAEAD{key: append([]byte(nil), key...)}
}

func (c *csxAEAD) NonceSize() int { return chacha20NonceSizeStd }
func (c *csxAEAD) Overhead() int  { return csxTagSize }

func (c *csxAEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	ct, err := CSXEncrypt(c.key, nonce, additionalData, plaintext, CSXAuthKMAC)
	if err != nil {
		panic(err) // cipher.AEAD.Seal has no error return; inputs are caller-validated
	}
	return append(dst, ct...)
}

func (c *csxAEAD) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	pt, err := CSXDecrypt(c.key, nonce, additionalData, ciphertext, CSXAuthKMAC)
	if err != nil {
		return nil, err
	}
	return append(dst, pt...), nil
}
