// blockmode.go implements raw AES block modes (CBC, CTR-BE, and ECB) over
// stdlib crypto/aes, plus PKCS#7 padding, for interoperability testing and
// for components that need a bare block mode rather than the combined AEAD
// of aead.go.
//
// crypto/cipher's CTR helper already increments its counter as a big-endian
// integer over the full block, matching CTR-BE; ECB is deliberately absent
// from the standard library as an insecure mode, so it is hand-rolled here
// and documented as test-only.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	qerrors "github.com/qscore/qscore/internal/errors"
)

// BlockSize is the AES/Rijndael block size in bytes.
const BlockSize = aes.BlockSize

// PKCS7Pad appends block - (len(data) mod block) padding bytes, each equal
// to the pad length k, where 1 <= k <= block.
func PKCS7Pad(data []byte, block int) []byte {
	k := block - (len(data) % block)
	out := make([]byte, len(data)+k)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(k)
	}
	return out
}

// PKCS7Unpad validates and strips PKCS#7 padding. It returns
// ErrInvalidCiphertext if the padding is malformed. An unpadded block
// ending in the byte 0x01 is indistinguishable from a single byte of
// padding; callers that need exact length recovery independent of this
// ambiguity must track plaintext length out of band.
func PKCS7Unpad(data []byte, block int) ([]byte, error) {
	if len(data) == 0 || len(data)%block != 0 {
		return nil, qerrors.ErrInvalidCiphertext
	}
	k := int(data[len(data)-1])
	if k == 0 || k > block || k > len(data) {
		return nil, qerrors.ErrInvalidCiphertext
	}
	for _, b := range data[len(data)-k:] {
		if int(b) != k {
			return nil, qerrors.ErrInvalidCiphertext
		}
	}
	return data[:len(data)-k], nil
}

// CBCEncrypt encrypts PKCS#7-padded plaintext under AES-CBC with the given
// key and IV (one block long). The IV is not mutated; the caller's copy is
// used as the initial chaining value only.
func CBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("CBCEncrypt", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	padded := PKCS7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// CBCDecrypt decrypts AES-CBC ciphertext and strips PKCS#7 padding.
func CBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("CBCDecrypt", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, qerrors.ErrCiphertextTooShort
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return PKCS7Unpad(out, block.BlockSize())
}

// CTRTransform encrypts or decrypts data under AES-CTR with a big-endian
// block counter seeded from iv; CTR is its own inverse.
func CTRTransform(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("CTRTransform", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

// ECBEncrypt encrypts PKCS#7-padded plaintext block-by-block with no
// chaining. ECB leaks plaintext block equality and is provided for test
// vectors only; it must not be used for real traffic.
func ECBEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("ECBEncrypt", err)
	}
	padded := PKCS7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], padded[i:i+block.BlockSize()])
	}
	return out, nil
}

// ECBEncryptBlock encrypts exactly one block with no padding, for KAT
// vectors that give a single ciphertext block directly.
func ECBEncryptBlock(key, plaintextBlock []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("ECBEncryptBlock", err)
	}
	if len(plaintextBlock) != block.BlockSize() {
		return nil, qerrors.ErrCiphertextTooShort
	}
	out := make([]byte, block.BlockSize())
	block.Encrypt(out, plaintextBlock)
	return out, nil
}

// ECBDecrypt decrypts ECB ciphertext and strips PKCS#7 padding.
func ECBDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("ECBDecrypt", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, qerrors.ErrCiphertextTooShort
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(out[i:i+block.BlockSize()], ciphertext[i:i+block.BlockSize()])
	}
	return PKCS7Unpad(out, block.BlockSize())
}
