// sha2.go implements SHA-2 digests and HMAC over the standard library
// (crypto/sha256, crypto/sha512, crypto/hmac) as thin wrappers over vetted
// primitives, the same way x25519.go wraps crypto/ecdh.
//
// Mathematical Foundation:
//
// SHA-2 is a Merkle-Damgård construction; SHA-384 is SHA-512 truncated to a
// different IV and output length. HMAC(K, m) = H((K̄ XOR opad) || H((K̄ XOR ipad) || m))
// where K̄ is K, zero-padded to the block size (or hashed first if longer).
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA384 returns the SHA-384 digest of data.
func SHA384(data []byte) [48]byte {
	return sha512.Sum384(data)
}

// SHA512 returns the SHA-512 digest of data.
func SHA512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

// HMACSHA256 computes HMAC-SHA-256(key, data).
func HMACSHA256(key, data []byte) []byte {
	return hmacSum(sha256.New, key, data)
}

// HMACSHA384 computes HMAC-SHA-384(key, data).
func HMACSHA384(key, data []byte) []byte {
	return hmacSum(sha512.New384, key, data)
}

// HMACSHA512 computes HMAC-SHA-512(key, data).
func HMACSHA512(key, data []byte) []byte {
	return hmacSum(sha512.New, key, data)
}

func hmacSum(newHash func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 reports whether mac is the correct HMAC-SHA-256 tag for
// (key, data), comparing in constant time.
func VerifyHMACSHA256(key, data, mac []byte) bool {
	expected := HMACSHA256(key, data)
	return hmac.Equal(expected, mac)
}
