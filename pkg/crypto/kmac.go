// kmac.go implements KMAC-128/256 (SP 800-185), a Keccak-based MAC built on
// cSHAKE, over internal/keccak's sponge. golang.org/x/crypto/sha3 does not
// expose KMAC, so the construction itself (bytepad(encode_string(K)) || X ||
// right_encode(L)) lives here; internal/keccak only supplies the bare
// permutation and SP 800-185 byte-encoding helpers.
package crypto

import (
	"github.com/qscore/qscore/internal/keccak"
	qerrors "github.com/qscore/qscore/internal/errors"
)

const (
	kmac128Rate = 168
	kmac256Rate = 136
	kmac512Rate = 72
)

// KMAC128 computes KMAC128(key, data, outLen, customization).
func KMAC128(key, data, customization []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, qerrors.ErrInvalidKeySize
	}
	return keccak.KMAC(kmac128Rate, 24, key, data, customization, outLen), nil
}

// KMAC256 computes KMAC256(key, data, outLen, customization).
func KMAC256(key, data, customization []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, qerrors.ErrInvalidKeySize
	}
	return keccak.KMAC(kmac256Rate, 24, key, data, customization, outLen), nil
}

// KMAC512 computes a 512-bit-security-targeted KMAC variant at the SHA3-512
// sponge rate. This is not part of SP 800-185 (which defines only the
// 128- and 256-bit-security KMAC variants); it follows the convention used
// by wide-block cipher designs, RCS-512 in particular, that pair a wider
// block with a wider MAC rate for matched security margins.
func KMAC512(key, data, customization []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, qerrors.ErrInvalidKeySize
	}
	return keccak.KMAC(kmac512Rate, 24, key, data, customization, outLen), nil
}

// KMACR12 computes a 12-round reduced variant of KMAC256, as used by RCS's
// RCSAuthKMACR12 authentication mode. This is NOT a NIST standard
// construction; it exists only for interop with that mode and must not be
// presented as SP 800-185 compliant.
func KMACR12(key, data, customization []byte, outLen int) ([]byte, error) {
	if outLen <= 0 {
		return nil, qerrors.ErrInvalidKeySize
	}
	return keccak.KMAC(kmac256Rate, 12, key, data, customization, outLen), nil
}
