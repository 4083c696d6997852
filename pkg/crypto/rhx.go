// rhx.go implements RHX ("Rijndael with an extended key schedule"): a plain
// 128-bit-block AES variant whose round-key schedule is replaced with a
// cSHAKE- or HKDF-derived expansion, in place of the classical Rijndael
// key-schedule recurrence. RHX-256 runs 29 rounds from a 120-word (30
// round-key) schedule; RHX-512 runs 59 rounds from a 240-word (60
// round-key) schedule.
//
// This is distinct from RCS (rcs.go), which widens the block to 256/512
// bits and also expands its round keys with cSHAKE. RHX keeps AES's
// 128-bit block and widens the schedule instead. Both reuse
// internal/rijndael's round transform; RHX additionally needs
// internal/rijndael.DecryptBlock since its CBC/ECB modes, unlike RCS's CTR
// mode, are not their own inverse.
package crypto

import (
	"crypto/cipher"
	"crypto/subtle"

	"github.com/qscore/qscore/internal/constants"
	qerrors "github.com/qscore/qscore/internal/errors"
	"github.com/qscore/qscore/internal/keccak"
	"github.com/qscore/qscore/internal/rijndael"
)

// RHXVariant selects the round count and schedule width.
type RHXVariant int

const (
	// RHX256 uses a 256-bit key, 29 rounds, and a 120-word schedule.
	RHX256 RHXVariant = iota
	// RHX512 uses a 512-bit key, 59 rounds, and a 240-word schedule.
	RHX512
)

// RHXScheduleSource selects the construction used to expand the user key
// into the round-key schedule.
type RHXScheduleSource int

const (
	// RHXScheduleCShake derives the schedule from cSHAKE-256 (RHX-256) or
	// cSHAKE-512 (RHX-512), matching RCS's key-schedule style.
	RHXScheduleCShake RHXScheduleSource = iota
	// RHXScheduleHKDF derives the schedule from HKDF-SHA2-256 (RHX-256) or
	// HKDF-SHA2-512 (RHX-512).
	RHXScheduleHKDF
)

func (v RHXVariant) keySize() int {
	if v == RHX512 {
		return constants.RHX512KeySize
	}
	return constants.RHX256KeySize
}

func (v RHXVariant) rounds() int {
	if v == RHX512 {
		return constants.RHX512Rounds
	}
	return constants.RHX256Rounds
}

func (v RHXVariant) scheduleWords() int {
	if v == RHX512 {
		return constants.RHX512ScheduleWords
	}
	return constants.RHX256ScheduleWords
}

// expandRHXSchedule derives (rounds+1) 16-byte round keys from key (and an
// optional tweak used as nonce/salt) using the selected expansion source.
func expandRHXSchedule(variant RHXVariant, key, tweak []byte, source RHXScheduleSource) ([][]byte, error) {
	if len(key) != variant.keySize() {
		return nil, qerrors.ErrInvalidKeySize
	}
	outLen := variant.scheduleWords() * 4 // 4 bytes/word

	var expanded []byte
	switch source {
	case RHXScheduleHKDF:
		var err error
		if variant == RHX512 {
			expanded, err = HKDFSHA512(key, tweak, []byte("RHX-512"), outLen)
		} else {
			expanded, err = HKDFSHA256(key, tweak, []byte("RHX-256"), outLen)
		}
		if err != nil {
			return nil, err
		}
	default:
		custom := "RHX-256"
		rate := kmac256Rate
		if variant == RHX512 {
			custom = "RHX-512"
			rate = kmac512Rate
		}
		s := keccak.NewCShake(rate, 24, []byte("RHX-KeySchedule"), []byte(custom))
		s.Absorb(key)
		s.Absorb(tweak)
		s.Finalize(0x04)
		expanded = make([]byte, outLen)
		s.Squeeze(expanded)
	}

	rounds := variant.rounds()
	roundKeys := make([][]byte, rounds+1)
	for i := 0; i <= rounds; i++ {
		roundKeys[i] = expanded[i*constants.RHXBlockSize : (i+1)*constants.RHXBlockSize]
	}
	return roundKeys, nil
}

// rhxBlockCipher adapts RHX's extended-schedule round transform to the
// standard library's cipher.Block interface, so RHX can drive the same
// CBC/ECB machinery blockmode.go provides for plain AES.
type rhxBlockCipher struct {
	roundKeys [][]byte
}

// NewRHXCipher derives an RHX round-key schedule and returns a
// cipher.Block over it. tweak is absorbed alongside key during schedule
// expansion (e.g. a per-session nonce or context string); it may be nil.
func NewRHXCipher(variant RHXVariant, key, tweak []byte, source RHXScheduleSource) (cipher.Block, error) {
	roundKeys, err := expandRHXSchedule(variant, key, tweak, source)
	if err != nil {
		return nil, err
	}
	return &rhxBlockCipher{roundKeys: roundKeys}, nil
}

func (c *rhxBlockCipher) BlockSize() int { return constants.RHXBlockSize }

func (c *rhxBlockCipher) Encrypt(dst, src []byte) {
	buf := append([]byte(nil), src[:constants.RHXBlockSize]...)
	rijndael.EncryptBlock(buf, c.roundKeys)
	copy(dst, buf)
}

func (c *rhxBlockCipher) Decrypt(dst, src []byte) {
	buf := append([]byte(nil), src[:constants.RHXBlockSize]...)
	rijndael.DecryptBlock(buf, c.roundKeys)
	copy(dst, buf)
}

// RHXCBCEncrypt encrypts PKCS#7-padded plaintext under RHX-CBC.
func RHXCBCEncrypt(variant RHXVariant, key, tweak, iv, plaintext []byte, source RHXScheduleSource) ([]byte, error) {
	block, err := NewRHXCipher(variant, key, tweak, source)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	padded := PKCS7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// RHXCBCDecrypt decrypts RHX-CBC ciphertext and strips PKCS#7 padding.
func RHXCBCDecrypt(variant RHXVariant, key, tweak, iv, ciphertext []byte, source RHXScheduleSource) ([]byte, error) {
	block, err := NewRHXCipher(variant, key, tweak, source)
	if err != nil {
		return nil, err
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

// RHXECBEncryptBlock encrypts exactly one 16-byte block with no padding,
// for KAT vectors that give a single ciphertext block directly.
func RHXECBEncryptBlock(variant RHXVariant, key, tweak, plaintextBlock []byte, source RHXScheduleSource) ([]byte, error) {
	block, err := NewRHXCipher(variant, key, tweak, source)
	if err != nil {
		return nil, err
	}
	if len(plaintextBlock) != block.BlockSize() {
		return nil, qerrors.ErrCiphertextTooShort
	}
	out := make([]byte, block.BlockSize())
	block.Encrypt(out, plaintextBlock)
	return out, nil
}

// RHXECBDecryptBlock decrypts exactly one 16-byte block with no padding.
func RHXECBDecryptBlock(variant RHXVariant, key, tweak, ciphertextBlock []byte, source RHXScheduleSource) ([]byte, error) {
	block, err := NewRHXCipher(variant, key, tweak, source)
	if err != nil {
		return nil, err
	}
	if len(ciphertextBlock) != block.BlockSize() {
		return nil, qerrors.ErrCiphertextTooShort
	}
	out := make([]byte, block.BlockSize())
	block.Decrypt(out, ciphertextBlock)
	return out, nil
}

// rhxBlocksEqual is used by tests to compare two blocks in constant time
// without leaking which byte differed first.
func rhxBlocksEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
