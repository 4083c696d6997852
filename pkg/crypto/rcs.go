// rcs.go implements RCS ("Rijndael Cryptographic Stream"), a wide-block
// authenticated stream cipher: a 256- or 512-bit-block counter-mode
// extension of AES, authenticated with a KMAC variant absorbed over
// associated data, nonce, and ciphertext.
//
// No Go library packages a wide-block Rijndael cipher (crypto/aes is fixed
// at 128 bits; see internal/rijndael's doc comment), so the
// round transform is hand-built there; this file is the stream-cipher mode,
// key schedule, and MAC composition layered on top of it plus the KMAC
// family in kmac.go.
package crypto

import (
	"crypto/cipher"
	"crypto/subtle"

	"github.com/qscore/qscore/internal/constants"
	"github.com/qscore/qscore/internal/keccak"
	"github.com/qscore/qscore/internal/rijndael"
	qerrors "github.com/qscore/qscore/internal/errors"
)

// RCSVariant selects the wide-block width.
type RCSVariant int

const (
	// RCS256 uses a 256-bit (32-byte) block and 24 rounds.
	RCS256 RCSVariant = iota
	// RCS512 uses a 512-bit (64-byte) block and 30 rounds.
	RCS512
)

// RCSAuthMode selects the MAC construction absorbed over the ciphertext.
// KMACR12 is preserved for interop with existing tags but is not a
// NIST-standard construction; only the plain KMAC-256/512 modes are.
type RCSAuthMode int

const (
	// RCSAuthKMAC uses standard 24-round KMAC-256 (RCS-256) or KMAC-512 (RCS-512).
	RCSAuthKMAC RCSAuthMode = iota
	// RCSAuthKMACR12 uses the non-standard 12-round KMAC-R12 variant.
	// Preserved for interop with existing deployments; not NIST-compliant.
	RCSAuthKMACR12
	// RCSAuthNone disables authentication; the cipher degenerates to plain
	// wide-block CTR mode and no MAC state is instantiated at all.
	RCSAuthNone
)

func (v RCSVariant) blockSize() int {
	if v == RCS512 {
		return constants.RCS512BlockSize
	}
	return constants.RCS256BlockSize
}

func (v RCSVariant) rounds() int {
	if v == RCS512 {
		return constants.RCS512Rounds
	}
	return constants.RCS256Rounds
}

func (v RCSVariant) macSize() int {
	if v == RCS512 {
		return constants.RCS512MACSize
	}
	return constants.RCS256MACSize
}

// RCSCipher is a streaming RCS cipher state: initialize, optionally set
// associated data once, transform any number of times, then finalize.
type RCSCipher struct {
	variant   RCSVariant
	blockSize int
	rounds    int
	roundKeys [][]byte
	counter   []byte // wide-block counter, mutated in place each block
	encrypt   bool

	authMode RCSAuthMode
	mac      *keccak.State
	adSet    bool
	ctLen    uint64
	done     bool
}

// NewRCSCipher derives the round-key schedule and (if authenticated) the
// MAC key from key and nonce: cSHAKE at the 256- or 512-bit-security rate
// expands them into (rounds+1) wide round-key blocks plus the MAC key.
//
// key must be RCS256KeySize/RCS512KeySize bytes; nonce must be exactly one
// wide block.
func NewRCSCipher(variant RCSVariant, key, nonce []byte, encrypt bool, authMode RCSAuthMode) (*RCSCipher, error) {
	blockSize := variant.blockSize()
	rounds := variant.rounds()
	macSize := variant.macSize()

	if len(nonce) != blockSize {
		return nil, qerrors.ErrInvalidNonce
	}

	macKeySize := 0
	if authMode != RCSAuthNone {
		macKeySize = macSize
	}

	expandLen := (rounds+1)*blockSize + macKeySize
	expanded, err := expandRCSKeyMaterial(variant, key, nonce, expandLen)
	if err != nil {
		return nil, err
	}

	roundKeys := make([][]byte, rounds+1)
	for i := 0; i <= rounds; i++ {
		roundKeys[i] = expanded[i*blockSize : (i+1)*blockSize]
	}

	c := &RCSCipher{
		variant:   variant,
		blockSize: blockSize,
		rounds:    rounds,
		roundKeys: roundKeys,
		counter:   append([]byte(nil), nonce...),
		encrypt:   encrypt,
		authMode:  authMode,
	}

	if authMode != RCSAuthNone {
		macKey := expanded[(rounds+1)*blockSize:]
		rate, kmacRounds := kmacParamsFor(variant, authMode)
		c.mac = keccak.NewCShake(rate, kmacRounds, []byte("KMAC"), nil)
		c.mac.Absorb(bytepadEncodeKey(macKey, rate))
	}

	return c, nil
}

func kmacParamsFor(variant RCSVariant, mode RCSAuthMode) (rate, rounds int) {
	rounds = 24
	if mode == RCSAuthKMACR12 {
		rounds = 12
	}
	if variant == RCS512 {
		return kmac512Rate, rounds
	}
	return kmac256Rate, rounds
}

// bytepadEncodeKey mirrors KMAC's bytepad(encode_string(K), rate) framing.
// RCS needs this framing step on its own (rather than through a single
// KMAC() call) because the message half of the construction is absorbed
// incrementally across many Transform calls.
func bytepadEncodeKey(key []byte, rate int) []byte {
	return keccak.Bytepad(keccak.EncodeString(key), rate)
}

func expandRCSKeyMaterial(variant RCSVariant, key, nonce []byte, outLen int) ([]byte, error) {
	custom := "RCS-256"
	rate := kmac256Rate
	if variant == RCS512 {
		custom = "RCS-512"
		rate = kmac512Rate
	}
	s := keccak.NewCShake(rate, 24, []byte("RCS-KeySchedule"), []byte(custom))
	s.Absorb(key)
	s.Absorb(nonce)
	s.Finalize(0x04)
	out := make([]byte, outLen)
	s.Squeeze(out)
	return out, nil
}

// SetAssociatedData absorbs ad into the MAC exactly once per message.
// It must be called before the first Transform, if at all.
func (c *RCSCipher) SetAssociatedData(ad []byte) error {
	if c.adSet {
		return qerrors.ErrInvalidState
	}
	c.adSet = true
	if c.mac == nil {
		return nil
	}
	c.mac.Absorb(ad)
	c.mac.Absorb(c.counter) // domain-bind the original nonce, before it is incremented
	return nil
}

// Transform encrypts or decrypts src into dst (dst and src may be the same
// buffer but must not otherwise overlap) using wide-block CTR keystream,
// and, if authenticated, absorbs the ciphertext block into the MAC in
// order. It may be called repeatedly to stream a message.
func (c *RCSCipher) Transform(dst, src []byte) error {
	if c.done {
		return qerrors.ErrInvalidState
	}
	if !c.adSet {
		// An empty associated-data block is still "set once" per the contract.
		if err := c.SetAssociatedData(nil); err != nil {
			return err
		}
	}
	if len(dst) != len(src) {
		return qerrors.ErrInvalidCiphertext
	}

	off := 0
	for off < len(src) {
		keystream := append([]byte(nil), c.counter...)
		rijndael.EncryptBlock(keystream, c.roundKeys)
		incrementWideCounterLE(c.counter)

		n := c.blockSize
		if off+n > len(src) {
			n = len(src) - off
		}
		for i := 0; i < n; i++ {
			dst[off+i] = src[off+i] ^ keystream[i]
		}

		if c.mac != nil {
			var ctChunk []byte
			if c.encrypt {
				ctChunk = dst[off : off+n]
			} else {
				ctChunk = src[off : off+n]
			}
			c.mac.Absorb(ctChunk)
		}
		c.ctLen += uint64(n)
		off += n
	}
	return nil
}

// Finalize flushes the MAC (absorbing the little-endian ciphertext-length
// suffix and squeezing the tag) and marks the cipher done; Transform may
// not be called again. Unauthenticated ciphers return a nil tag.
func (c *RCSCipher) Finalize() ([]byte, error) {
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
	c.mac.Absorb(keccak.RightEncode(uint64(c.variant.macSize()) * 8))
	c.mac.Finalize(0x04)
	tag := make([]byte, c.variant.macSize())
	c.mac.Squeeze(tag)
	return tag, nil
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func incrementWideCounterLE(ctr []byte) {
	for i := 0; i < len(ctr); i++ {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

// RCSEncrypt is a one-shot convenience wrapper: it initializes a cipher,
// absorbs ad, transforms the whole plaintext, finalizes, and returns
// ciphertext || tag.
func RCSEncrypt(variant RCSVariant, key, nonce, ad, plaintext []byte, authMode RCSAuthMode) ([]byte, error) {
	c, err := NewRCSCipher(variant, key, nonce, true, authMode)
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

// RCSDecrypt is the inverse of RCSEncrypt. The MAC tag is computed over the
// received ciphertext and compared in constant time before any plaintext is
// returned; on mismatch it returns ErrAuthenticationFailed and a nil slice,
// never the (possibly wrong) plaintext.
func RCSDecrypt(variant RCSVariant, key, nonce, ad, ciphertextAndTag []byte, authMode RCSAuthMode) ([]byte, error) {
	macSize := variant.macSize()
	if authMode == RCSAuthNone {
		macSize = 0
	}
	if len(ciphertextAndTag) < macSize {
		return nil, qerrors.ErrCiphertextTooShort
	}
	ciphertext := ciphertextAndTag[:len(ciphertextAndTag)-macSize]
	receivedTag := ciphertextAndTag[len(ciphertextAndTag)-macSize:]

	c, err := NewRCSCipher(variant, key, nonce, false, authMode)
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

	if authMode != RCSAuthNone && subtle.ConstantTimeCompare(tag, receivedTag) != 1 {
		Zeroize(plaintext)
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// rcsAEAD adapts RCSEncrypt/RCSDecrypt to the standard library's cipher.AEAD
// interface so pkg/crypto/aead.go's AEAD wrapper (and thus pkg/tunnel's
// session/handshake code) can use RCS-256/512 exactly like AES-256-GCM or
// ChaCha20-Poly1305, without the transport layer needing to know RCS exists.
type rcsAEAD struct {
	variant RCSVariant
	key     []byte
}

func newRCSAEAD(variant RCSVariant, key []byte) cipher.AEAD {
	return &rcsAEAD{variant: variant, key: append([]byte(nil), key...)}
}

func (r *rcsAEAD) NonceSize() int { return r.variant.blockSize() }
func (r *rcsAEAD) Overhead() int  { return r.variant.macSize() }

func (r *rcsAEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	ct, err := RCSEncrypt(r.variant, r.key, nonce, additionalData, plaintext, RCSAuthKMAC)
	if err != nil {
		panic(err) // cipher.AEAD.Seal has no error return; inputs are caller-validated
	}
	return append(dst, ct...)
}

func (r *rcsAEAD) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	pt, err := RCSDecrypt(r.variant, r.key, nonce, additionalData, ciphertext, RCSAuthKMAC)
	if err != nil {
		return nil, err
	}
	return append(dst, pt...), nil
}
