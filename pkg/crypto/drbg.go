// drbg.go implements two deterministic byte generators: a cSHAKE-based
// generator (CSG) used to turn a KAT seed into reproducible KEM/signature
// randomness, and an AES-256-CTR-DRBG (NIST SP 800-90A flavor) kept
// specifically for reproducing the NIST KAT files. Both implement the DRBG
// interface (Fill). Neither is wired into pkg/crypto/random.go, whose Reader
// is always the OS CSPRNG.
package crypto

import (
	"crypto/aes"
	"io"

	"golang.org/x/crypto/sha3"

	qerrors "github.com/qscore/qscore/internal/errors"
)

// newCShakeXOF returns a squeezable cSHAKE-256(seed, customization) stream.
func newCShakeXOF(seed []byte, customization string) io.Reader {
	x := sha3.NewCShake256(nil, []byte(customization))
	x.Write(seed)
	return x
}

// DRBG is a keyed deterministic byte generator. Fill never blocks and
// returns false only if the generator's internal counter space is
// exhausted (practically unreachable for the KAT-sized reads this library
// performs).
type DRBG interface {
	Fill(buf []byte) bool
}

// CSGReader is a cSHAKE-256-based deterministic generator: squeeze bytes
// from cSHAKE-256(seed, customization) until exhausted. It is the
// production-shaped deterministic source, as opposed to AESCTRDRBG, which exists only to reproduce NIST KATs bit
// for bit.
type CSGReader struct {
	stream io.Reader
}

// NewCSG creates a CSGReader squeezing cSHAKE-256(seed, customization).
func NewCSG(seed []byte, customization string) *CSGReader {
	// the cSHAKE stream is built here; Fill only squeezes from it
	return &CSGReader{stream: newCShakeXOF(seed, customization)}
}

// Fill reads len(buf) bytes from the underlying cSHAKE stream. It never
// fails: cSHAKE has unbounded squeeze length.
func (g *CSGReader) Fill(buf []byte) bool {
	_, _ = g.stream.Read(buf)
	return true
}

// AESCTRDRBG implements the counter-mode construction from NIST SP 800-90A,
// restricted to the operations this library needs: seed once from a 48-byte
// NIST KAT vector (folded by update() into an all-zero key and counter), then
// Fill repeatedly. update() folds optional additional input into (key, V) after
// every generate call, matching the reference CTR_DRBG update function.
type AESCTRDRBG struct {
	key [32]byte
	v   [16]byte
}

// NewAESCTRDRBG seeds an AES-256-CTR-DRBG from a 48-byte seed material
// value, the NIST KAT seed-file format: key and V start at zero and the seed
// is folded in by update().
func NewAESCTRDRBG(seedMaterial []byte) (*AESCTRDRBG, error) {
	if len(seedMaterial) != 48 {
		return nil, qerrors.ErrInvalidKeySize
	}
	d := &AESCTRDRBG{}
	d.update(seedMaterial)
	return d, nil
}

// update folds providedData (zero-padded/truncated to 48 bytes, or all
// zero if nil) into (key, V) by encrypting an incrementing V under the
// current key and XORing the result with providedData.
func (d *AESCTRDRBG) update(providedData []byte) {
	block, _ := aes.NewCipher(d.key[:])
	var temp [48]byte
	for i := 0; i < 3; i++ {
		incrementCounter(&d.v)
		block.Encrypt(temp[i*16:(i+1)*16], d.v[:])
	}
	if providedData != nil {
		pd := make([]byte, 48)
		copy(pd, providedData)
		for i := range temp {
			temp[i] ^= pd[i]
		}
	}
	copy(d.key[:], temp[:32])
	copy(d.v[:], temp[32:48])
}

func incrementCounter(v *[16]byte) {
	for i := 15; i >= 0; i-- {
		v[i]++
		if v[i] != 0 {
			break
		}
	}
}

// Fill generates len(buf) pseudorandom bytes via AES-256 in counter mode
// and folds a no-op update into the internal state afterward, per SP
// 800-90A CTR_DRBG without a derivation function.
func (d *AESCTRDRBG) Fill(buf []byte) bool {
	block, err := aes.NewCipher(d.key[:])
	if err != nil {
		return false
	}
	produced := 0
	for produced < len(buf) {
		incrementCounter(&d.v)
		var block16 [16]byte
		block.Encrypt(block16[:], d.v[:])
		n := copy(buf[produced:], block16[:])
		produced += n
	}
	d.update(nil)
	return true
}
