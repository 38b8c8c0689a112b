package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// FingerprintColumn hashes a named float column bit-for-bit. All NaN
// payloads hash identically.
func FingerprintColumn(name string, values []float64) Hash {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})

	var buf [8]byte
	for _, v := range values {
		bits := math.Float64bits(v)
		if math.IsNaN(v) {
			bits = math.Float64bits(math.NaN())
		}
		binary.LittleEndian.PutUint64(buf[:], bits)
		h.Write(buf[:])
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
