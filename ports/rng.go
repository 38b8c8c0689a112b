package ports

import (
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream returns a generator that depends only on the stream name and
	// the seed, so two calls with the same arguments replay the same draws.
	Stream(name string, seed uint64) *rand.Rand
}
