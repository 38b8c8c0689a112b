package rng

import (
	"math/rand/v2"

	"github.com/vrbourque/prediction-metrics/ports"
)

// SeededAdapter derives independent PCG streams from a base seed and a
// stream name.
type SeededAdapter struct{}

var _ ports.RNGPort = SeededAdapter{}

// NewSeededAdapter creates a new seeded RNG adapter
func NewSeededAdapter() SeededAdapter {
	return SeededAdapter{}
}

// Stream creates a deterministic RNG stream for a named operation
func (SeededAdapter) Stream(name string, seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(hashString(name))))
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2
	}
	return hash
}
