// Package entropy draws fresh seeds from crypto/rand for callers that
// ask for a randomized world instead of a reproducible one.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
)

// Seed range used when a noise seed is randomized.
const (
	SeedMin int64 = -10000
	SeedMax int64 = 10000
)

// Float returns a random float64 in [0, 1) using crypto/rand.
func Float() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return 0.5 as a safe default.
		slog.Debug("crypto/rand read failed", "error", err)
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Int63n returns a uniform integer in [lo, hi). hi <= lo returns lo.
func Int63n(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo
	v := lo + int64(Float()*float64(span))
	if v >= hi {
		v = hi - 1
	}
	return v
}

// Seed returns a new noise seed in [SeedMin, SeedMax).
func Seed() int64 {
	return Int63n(SeedMin, SeedMax)
}
