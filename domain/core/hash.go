package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// SeriesFingerprint hashes an observation series together with the solver parameters,
// so two analyses over identical input can be recognised without comparing tables.
func SeriesFingerprint(dates []time.Time, values []float64, timeFrame time.Duration, sampleSize int) Hash {
	h := sha256.New()
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], uint64(timeFrame))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(sampleSize))
	h.Write(buf[:])

	for i := range dates {
		binary.BigEndian.PutUint64(buf[:], uint64(dates[i].UnixNano()))
		h.Write(buf[:])
		if i < len(values) {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(values[i]))
			h.Write(buf[:])
		}
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
