package id

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewRun returns a random run identifier, falling back to a timestamp when
// the system random source fails.
func NewRun() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "run-" + time.Now().UTC().Format("20060102T150405.000000000")
	}
	return "run-" + hex.EncodeToString(b[:])
}
