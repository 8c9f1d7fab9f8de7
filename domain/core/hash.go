package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
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

// Fingerprint is the deterministic identity of a model run: same inputs,
// same seed, same fingerprint.
type Fingerprint Hash

func (f Fingerprint) String() string { return Hash(f).String() }

// ComputeFingerprint hashes a set of named input facts in key order.
func ComputeFingerprint(facts map[string]string) Fingerprint {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(facts[key])
		data.WriteString("|")
	}
	return Fingerprint(NewHash([]byte(data.String())))
}

// FingerprintSeries folds a float series into a fact string for fingerprinting.
func FingerprintSeries(name string, start Month, values []float64) string {
	var data strings.Builder
	data.WriteString(name)
	data.WriteString("@")
	data.WriteString(start.String())
	for _, v := range values {
		data.WriteString(fmt.Sprintf(":%g", v))
	}
	return NewHash([]byte(data.String())).String()
}
