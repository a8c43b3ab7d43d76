// Package fingerprint derives a stable machine fingerprint and a display name
// for the current host.
//
// Both values come from an ordered chain of platform queries. The first query
// that yields a usable value wins and later queries never run. The
// fingerprint is the SHA-256 of that value; the device name is returned as-is.
//
// The fingerprint is only as stable as the tier that produced it: if the
// primary query is unavailable on some runs, a lower tier may answer with a
// different raw value and the hash changes with it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the lowercase hex SHA-256 digest of text with surrounding
// whitespace removed.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
