package ir

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the blake2b-256 digest of a unit's binary image.
type Fingerprint [blake2b.Size256]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Image serializes u and returns the bytes together with their fingerprint.
func Image(u *Unit) ([]byte, Fingerprint, error) {
	var buf bytes.Buffer
	if err := WriteUnit(&buf, u); err != nil {
		return nil, Fingerprint{}, err
	}
	return buf.Bytes(), blake2b.Sum256(buf.Bytes()), nil
}
