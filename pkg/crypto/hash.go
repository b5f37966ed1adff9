// Package crypto provides the digest primitives every commitment in this module
// is built from.
//
// A SecureHash is always tagged with the name of the algorithm that produced
// it, so hashes from different algorithms never compare equal. Digest
// algorithms are looked up through an explicit Registry and used through a
// DigestService, which adds the derived operations (nonces, component hashes,
// padding constants) on top of a raw algorithm.
//
// The only asymmetric primitive is secp256k1 (see keys.go), used for command
// signers and attachment signatures.
package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SecureHash is an immutable digest value tagged with its algorithm.
//
// The zero value is the empty hash and is never produced by a DigestService.
// SecureHash is comparable and may be used as a map key.
type SecureHash struct {
	algorithm string
	digest    string
}

// NewSecureHash copies b into a SecureHash for the given algorithm.
func NewSecureHash(algorithm string, b []byte) SecureHash {
	return SecureHash{algorithm: algorithm, digest: string(b)}
}

// Algorithm returns the name of the algorithm that produced the hash.
func (h SecureHash) Algorithm() string {
	return h.algorithm
}

// Bytes returns a copy of the raw digest.
func (h SecureHash) Bytes() []byte {
	return []byte(h.digest)
}

// Len returns the digest length in bytes.
func (h SecureHash) Len() int {
	return len(h.digest)
}

// IsEmpty reports whether h is the zero value.
func (h SecureHash) IsEmpty() bool {
	return h.algorithm == "" && h.digest == ""
}

// IsZero reports whether every digest byte is 0x00.
func (h SecureHash) IsZero() bool {
	if len(h.digest) == 0 {
		return false
	}
	for i := 0; i < len(h.digest); i++ {
		if h.digest[i] != 0 {
			return false
		}
	}
	return true
}

// Concat returns h's digest followed by other's digest.
func (h SecureHash) Concat(other SecureHash) []byte {
	out := make([]byte, 0, len(h.digest)+len(other.digest))
	out = append(out, h.digest...)
	return append(out, other.digest...)
}

// Hex returns the upper-case hex encoding of the digest without the
// algorithm prefix.
func (h SecureHash) Hex() string {
	return strings.ToUpper(hex.EncodeToString([]byte(h.digest)))
}

// String renders SHA-256 hashes as bare hex and every other algorithm as
// "ALGORITHM:HEX".
func (h SecureHash) String() string {
	if h.algorithm == SHA256 {
		return h.Hex()
	}
	return h.algorithm + ":" + h.Hex()
}

// ParseSecureHash is the inverse of SecureHash.String.
func ParseSecureHash(s string) (SecureHash, error) {
	algorithm := SHA256
	encoded := s
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		algorithm = s[:i]
		encoded = s[i+1:]
	}
	b, err := hex.DecodeString(encoded)
	if err != nil {
		return SecureHash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) == 0 {
		return SecureHash{}, fmt.Errorf("invalid hash %q: empty digest", s)
	}
	return NewSecureHash(algorithm, b), nil
}
