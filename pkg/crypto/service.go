package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// DigestService exposes the operations the commitment scheme needs on top of
// a single DigestAlgorithm. It holds no mutable state.
type DigestService struct {
	alg  DigestAlgorithm
	zero SecureHash
	ones SecureHash
}

// NewDigestService wraps alg.
func NewDigestService(alg DigestAlgorithm) *DigestService {
	n := alg.DigestLength()
	return &DigestService{
		alg:  alg,
		zero: NewSecureHash(alg.Name(), make([]byte, n)),
		ones: NewSecureHash(alg.Name(), bytes.Repeat([]byte{0xFF}, n)),
	}
}

// DefaultDigestService returns a service for the legacy SHA-256 algorithm.
func DefaultDigestService() *DigestService {
	return NewDigestService(sha256Algorithm)
}

// Algorithm returns the wrapped algorithm.
func (s *DigestService) Algorithm() DigestAlgorithm { return s.alg }

// Name returns the wrapped algorithm's name.
func (s *DigestService) Name() string { return s.alg.Name() }

// DigestLength returns the output length in bytes.
func (s *DigestService) DigestLength() int { return s.alg.DigestLength() }

// Hash applies the plain digest.
func (s *DigestService) Hash(b []byte) SecureHash {
	return NewSecureHash(s.alg.Name(), s.alg.Digest(b))
}

// PreImageResistantHash applies the leaf digest.
func (s *DigestService) PreImageResistantHash(b []byte) SecureHash {
	return NewSecureHash(s.alg.Name(), s.alg.PreImageResistantDigest(b))
}

// NonceHash applies the nonce digest.
func (s *DigestService) NonceHash(b []byte) SecureHash {
	return NewSecureHash(s.alg.Name(), s.alg.NonceDigest(b))
}

// ZeroHash is the all-0x00 constant used to pad odd tree levels.
func (s *DigestService) ZeroHash() SecureHash { return s.zero }

// AllOnesHash is the all-0xFF constant standing in for absent groups.
func (s *DigestService) AllOnesHash() SecureHash { return s.ones }

// RandomHash returns DigestLength random bytes tagged with the algorithm.
func (s *DigestService) RandomHash() (SecureHash, error) {
	b := make([]byte, s.alg.DigestLength())
	if _, err := rand.Read(b); err != nil {
		return SecureHash{}, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return NewSecureHash(s.alg.Name(), b), nil
}

// ComputeNonce derives the nonce of the component at index within group:
//
//	NonceDigest(salt || int32BE(group) || int32BE(index))
func (s *DigestService) ComputeNonce(salt []byte, group, index int) SecureHash {
	buf := make([]byte, 0, len(salt)+8)
	buf = append(buf, salt...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(group)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(index)))
	return s.NonceHash(buf)
}

// ComponentHash computes the leaf hash of a component from its position.
func (s *DigestService) ComponentHash(component, salt []byte, group, index int) SecureHash {
	return s.ComponentHashWithNonce(s.ComputeNonce(salt, group, index), component)
}

// ComponentHashWithNonce computes PreImageResistantDigest(nonce || component).
func (s *DigestService) ComponentHashWithNonce(nonce SecureHash, component []byte) SecureHash {
	buf := make([]byte, 0, nonce.Len()+len(component))
	buf = append(buf, nonce.digest...)
	buf = append(buf, component...)
	return s.PreImageResistantHash(buf)
}

// PadsSingleLeaf reports whether a one-leaf tree is hashed against ZeroHash.
//
// Legacy SHA-256 trees return the lone leaf as the root. This is kept for
// compatibility with ids already issued under SHA-256 and must not be copied
// to any other algorithm.
func (s *DigestService) PadsSingleLeaf() bool {
	return s.alg.Name() != SHA256
}

// Check returns an *AlgorithmMismatchError if h was not produced by this
// service's algorithm or has the wrong length.
func (s *DigestService) Check(h SecureHash) error {
	if h.algorithm != s.alg.Name() || h.Len() != s.alg.DigestLength() {
		return &AlgorithmMismatchError{Expected: s.alg.Name(), Actual: h.algorithm}
	}
	return nil
}
