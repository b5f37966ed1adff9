package transactions

import (
	"crypto/rand"
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// MinPrivacySaltSize is the shortest salt PrivacySaltFrom accepts.
const MinPrivacySaltSize = 32

// PrivacySalt is the per-transaction secret mixed into every component nonce.
// Without it a hidden component with few possible values could be recovered
// by hashing candidates.
type PrivacySalt []byte

// NewPrivacySalt returns a random salt sized for ds.
func NewPrivacySalt(ds *crypto.DigestService) (PrivacySalt, error) {
	salt := make(PrivacySalt, ds.DigestLength())
	for {
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate privacy salt: %w", err)
		}
		if !salt.IsZero() {
			return salt, nil
		}
	}
}

// PrivacySaltFrom copies b into a salt, rejecting short and all-zero values.
func PrivacySaltFrom(b []byte) (PrivacySalt, error) {
	if len(b) < MinPrivacySaltSize {
		return nil, &PrivacySaltError{Message: fmt.Sprintf("salt must be at least %d bytes, got %d", MinPrivacySaltSize, len(b))}
	}
	salt := PrivacySalt(append([]byte(nil), b...))
	if salt.IsZero() {
		return nil, &PrivacySaltError{Message: "salt must not be all zeros"}
	}
	return salt, nil
}

// IsZero reports whether every byte is 0x00. An empty salt is zero.
func (s PrivacySalt) IsZero() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

// Validate checks the salt against the digest it will be used with.
func (s PrivacySalt) Validate(ds *crypto.DigestService, allowZero bool) error {
	if len(s) != ds.DigestLength() {
		return &PrivacySaltError{Message: fmt.Sprintf("salt must be %d bytes for %s, got %d", ds.DigestLength(), ds.Name(), len(s))}
	}
	if !allowZero && s.IsZero() {
		return &PrivacySaltError{Message: "salt must not be all zeros"}
	}
	return nil
}

func (s PrivacySalt) String() string {
	return fmt.Sprintf("%X", []byte(s))
}
