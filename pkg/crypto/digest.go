package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"reflect"
	"sort"
	"sync"

	blake2b "github.com/minio/blake2b-simd"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Names of the built-in digest algorithms.
const (
	SHA256     = "SHA-256"
	SHA384     = "SHA-384"
	SHA512     = "SHA-512"
	SHA3_256   = "SHA3-256"
	BLAKE2B256 = "BLAKE2B-256"
	BLAKE3_256 = "BLAKE3-256"
)

// DefaultAlgorithm is the algorithm used when none is named.
const DefaultAlgorithm = SHA256

// DigestAlgorithm is a named hash function with a fixed output length.
//
// PreImageResistantDigest is used for leaf hashing and NonceDigest for nonce
// derivation. Both must resist second-preimage attacks; the built-in
// algorithms implement them as double hashing.
type DigestAlgorithm interface {
	Name() string
	DigestLength() int
	Digest(b []byte) []byte
	PreImageResistantDigest(b []byte) []byte
	NonceDigest(b []byte) []byte
}

// hashAlgorithm adapts a one-shot hash function to DigestAlgorithm.
type hashAlgorithm struct {
	name   string
	length int
	sum    func([]byte) []byte
}

// NewDigestAlgorithm builds a DigestAlgorithm from a one-shot hash function.
// PreImageResistantDigest and NonceDigest apply sum twice.
func NewDigestAlgorithm(name string, length int, sum func([]byte) []byte) DigestAlgorithm {
	return &hashAlgorithm{name: name, length: length, sum: sum}
}

func (a *hashAlgorithm) Name() string      { return a.name }
func (a *hashAlgorithm) DigestLength() int { return a.length }

func (a *hashAlgorithm) Digest(b []byte) []byte {
	return a.sum(b)
}

func (a *hashAlgorithm) PreImageResistantDigest(b []byte) []byte {
	return a.sum(a.sum(b))
}

func (a *hashAlgorithm) NonceDigest(b []byte) []byte {
	return a.sum(a.sum(b))
}

var (
	sha256Algorithm = NewDigestAlgorithm(SHA256, sha256.Size, func(b []byte) []byte {
		d := sha256.Sum256(b)
		return d[:]
	})
	sha384Algorithm = NewDigestAlgorithm(SHA384, sha512.Size384, func(b []byte) []byte {
		d := sha512.Sum384(b)
		return d[:]
	})
	sha512Algorithm = NewDigestAlgorithm(SHA512, sha512.Size, func(b []byte) []byte {
		d := sha512.Sum512(b)
		return d[:]
	})
	sha3Algorithm = NewDigestAlgorithm(SHA3_256, 32, func(b []byte) []byte {
		d := sha3.Sum256(b)
		return d[:]
	})
	blake2bAlgorithm = NewDigestAlgorithm(BLAKE2B256, 32, func(b []byte) []byte {
		h, _ := blake2b.New(&blake2b.Config{Size: 32})
		h.Write(b)
		return h.Sum(nil)
	})
	blake3Algorithm = NewDigestAlgorithm(BLAKE3_256, 32, func(b []byte) []byte {
		d := blake3.Sum256(b)
		return d[:]
	})
)

// BuiltinAlgorithms returns the algorithms every new Registry starts with.
func BuiltinAlgorithms() []DigestAlgorithm {
	return []DigestAlgorithm{
		sha256Algorithm,
		sha384Algorithm,
		sha512Algorithm,
		sha3Algorithm,
		blake2bAlgorithm,
		blake3Algorithm,
	}
}

// SHA256Algorithm returns the default, legacy algorithm.
func SHA256Algorithm() DigestAlgorithm {
	return sha256Algorithm
}

// Registry maps algorithm names to implementations.
//
// A Registry is an explicit value passed to whatever needs to resolve an
// algorithm by name; there is no process-wide instance. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]DigestAlgorithm
}

// NewRegistry returns a registry holding the built-in algorithms.
func NewRegistry() *Registry {
	r := &Registry{}
	r.ResetToDefaults()
	return r
}

// Register adds alg under its name. Registering the same instance twice is a
// no-op; registering a different algorithm under a taken name fails with
// *DuplicateAlgorithmError.
func (r *Registry) Register(alg DigestAlgorithm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.algorithms[alg.Name()]; ok {
		if sameAlgorithm(existing, alg) {
			return nil
		}
		return &DuplicateAlgorithmError{Name: alg.Name()}
	}
	r.algorithms[alg.Name()] = alg
	return nil
}

// Override replaces whatever is registered under alg's name.
func (r *Registry) Override(alg DigestAlgorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algorithms[alg.Name()] = alg
}

// Lookup returns the algorithm registered under name.
func (r *Registry) Lookup(name string) (DigestAlgorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alg, ok := r.algorithms[name]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Name: name}
	}
	return alg, nil
}

// Service returns a DigestService for the algorithm registered under name.
func (r *Registry) Service(name string) (*DigestService, error) {
	alg, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewDigestService(alg), nil
}

// Names returns the registered algorithm names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetToDefaults drops every custom registration. It exists for test
// harnesses and is never called by this module.
func (r *Registry) ResetToDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.algorithms = make(map[string]DigestAlgorithm)
	for _, alg := range BuiltinAlgorithms() {
		r.algorithms[alg.Name()] = alg
	}
}

func sameAlgorithm(a, b DigestAlgorithm) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
