package crypto

import (
	"bytes"
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinAlgorithms(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name   string
		length int
	}{
		{SHA256, 32},
		{SHA384, 48},
		{SHA512, 64},
		{SHA3_256, 32},
		{BLAKE2B256, 32},
		{BLAKE3_256, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := r.Service(tt.name)
			require.NoError(t, err)

			h := ds.Hash([]byte("abc"))
			assert.Equal(t, tt.name, h.Algorithm())
			assert.Equal(t, tt.length, h.Len())
			assert.Equal(t, tt.length, ds.ZeroHash().Len())
			assert.True(t, ds.ZeroHash().IsZero())
			assert.Equal(t, bytes.Repeat([]byte{0xFF}, tt.length), ds.AllOnesHash().Bytes())

			// leaf and nonce digests are double hashes
			inner := ds.Algorithm().Digest([]byte("abc"))
			assert.Equal(t, ds.Algorithm().Digest(inner), ds.PreImageResistantHash([]byte("abc")).Bytes())
			assert.Equal(t, ds.Algorithm().Digest(inner), ds.NonceHash([]byte("abc")).Bytes())
		})
	}
}

func TestSHA256KnownAnswer(t *testing.T) {
	ds := DefaultDigestService()
	assert.Equal(t,
		"BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD",
		ds.Hash([]byte("abc")).String())
}

func TestComputeNonceLayout(t *testing.T) {
	ds := DefaultDigestService()
	salt := bytes.Repeat([]byte{0x01}, 32)

	preimage := append(append([]byte{}, salt...), 0, 0, 0, 2, 0, 0, 1, 0)
	first := sha256.Sum256(preimage)
	expected := sha256.Sum256(first[:])

	nonce := ds.ComputeNonce(salt, 2, 256)
	assert.Equal(t, expected[:], nonce.Bytes())

	leaf := ds.ComponentHash([]byte("payload"), salt, 2, 256)
	assert.Equal(t, ds.ComponentHashWithNonce(nonce, []byte("payload")), leaf)
	assert.NotEqual(t, leaf, ds.ComponentHash([]byte("payload"), salt, 2, 257))
	assert.NotEqual(t, leaf, ds.ComponentHash([]byte("payload"), salt, 3, 256))
}

func TestRandomHash(t *testing.T) {
	ds := DefaultDigestService()
	a, err := ds.RandomHash()
	require.NoError(t, err)
	b, err := ds.RandomHash()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 32, a.Len())
}

func TestPadsSingleLeaf(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.Names() {
		ds, err := r.Service(name)
		require.NoError(t, err)
		assert.Equal(t, name != SHA256, ds.PadsSingleLeaf(), name)
	}
}

func TestCheck(t *testing.T) {
	r := NewRegistry()
	sha, _ := r.Service(SHA256)
	sha3, _ := r.Service(SHA3_256)

	assert.NoError(t, sha.Check(sha.Hash(nil)))

	var mismatch *AlgorithmMismatchError
	require.ErrorAs(t, sha.Check(sha3.Hash(nil)), &mismatch)
	assert.Equal(t, SHA256, mismatch.Expected)
	assert.Equal(t, SHA3_256, mismatch.Actual)

	assert.Error(t, sha.Check(NewSecureHash(SHA256, []byte{1, 2, 3})))
}

func TestRegistry(t *testing.T) {
	custom := NewDigestAlgorithm("TEST-256", 32, func(b []byte) []byte {
		d := sha256.Sum256(append([]byte("test"), b...))
		return d[:]
	})

	t.Run("unknown name", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Lookup("MD5")
		var unsupported *UnsupportedAlgorithmError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "MD5", unsupported.Name)

		_, err = r.Service("MD5")
		assert.ErrorAs(t, err, &unsupported)
	})

	t.Run("first registration wins", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(custom))
		require.NoError(t, r.Register(custom), "same instance twice is a no-op")

		impostor := NewDigestAlgorithm("TEST-256", 32, func(b []byte) []byte {
			d := sha256.Sum256(b)
			return d[:]
		})
		var dup *DuplicateAlgorithmError
		require.ErrorAs(t, r.Register(impostor), &dup)

		got, err := r.Lookup("TEST-256")
		require.NoError(t, err)
		assert.Same(t, custom, got)
	})

	t.Run("builtin names are taken", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(NewDigestAlgorithm(SHA256, 32, func(b []byte) []byte { return make([]byte, 32) }))
		var dup *DuplicateAlgorithmError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("override and reset", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(custom))

		replacement := NewDigestAlgorithm("TEST-256", 32, func(b []byte) []byte { return make([]byte, 32) })
		r.Override(replacement)
		got, _ := r.Lookup("TEST-256")
		assert.Same(t, replacement, got)

		r.ResetToDefaults()
		_, err := r.Lookup("TEST-256")
		assert.Error(t, err)
		_, err = r.Lookup(SHA256)
		assert.NoError(t, err)
	})

	t.Run("registries are independent", func(t *testing.T) {
		a, b := NewRegistry(), NewRegistry()
		require.NoError(t, a.Register(custom))
		_, err := b.Lookup("TEST-256")
		assert.Error(t, err)
	})

	t.Run("concurrent use", func(t *testing.T) {
		r := NewRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, r.Register(custom))
				_, err := r.Service(SHA256)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})
}
