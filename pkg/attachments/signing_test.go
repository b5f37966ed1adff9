package attachments

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

func TestSignAndVerify(t *testing.T) {
	alice, bob := privateKey(t, 1), privateKey(t, 2)
	data := archive(t, "a.txt", "a", "b.txt", "b")

	keys, err := SignerKeys(data)
	require.NoError(t, err)
	assert.Empty(t, keys)

	signed := signArchive(t, data, bob, alice)
	keys, err = SignerKeys(signed)
	require.NoError(t, err)

	want := []crypto.Key{alice.PublicKey().Key(), bob.PublicKey().Key()}
	sort.Slice(want, func(i, j int) bool { return bytes.Compare(want[i][:], want[j][:]) < 0 })
	assert.Equal(t, want, keys)
}

func TestSignTwiceReplaces(t *testing.T) {
	alice := privateKey(t, 1)
	signed := signArchive(t, archive(t, "a.txt", "a"), alice, alice)

	entries, err := ReadArchive(signed)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	keys, err := SignerKeys(signed)
	require.NoError(t, err)
	assert.Equal(t, []crypto.Key{alice.PublicKey().Key()}, keys)
}

func TestContentDigestIgnoresSignaturesAndOrder(t *testing.T) {
	a, err := ReadArchive(archive(t, "a.txt", "a", "B.txt", "b"))
	require.NoError(t, err)
	b, err := ReadArchive(signArchive(t, archive(t, "b.txt", "b", "a.txt", "a"), privateKey(t, 1)))
	require.NoError(t, err)
	assert.Equal(t, ContentDigest(a), ContentDigest(b))

	c, err := ReadArchive(archive(t, "a.txt", "a", "b.txt", "c"))
	require.NoError(t, err)
	assert.NotEqual(t, ContentDigest(a), ContentDigest(c))
}

func TestTamperedArchiveFails(t *testing.T) {
	alice := privateKey(t, 1)
	signed := signArchive(t, archive(t, "a.txt", "a"), alice)

	entries, err := ReadArchive(signed)
	require.NoError(t, err)
	for i := range entries {
		if entries[i].Path == "a.txt" {
			entries[i].Data = []byte("changed")
		}
	}
	tampered, err := WriteArchive(entries)
	require.NoError(t, err)

	_, err = SignerKeys(tampered)
	var sigErr *SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, SignaturePath(alice.PublicKey().Key()), sigErr.Path)

	_, err = NewAttachment(crypto.DefaultDigestService(), tampered, UploaderApp, "x.zip")
	assert.ErrorAs(t, err, &sigErr)
}

func TestSignatureUnderWrongName(t *testing.T) {
	alice, bob := privateKey(t, 1), privateKey(t, 2)
	entries, err := ReadArchive(signArchive(t, archive(t, "a.txt", "a"), alice))
	require.NoError(t, err)
	for i := range entries {
		if IsSignatureEntry(entries[i].Path) {
			entries[i].Path = SignaturePath(bob.PublicKey().Key())
		}
	}
	renamed, err := WriteArchive(entries)
	require.NoError(t, err)

	_, err = SignerKeys(renamed)
	var sigErr *SignatureError
	assert.ErrorAs(t, err, &sigErr)
}

func TestIsSignatureEntry(t *testing.T) {
	key := privateKey(t, 1).PublicKey().Key()
	assert.True(t, IsSignatureEntry(SignaturePath(key)))
	assert.True(t, IsSignatureEntry("meta-inf/abc.sig"))
	assert.False(t, IsSignatureEntry("META-INF/services/abc.SIG"))
	assert.False(t, IsSignatureEntry("abc.SIG"))
}
