package attachments

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// emptyModule is the smallest valid wasm module.
var emptyModule = []byte("\x00asm\x01\x00\x00\x00")

func privateKey(t *testing.T, seed byte) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return key
}

// archive builds an archive from path/content pairs.
func archive(t *testing.T, pairs ...string) []byte {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	entries := make([]Entry, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		entries = append(entries, Entry{Path: pairs[i], Data: []byte(pairs[i+1])})
	}
	data, err := WriteArchive(entries)
	require.NoError(t, err)
	return data
}

func codeArchive(t *testing.T, name string) []byte {
	t.Helper()
	data, err := WriteArchive([]Entry{
		{Path: "contracts/" + name + ".wasm", Data: emptyModule},
		{Path: "contracts/" + name + ".txt", Data: []byte(name)},
	})
	require.NoError(t, err)
	return data
}

func signArchive(t *testing.T, data []byte, keys ...*crypto.PrivateKey) []byte {
	t.Helper()
	for _, k := range keys {
		var err error
		data, err = Sign(data, k)
		require.NoError(t, err)
	}
	return data
}

func newAttachment(t *testing.T, data []byte, uploader string) *Attachment {
	t.Helper()
	a, err := NewAttachment(crypto.DefaultDigestService(), data, uploader, "test.zip")
	require.NoError(t, err)
	return a
}

func trustAll(*Attachment) bool  { return true }

var (
	testTx     = crypto.DefaultDigestService().Hash([]byte("tx"))
	testParams = crypto.DefaultDigestService().Hash([]byte("params"))
)
