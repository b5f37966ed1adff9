package attachments

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

type store interface {
	Storage
	TrustSource
}

func storages(t *testing.T) map[string]store {
	t.Helper()
	badger, err := OpenBadgerStorage(BadgerConfig{
		CacheLifeWindow: time.Minute,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, badger.Close()) })

	return map[string]store{
		"memory": NewMemoryStorage(nil),
		"badger": badger,
	}
}

func TestStorageImportAndOpen(t *testing.T) {
	ctx := context.Background()
	alice := privateKey(t, 1)
	data := signArchive(t, codeArchive(t, "cash"), alice)

	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			id, err := s.ImportAttachment(ctx, bytes.NewReader(data), UploaderApp, "cash.zip")
			require.NoError(t, err)
			assert.Equal(t, crypto.DefaultDigestService().Hash(data), id)

			a, err := s.OpenAttachment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, a.ID)
			assert.Equal(t, data, a.Data)
			assert.Equal(t, UploaderApp, a.Uploader)
			assert.Equal(t, "cash.zip", a.Filename)
			assert.Equal(t, []crypto.Key{alice.PublicKey().Key()}, a.SignerKeys)
			assert.True(t, mustContainCode(t, a))

			// Second open may come from the read cache.
			again, err := s.OpenAttachment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, a.SignerKeys, again.SignerKeys)
		})
	}
}

func TestStorageErrors(t *testing.T) {
	ctx := context.Background()
	data := archive(t, "a.txt", "a")

	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			id, err := s.ImportAttachment(ctx, bytes.NewReader(data), "", "a.zip")
			require.NoError(t, err)

			a, err := s.OpenAttachment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, UploaderUnknown, a.Uploader)

			_, err = s.ImportAttachment(ctx, bytes.NewReader(data), UploaderApp, "a.zip")
			var dup *DuplicateAttachmentError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, id, dup.ID)

			_, err = s.OpenAttachment(ctx, crypto.DefaultDigestService().Hash([]byte("missing")))
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.ImportAttachment(ctx, bytes.NewReader([]byte("not a zip")), UploaderApp, "bad.zip")
			var invalid *InvalidArchiveError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestStorageSignerIndex(t *testing.T) {
	ctx := context.Background()
	alice, bob := privateKey(t, 1), privateKey(t, 2)

	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			one, err := s.ImportAttachment(ctx, bytes.NewReader(signArchive(t, archive(t, "1", "1"), alice)), UploaderApp, "")
			require.NoError(t, err)
			two, err := s.ImportAttachment(ctx, bytes.NewReader(signArchive(t, archive(t, "2", "2"), alice, bob)), UploaderRPC, "")
			require.NoError(t, err)

			byAlice, err := s.AttachmentsSignedBy(ctx, alice.PublicKey().Key())
			require.NoError(t, err)
			assert.ElementsMatch(t, []crypto.SecureHash{one, two}, ids(byAlice))

			byBob, err := s.AttachmentsSignedBy(ctx, bob.PublicKey().Key())
			require.NoError(t, err)
			assert.Equal(t, []crypto.SecureHash{two}, ids(byBob))

			none, err := s.AttachmentsSignedBy(ctx, privateKey(t, 9).PublicKey().Key())
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestBadgerStoragePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := signArchive(t, archive(t, "a.txt", "a"), privateKey(t, 1))

	s, err := OpenBadgerStorage(BadgerConfig{Dir: dir, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	id, err := s.ImportAttachment(ctx, bytes.NewReader(data), UploaderApp, "a.zip")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBadgerStorage(BadgerConfig{Dir: dir, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer s.Close()

	a, err := s.OpenAttachment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, a.Data)
	assert.Len(t, a.SignerKeys, 1)
}

func TestReadCacheConfigIsBounded(t *testing.T) {
	for _, tt := range []struct {
		window time.Duration
		sizeMB int
	}{
		{time.Minute, 0},
		{time.Minute, -1},
		{10 * time.Minute, 256},
		{24 * time.Hour, 4096},
		{time.Second, 1},
	} {
		bc := readCacheConfig(tt.window, tt.sizeMB)
		perShard := max(bc.MaxEntriesInWindow/bc.Shards, 10)
		prealloc := bc.Shards * perShard * bc.MaxEntrySize

		assert.Positive(t, bc.HardMaxCacheSize, "window=%s size=%d", tt.window, tt.sizeMB)
		assert.LessOrEqual(t, prealloc, 16<<20, "window=%s size=%d", tt.window, tt.sizeMB)
		assert.Zero(t, bc.Shards&(bc.Shards-1), "shards must be a power of two")
	}
}

func TestReadCachedStoresShareProcess(t *testing.T) {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	for n := 0; n < 2; n++ {
		s, err := OpenBadgerStorage(BadgerConfig{
			CacheLifeWindow: time.Minute,
			Logger:          zaptest.NewLogger(t),
		})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close()) })
		require.NotNil(t, s.cache)
	}

	runtime.ReadMemStats(&after)
	grown := int64(after.HeapSys) - int64(before.HeapSys)
	assert.Less(t, grown, int64(1<<30), "opening two stores grew the heap by %d MiB", grown>>20)
}

func ids(as []*Attachment) []crypto.SecureHash {
	out := make([]crypto.SecureHash, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}
