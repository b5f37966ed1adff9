package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Key layout:
//
//	a/<id>         -> storedRecord
//	s/<key>/<id>   -> empty, one per signer
const (
	attachmentPrefix = "a/"
	signerPrefix     = "s/"
)

// BadgerConfig configures a BadgerStorage.
type BadgerConfig struct {
	// Dir is the database directory. Empty runs badger in memory.
	Dir string
	// CacheLifeWindow bounds how long opened attachments stay in the read
	// cache. Zero disables the cache.
	CacheLifeWindow time.Duration
	// CacheMaxSizeMB caps the read cache. Zero or less means
	// DefaultReadCacheSizeMB.
	CacheMaxSizeMB int
	DigestService  *crypto.DigestService
	Logger         *zap.Logger
}

// Read cache sizing. bigcache preallocates MaxEntriesInWindow/Shards entries
// of MaxEntrySize per shard, so both are set explicitly instead of taking
// bigcache's defaults, which scale with the life window.
const (
	DefaultReadCacheSizeMB = 64

	readCacheShards         = 64
	readCacheEntrySize      = 16 << 10
	readCacheInitialEntries = 1024
)

func readCacheConfig(window time.Duration, maxSizeMB int) bigcache.Config {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultReadCacheSizeMB
	}
	bc := bigcache.DefaultConfig(window)
	bc.Shards = readCacheShards
	bc.MaxEntrySize = readCacheEntrySize
	bc.MaxEntriesInWindow = min(readCacheInitialEntries, (maxSizeMB<<20)/readCacheEntrySize)
	bc.HardMaxCacheSize = maxSizeMB
	bc.Verbose = false
	return bc
}

// BadgerStorage persists attachments in badger with a bigcache read cache
// and a signer index.
type BadgerStorage struct {
	db     *badgerdb.DB
	cache  *bigcache.BigCache
	ds     *crypto.DigestService
	logger *zap.Logger

	// Imports are serialized so the duplicate check and the write agree.
	importMu sync.Mutex
}

var (
	_ Storage     = (*BadgerStorage)(nil)
	_ TrustSource = (*BadgerStorage)(nil)
)

// OpenBadgerStorage opens or creates the store described by cfg.
func OpenBadgerStorage(cfg BadgerConfig) (*BadgerStorage, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := cfg.DigestService
	if ds == nil {
		ds = crypto.DefaultDigestService()
	}

	var opts badgerdb.Options
	if cfg.Dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", cfg.Dir, err)
		}
		opts = badgerdb.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(badgerLogger{logger.Sugar()})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment store: %w", err)
	}

	s := &BadgerStorage{db: db, ds: ds, logger: logger}
	if cfg.CacheLifeWindow > 0 {
		cache, err := bigcache.New(context.Background(), readCacheConfig(cfg.CacheLifeWindow, cfg.CacheMaxSizeMB))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create read cache: %w", err)
		}
		s.cache = cache
	}

	logger.Info("attachment store opened", zap.String("dir", cfg.Dir), zap.Bool("in_memory", cfg.Dir == ""))
	return s, nil
}

func (s *BadgerStorage) OpenAttachment(ctx context.Context, id crypto.SecureHash) (*Attachment, error) {
	key := attachmentPrefix + id.String()

	if s.cache != nil {
		if raw, err := s.cache.Get(key); err == nil {
			if a, err := s.decode(id, raw); err == nil {
				return a, nil
			}
			s.logger.Warn("dropping undecodable cache entry", zap.Stringer("id", id))
			_ = s.cache.Delete(key)
		}
	}

	var raw []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", id, err)
	}

	a, err := s.decode(id, raw)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(key, raw); err != nil {
			s.logger.Debug("attachment not cached", zap.Stringer("id", id), zap.Error(err))
		}
	}
	return a, nil
}

func (s *BadgerStorage) ImportAttachment(ctx context.Context, r io.Reader, uploader, filename string) (crypto.SecureHash, error) {
	a, err := readAttachment(s.ds, r, uploader, filename)
	if err != nil {
		return crypto.SecureHash{}, err
	}

	rec := storedRecord{Data: a.Data, Uploader: a.Uploader, Filename: a.Filename}
	for _, k := range a.SignerKeys {
		rec.Signers = append(rec.Signers, append([]byte(nil), k[:]...))
	}
	raw, err := encMode.Marshal(rec)
	if err != nil {
		return crypto.SecureHash{}, fmt.Errorf("failed to encode attachment: %w", err)
	}

	s.importMu.Lock()
	defer s.importMu.Unlock()

	key := []byte(attachmentPrefix + a.ID.String())
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return &DuplicateAttachmentError{ID: a.ID}
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		for _, k := range a.SignerKeys {
			if err := txn.Set(signerIndexKey(k, a.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var dup *DuplicateAttachmentError
		if errors.As(err, &dup) {
			return crypto.SecureHash{}, err
		}
		return crypto.SecureHash{}, fmt.Errorf("failed to store attachment %s: %w", a.ID, err)
	}

	s.logger.Info("attachment imported",
		zap.Stringer("id", a.ID),
		zap.String("uploader", a.Uploader),
		zap.String("filename", a.Filename),
		zap.Int("signers", len(a.SignerKeys)),
	)
	return a.ID, nil
}

func (s *BadgerStorage) AttachmentsSignedBy(ctx context.Context, key crypto.Key) ([]*Attachment, error) {
	prefix := []byte(signerPrefix + key.String() + "/")

	var ids []crypto.SecureHash
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id, err := crypto.ParseSecureHash(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("corrupt signer index: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan signer index: %w", err)
	}

	out := make([]*Attachment, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.OpenAttachment(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Close releases the database and cache.
func (s *BadgerStorage) Close() error {
	var cacheErr error
	if s.cache != nil {
		cacheErr = s.cache.Close()
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close attachment store: %w", err)
	}
	return cacheErr
}

func (s *BadgerStorage) decode(id crypto.SecureHash, raw []byte) (*Attachment, error) {
	var rec storedRecord
	if err := decMode.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("corrupt attachment record %s: %w", id, err)
	}
	a := &Attachment{ID: id, Data: rec.Data, Uploader: rec.Uploader, Filename: rec.Filename}
	for _, b := range rec.Signers {
		k, err := crypto.ParseKey(b)
		if err != nil {
			return nil, fmt.Errorf("corrupt attachment record %s: %w", id, err)
		}
		a.SignerKeys = append(a.SignerKeys, k)
	}
	return a, nil
}

func signerIndexKey(k crypto.Key, id crypto.SecureHash) []byte {
	return []byte(signerPrefix + k.String() + "/" + id.String())
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
