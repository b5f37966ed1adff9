package attachments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// DefaultCacheSize is the number of loaders a Cache keeps.
const DefaultCacheSize = 64

// Cache shares class loaders between verifications of transactions with the
// same network parameters and attachment list.
//
// Loaders are handed out as leases. An evicted loader stays open until its
// last lease is released. Concurrent requests for the same key build one
// loader.
type Cache struct {
	opts    options
	metrics *Metrics
	logger  *zap.Logger
	group   singleflight.Group

	mu      sync.Mutex
	entries *lru.Cache[string, *cacheEntry]
	closed  bool
}

type cacheEntry struct {
	key     string
	loader  *ClassLoader
	refs    int
	evicted bool
	closed  bool
}

// NewCache returns a cache holding up to size loaders. Options are passed
// on to every loader it builds.
func NewCache(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	o := buildOptions(opts)
	c := &Cache{opts: o, metrics: o.metrics, logger: o.logger}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	entries, err := lru.NewWithEvict[string, *cacheEntry](size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create class loader cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// CacheKey identifies a loader by network parameters and the ordered
// attachment ids.
func CacheKey(params crypto.SecureHash, attachments []*Attachment) string {
	var b strings.Builder
	b.WriteString(params.String())
	for _, a := range attachments {
		b.WriteByte('|')
		b.WriteString(a.ID.String())
	}
	return b.String()
}

// Acquire returns a lease on the loader for attachments, building it on a
// miss. Trust is checked on every call, so a cached loader is never handed
// to a caller whose predicate rejects its code.
func (c *Cache) Acquire(ctx context.Context, attachments []*Attachment, params, txID crypto.SecureHash, isTrusted TrustPredicate) (*Lease, error) {
	if err := checkTrust(attachments, txID, isTrusted); err != nil {
		c.metrics.BuildFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	key := CacheKey(params, attachments)

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if e, ok := c.entries.Get(key); ok {
			lease := c.lease(e, txID)
			c.mu.Unlock()
			c.metrics.Hits.Inc()
			return lease, nil
		}
		c.mu.Unlock()

		v, err, _ := c.group.Do(key, func() (interface{}, error) {
			return c.build(ctx, key, attachments, params, txID, isTrusted)
		})
		if err != nil {
			return nil, err
		}

		e := v.(*cacheEntry)
		c.mu.Lock()
		if e.closed {
			// Evicted and released before this caller got a lease.
			c.mu.Unlock()
			continue
		}
		lease := c.lease(e, txID)
		c.mu.Unlock()
		return lease, nil
	}
}

func (c *Cache) build(ctx context.Context, key string, attachments []*Attachment, params, txID crypto.SecureHash, isTrusted TrustPredicate) (*cacheEntry, error) {
	c.mu.Lock()
	if e, ok := c.entries.Peek(key); ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	c.metrics.Misses.Inc()
	loader, err := NewClassLoader(ctx, attachments, params, txID, isTrusted, c.loaderOptions()...)
	if err != nil {
		c.metrics.BuildFailures.WithLabelValues(failureReason(err)).Inc()
		c.logger.Debug("class loader build failed", zap.Stringer("tx", txID), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = loader.Close(ctx)
		return nil, ErrClosed
	}
	e := &cacheEntry{key: key, loader: loader}
	c.entries.Add(key, e)
	return e, nil
}

func (c *Cache) loaderOptions() []Option {
	return []Option{WithLogger(c.logger), WithCompilationCache(c.opts.compilation)}
}

// lease must be called with c.mu held.
func (c *Cache) lease(e *cacheEntry, txID crypto.SecureHash) *Lease {
	e.refs++
	c.metrics.Leased.Inc()
	return &Lease{cache: c, entry: e, txID: txID}
}

// onEvict runs under c.mu, from inside the lru.
func (c *Cache) onEvict(_ string, e *cacheEntry) {
	e.evicted = true
	c.metrics.Evictions.Inc()
	if e.refs == 0 {
		c.closeEntry(e)
	}
}

func (c *Cache) closeEntry(e *cacheEntry) {
	e.closed = true
	if err := e.loader.Close(context.Background()); err != nil {
		c.logger.Warn("failed to close evicted class loader", zap.String("key", e.key), zap.Error(err))
	}
}

func (c *Cache) release(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	c.metrics.Leased.Dec()
	if e.refs == 0 && e.evicted && !e.closed {
		c.closeEntry(e)
	}
}

// Len returns the number of cached loaders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Close evicts every loader. Leased loaders close when released.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.entries.Purge()
}

// Lease is a reference to a cached loader.
type Lease struct {
	cache *Cache
	entry *cacheEntry
	txID  crypto.SecureHash
	once  sync.Once
}

// TxID returns the transaction this lease was acquired for. The shared
// loader's own TxID names whichever transaction built it.
func (l *Lease) TxID() crypto.SecureHash { return l.txID }

// ClassLoader returns the leased loader. It must not be used after Release.
func (l *Lease) ClassLoader() *ClassLoader {
	return l.entry.loader
}

// Release returns the lease. Releasing twice is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() { l.cache.release(l.entry) })
}
