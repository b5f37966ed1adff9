package attachments

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// TrustPredicate decides whether an attachment may contribute code. It is
// asked about every code-carrying attachment, whatever its uploader.
type TrustPredicate func(*Attachment) bool

// UploaderTrust trusts exactly the attachments from trusted uploaders. It
// knows nothing of signer keys or blacklists.
func UploaderTrust(a *Attachment) bool { return IsTrustedUploader(a.Uploader) }

// TrustCalculator derives attachment trust from uploaders and signer keys.
//
// An attachment is trusted if it was uploaded by a trusted uploader, or if
// one of its signer keys also signed an attachment from a trusted uploader.
// Trust gained through a shared key does not propagate further. Any
// blacklisted signer key makes an attachment untrusted, and a blacklisted
// anchor never lends trust.
type TrustCalculator struct {
	source    TrustSource
	blacklist map[crypto.Key]bool
	anchored  *lru.Cache[crypto.Key, struct{}]
	logger    *zap.Logger
}

// TrustOption configures a TrustCalculator.
type TrustOption func(*TrustCalculator)

// WithBlacklist adds signer keys whose attachments are never trusted.
func WithBlacklist(keys ...crypto.Key) TrustOption {
	return func(t *TrustCalculator) {
		for _, k := range keys {
			t.blacklist[k] = true
		}
	}
}

// WithTrustLogger sets the logger.
func WithTrustLogger(logger *zap.Logger) TrustOption {
	return func(t *TrustCalculator) { t.logger = logger }
}

// DefaultTrustCacheSize is the number of anchored keys remembered.
const DefaultTrustCacheSize = 1024

// NewTrustCalculator returns a calculator that looks up anchors in source.
func NewTrustCalculator(source TrustSource, cacheSize int, opts ...TrustOption) (*TrustCalculator, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultTrustCacheSize
	}
	anchored, err := lru.New[crypto.Key, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create trust cache: %w", err)
	}
	t := &TrustCalculator{
		source:    source,
		blacklist: make(map[crypto.Key]bool),
		anchored:  anchored,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IsTrusted reports whether a is trusted.
func (t *TrustCalculator) IsTrusted(ctx context.Context, a *Attachment) (bool, error) {
	if t.blacklisted(a) {
		return false, nil
	}
	if IsTrustedUploader(a.Uploader) {
		return true, nil
	}
	for _, k := range a.SignerKeys {
		ok, err := t.hasAnchor(ctx, k)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// hasAnchor reports whether key signed some attachment from a trusted
// uploader that is not itself blacklisted. Only positive answers are
// memoized; stored attachments are never removed.
func (t *TrustCalculator) hasAnchor(ctx context.Context, key crypto.Key) (bool, error) {
	if _, ok := t.anchored.Get(key); ok {
		return true, nil
	}
	signed, err := t.source.AttachmentsSignedBy(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to look up attachments signed by %s: %w", key, err)
	}
	for _, other := range signed {
		if IsTrustedUploader(other.Uploader) && !t.blacklisted(other) {
			t.anchored.Add(key, struct{}{})
			return true, nil
		}
	}
	return false, nil
}

func (t *TrustCalculator) blacklisted(a *Attachment) bool {
	for _, k := range a.SignerKeys {
		if t.blacklist[k] {
			return true
		}
	}
	return false
}

// Predicate adapts the calculator for NewClassLoader. Lookup failures count
// as untrusted.
func (t *TrustCalculator) Predicate(ctx context.Context) TrustPredicate {
	return func(a *Attachment) bool {
		ok, err := t.IsTrusted(ctx, a)
		if err != nil {
			t.logger.Warn("trust lookup failed", zap.Stringer("attachment", a.ID), zap.Error(err))
			return false
		}
		return ok
	}
}
