package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// serializationWhitelistPath may differ between attachments even though it
// is a service file.
const serializationWhitelistPath = "meta-inf/services/serialization-whitelist"

type resource struct {
	owner int
	data  []byte
}

// ClassLoader is the merged view of one transaction's attachments. It owns
// a wasm runtime and must be closed.
type ClassLoader struct {
	txID        crypto.SecureHash
	params      crypto.SecureHash
	attachments []*Attachment
	resources   map[string]resource
	paths       []string
	logger      *zap.Logger

	mu      sync.Mutex
	runtime wazero.Runtime
	modules map[string]wazero.CompiledModule
	closed  bool
}

// NewClassLoader merges attachments, in order, into one namespace.
//
// It fails with *OverlappingAttachmentsError if two attachments provide a
// path with different content where the path must be unique, and with
// *UntrustedAttachmentsError if isTrusted rejects an attachment carrying
// code. A nil isTrusted means UploaderTrust. Lookups resolve to the first
// attachment providing the path.
func NewClassLoader(ctx context.Context, attachments []*Attachment, params, txID crypto.SecureHash, isTrusted TrustPredicate, opts ...Option) (*ClassLoader, error) {
	o := buildOptions(opts)

	resources := make(map[string]resource)
	var paths []string
	for i, a := range attachments {
		entries, err := a.Entries()
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", a.ID, err)
		}
		for _, e := range entries {
			if e.Dir {
				continue
			}
			p := NormalizePath(e.Path)
			prev, ok := resources[p]
			if !ok {
				resources[p] = resource{owner: i, data: e.Data}
				paths = append(paths, p)
				continue
			}
			if bytes.Equal(prev.data, e.Data) || !mustBeUnique(p) {
				continue
			}
			return nil, &OverlappingAttachmentsError{
				TxID:        txID,
				Path:        p,
				Attachments: []crypto.SecureHash{attachments[prev.owner].ID, a.ID},
			}
		}
	}

	if err := checkTrust(attachments, txID, isTrusted); err != nil {
		return nil, err
	}

	cfg := wazero.NewRuntimeConfig()
	if o.compilation != nil {
		cfg = cfg.WithCompilationCache(o.compilation)
	}

	cl := &ClassLoader{
		txID:        txID,
		params:      params,
		attachments: append([]*Attachment(nil), attachments...),
		resources:   resources,
		paths:       paths,
		logger:      o.logger,
		runtime:     wazero.NewRuntimeWithConfig(ctx, cfg),
		modules:     make(map[string]wazero.CompiledModule),
	}
	o.logger.Debug("class loader built",
		zap.Stringer("tx", txID),
		zap.Int("attachments", len(attachments)),
		zap.Int("paths", len(paths)),
	)
	return cl, nil
}

// mustBeUnique reports whether two attachments may only share path if
// their content is identical.
func mustBeUnique(p string) bool {
	switch {
	case strings.HasSuffix(p, "/"):
		return false
	case strings.HasSuffix(p, CodeExtension):
		return true
	case !strings.HasPrefix(p, "meta-inf/"):
		return true
	case p == serializationWhitelistPath:
		return false
	case strings.HasPrefix(p, "meta-inf/services/"):
		return true
	default:
		return false
	}
}

// checkTrust rejects every code-carrying attachment that isTrusted does
// not vouch for. A nil isTrusted falls back to UploaderTrust.
func checkTrust(attachments []*Attachment, txID crypto.SecureHash, isTrusted TrustPredicate) error {
	if isTrusted == nil {
		isTrusted = UploaderTrust
	}
	var untrusted []crypto.SecureHash
	for _, a := range attachments {
		code, err := a.ContainsCode()
		if err != nil {
			return fmt.Errorf("attachment %s: %w", a.ID, err)
		}
		if code && !isTrusted(a) {
			untrusted = append(untrusted, a.ID)
		}
	}
	if len(untrusted) > 0 {
		return &UntrustedAttachmentsError{TxID: txID, Attachments: untrusted}
	}
	return nil
}

// WithClassLoader builds a loader, passes it to fn and closes it on return.
func WithClassLoader(ctx context.Context, attachments []*Attachment, params, txID crypto.SecureHash, isTrusted TrustPredicate, fn func(*ClassLoader) error, opts ...Option) (err error) {
	cl, err := NewClassLoader(ctx, attachments, params, txID, isTrusted, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cl.Close(ctx))
	}()
	return fn(cl)
}

// TxID returns the transaction the loader was built for. A loader shared
// through a Cache keeps the id of the transaction whose Acquire built it;
// use Lease.TxID for the current one.
func (cl *ClassLoader) TxID() crypto.SecureHash { return cl.txID }

// Params returns the network parameters hash the loader was built under.
func (cl *ClassLoader) Params() crypto.SecureHash { return cl.params }

// Attachments returns the attachments in resolution order.
func (cl *ClassLoader) Attachments() []*Attachment {
	return append([]*Attachment(nil), cl.attachments...)
}

// Paths returns every normalized file path in first-seen order.
func (cl *ClassLoader) Paths() []string {
	return append([]string(nil), cl.paths...)
}

// Resource returns the content at path.
func (cl *ClassLoader) Resource(path string) ([]byte, bool) {
	r, ok := cl.resources[NormalizePath(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), r.data...), true
}

// Owner returns the id of the attachment path resolves to.
func (cl *ClassLoader) Owner(path string) (crypto.SecureHash, bool) {
	r, ok := cl.resources[NormalizePath(path)]
	if !ok {
		return crypto.SecureHash{}, false
	}
	return cl.attachments[r.owner].ID, true
}

// LoadModule compiles the module at path. Each path is compiled once.
func (cl *ClassLoader) LoadModule(ctx context.Context, path string) (wazero.CompiledModule, error) {
	p := NormalizePath(path)
	if !IsCode(p) {
		return nil, fmt.Errorf("%s is not a module", path)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil, ErrClosed
	}
	if m, ok := cl.modules[p]; ok {
		return m, nil
	}
	r, ok := cl.resources[p]
	if !ok {
		return nil, fmt.Errorf("%w: module %s", ErrNotFound, path)
	}
	m, err := cl.runtime.CompileModule(ctx, r.data)
	if err != nil {
		return nil, &ModuleError{Path: p, Cause: err}
	}
	cl.modules[p] = m
	return m, nil
}

// Close releases the runtime and every compiled module. Closing twice is a
// no-op.
func (cl *ClassLoader) Close(ctx context.Context) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil
	}
	cl.closed = true
	cl.modules = nil
	if err := cl.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close runtime for %s: %w", cl.txID, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (cl *ClassLoader) Closed() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.closed
}
