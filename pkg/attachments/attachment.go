// Package attachments stores content-addressed archives referenced by
// transactions and loads them into a single resource and code namespace.
//
// An attachment is a zip archive identified by the hash of its bytes. It may
// carry signature entries (META-INF/<KEY>.SIG) by secp256k1 keys; the set of
// signing keys drives trust. Entries ending in .wasm are code. Everything
// else is a resource.
//
// NewClassLoader merges the attachments of one transaction, rejecting
// conflicting paths and untrusted code. Loaders own a wasm runtime and must
// be closed; Cache shares them across verifications with reference counted
// leases.
package attachments

import (
	"fmt"
	"sync"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Uploader tags. Attachments from these uploaders are trusted outright.
const (
	UploaderApp     = "app"
	UploaderRPC     = "rpc"
	UploaderTestDSL = "TestDSL"
	UploaderP2P     = "p2p"
	UploaderUnknown = "unknown"
)

// IsTrustedUploader reports whether uploader is intrinsically trusted.
func IsTrustedUploader(uploader string) bool {
	switch uploader {
	case UploaderApp, UploaderRPC, UploaderTestDSL:
		return true
	}
	return false
}

// Attachment is an immutable, imported archive.
type Attachment struct {
	ID         crypto.SecureHash
	Data       []byte
	Uploader   string
	Filename   string
	SignerKeys []crypto.Key

	once    sync.Once
	entries []Entry
	err     error
}

// NewAttachment validates data as an archive, verifies its signatures and
// derives its id with ds.
func NewAttachment(ds *crypto.DigestService, data []byte, uploader, filename string) (*Attachment, error) {
	entries, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}
	keys, err := signerKeys(entries)
	if err != nil {
		return nil, err
	}
	a := &Attachment{
		ID:         ds.Hash(data),
		Data:       data,
		Uploader:   uploader,
		Filename:   filename,
		SignerKeys: keys,
	}
	a.once.Do(func() { a.entries = entries })
	return a, nil
}

// Entries returns the archive entries. The archive is read at most once.
func (a *Attachment) Entries() ([]Entry, error) {
	a.once.Do(func() {
		a.entries, a.err = ReadArchive(a.Data)
	})
	return a.entries, a.err
}

// ContainsCode reports whether any entry is a compiled module.
func (a *Attachment) ContainsCode() (bool, error) {
	entries, err := a.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.Dir && IsCode(e.Path) {
			return true, nil
		}
	}
	return false, nil
}

// SignedBy reports whether key signed the attachment.
func (a *Attachment) SignedBy(key crypto.Key) bool {
	for _, k := range a.SignerKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (a *Attachment) String() string {
	return fmt.Sprintf("Attachment(%s, uploader=%s, signers=%d)", a.ID, a.Uploader, len(a.SignerKeys))
}
