package attachments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

var (
	// ErrNotFound is returned by storage when no attachment has the id.
	ErrNotFound = errors.New("attachment not found")

	// ErrClosed is returned by operations on a closed loader, cache or store.
	ErrClosed = errors.New("closed")
)

// InvalidArchiveError reports an attachment that is not a well-formed archive.
type InvalidArchiveError struct {
	Message string
	Cause   error
}

func (e *InvalidArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid archive: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid archive: %s", e.Message)
}

func (e *InvalidArchiveError) Unwrap() error {
	return e.Cause
}

// SignatureError reports a signature entry that does not verify.
type SignatureError struct {
	Path    string
	Message string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("bad signature %s: %s", e.Path, e.Message)
}

// DuplicateAttachmentError is returned when importing an attachment that is
// already stored.
type DuplicateAttachmentError struct {
	ID crypto.SecureHash
}

func (e *DuplicateAttachmentError) Error() string {
	return fmt.Sprintf("attachment %s already imported", e.ID)
}

// OverlappingAttachmentsError reports a path that two attachments both
// provide with different content.
type OverlappingAttachmentsError struct {
	TxID        crypto.SecureHash
	Path        string
	Attachments []crypto.SecureHash
}

func (e *OverlappingAttachmentsError) Error() string {
	return fmt.Sprintf("transaction %s: attachments %s overlap at %s", e.TxID, joinIDs(e.Attachments), e.Path)
}

// UntrustedAttachmentsError reports code-bearing attachments that failed the
// trust check.
type UntrustedAttachmentsError struct {
	TxID        crypto.SecureHash
	Attachments []crypto.SecureHash
}

func (e *UntrustedAttachmentsError) Error() string {
	return fmt.Sprintf("transaction %s: untrusted attachments %s", e.TxID, joinIDs(e.Attachments))
}

// ModuleError reports a code entry that cannot be compiled.
type ModuleError struct {
	Path  string
	Cause error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("failed to compile %s: %v", e.Path, e.Cause)
}

func (e *ModuleError) Unwrap() error {
	return e.Cause
}

func joinIDs(ids []crypto.SecureHash) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}
