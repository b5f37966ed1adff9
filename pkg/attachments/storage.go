package attachments

import (
	"context"
	"fmt"
	"io"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Storage opens and imports attachments.
type Storage interface {
	// OpenAttachment returns ErrNotFound, possibly wrapped, for unknown ids.
	OpenAttachment(ctx context.Context, id crypto.SecureHash) (*Attachment, error)
	ImportAttachment(ctx context.Context, r io.Reader, uploader, filename string) (crypto.SecureHash, error)
}

// TrustSource finds the attachments a key has signed.
type TrustSource interface {
	AttachmentsSignedBy(ctx context.Context, key crypto.Key) ([]*Attachment, error)
}

// readAttachment reads and validates an attachment from r.
func readAttachment(ds *crypto.DigestService, r io.Reader, uploader, filename string) (*Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) > MaxAttachmentSize {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("attachment exceeds %d bytes", MaxAttachmentSize)}
	}
	if uploader == "" {
		uploader = UploaderUnknown
	}
	return NewAttachment(ds, data, uploader, filename)
}
