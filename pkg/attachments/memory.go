package attachments

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// MemoryStorage keeps attachments in memory.
type MemoryStorage struct {
	ds *crypto.DigestService

	mu       sync.RWMutex
	byID     map[crypto.SecureHash]*Attachment
	bySigner map[crypto.Key][]*Attachment
}

var (
	_ Storage     = (*MemoryStorage)(nil)
	_ TrustSource = (*MemoryStorage)(nil)
)

// NewMemoryStorage returns an empty store deriving ids with ds, or with
// SHA-256 if ds is nil.
func NewMemoryStorage(ds *crypto.DigestService) *MemoryStorage {
	if ds == nil {
		ds = crypto.DefaultDigestService()
	}
	return &MemoryStorage{
		ds:       ds,
		byID:     make(map[crypto.SecureHash]*Attachment),
		bySigner: make(map[crypto.Key][]*Attachment),
	}
}

func (s *MemoryStorage) OpenAttachment(_ context.Context, id crypto.SecureHash) (*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, nil
}

func (s *MemoryStorage) ImportAttachment(_ context.Context, r io.Reader, uploader, filename string) (crypto.SecureHash, error) {
	a, err := readAttachment(s.ds, r, uploader, filename)
	if err != nil {
		return crypto.SecureHash{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return crypto.SecureHash{}, &DuplicateAttachmentError{ID: a.ID}
	}
	s.byID[a.ID] = a
	for _, k := range a.SignerKeys {
		s.bySigner[k] = append(s.bySigner[k], a)
	}
	return a.ID, nil
}

func (s *MemoryStorage) AttachmentsSignedBy(_ context.Context, key crypto.Key) ([]*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Attachment(nil), s.bySigner[key]...), nil
}
