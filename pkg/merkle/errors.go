package merkle

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// ErrEmptyLeaves is returned when a tree is requested over no leaves.
var ErrEmptyLeaves = errors.New("merkle: cannot build a tree with no leaves")

// LeafNotFoundError is returned when a partial tree is asked to include a hash
// that is not one of the full tree's leaves.
type LeafNotFoundError struct {
	Hash crypto.SecureHash
}

func (e *LeafNotFoundError) Error() string {
	return fmt.Sprintf("merkle: leaf %s not found in tree", e.Hash)
}

// MalformedPartialTreeError marks a partial tree that cannot be evaluated at
// all, as opposed to one that evaluates to the wrong root.
type MalformedPartialTreeError struct {
	Reason string
	Err    error
}

func (e *MalformedPartialTreeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merkle: malformed partial tree: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("merkle: malformed partial tree: %s", e.Reason)
}

func (e *MalformedPartialTreeError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) *MalformedPartialTreeError {
	return &MalformedPartialTreeError{Reason: fmt.Sprintf(format, args...)}
}
