package transactions

import (
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/components"
)

// Structural errors are raised while building a WireTransaction. The input
// is malformed and must not be resubmitted unchanged.

// DuplicateGroupError is returned when two groups share an index.
type DuplicateGroupError struct {
	GroupIndex components.Group
}

func (e *DuplicateGroupError) Error() string {
	return fmt.Sprintf("duplicate component group %s", e.GroupIndex)
}

// EmptyGroupError is returned for a group with no components.
type EmptyGroupError struct {
	GroupIndex components.Group
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("component group %s is empty", e.GroupIndex)
}

// InvalidGroupError is returned when a group's index or shape is not
// allowed.
type InvalidGroupError struct {
	GroupIndex components.Group
	Message    string
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("invalid component group %s: %s", e.GroupIndex, e.Message)
}

// PrivacySaltError is returned for a salt that would weaken hiding.
type PrivacySaltError struct {
	Message string
}

func (e *PrivacySaltError) Error() string {
	return "invalid privacy salt: " + e.Message
}

// ComponentGroupSizeMismatchError is returned when the commands and signers
// groups are not parallel.
type ComponentGroupSizeMismatchError struct {
	Commands int
	Signers  int
}

func (e *ComponentGroupSizeMismatchError) Error() string {
	return fmt.Sprintf("%d commands but %d signer entries", e.Commands, e.Signers)
}

// EmptyFilteredTransactionError is returned when a filtered transaction
// would carry a group with nothing in it.
type EmptyFilteredTransactionError struct {
	GroupIndex components.Group
}

func (e *EmptyFilteredTransactionError) Error() string {
	return fmt.Sprintf("filtered component group %s is empty", e.GroupIndex)
}

// FilteredTransactionVerificationError means the disclosed content of a
// filtered transaction does not reconcile with its id. Cause is set when
// the proof could not be evaluated at all.
type FilteredTransactionVerificationError struct {
	Message string
	Cause   error
}

func (e *FilteredTransactionVerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("filtered transaction verification failed: %s: %v", e.Message, e.Cause)
	}
	return "filtered transaction verification failed: " + e.Message
}

func (e *FilteredTransactionVerificationError) Unwrap() error {
	return e.Cause
}

// ComponentVisibilityError means a component that had to be disclosed was
// hidden.
type ComponentVisibilityError struct {
	GroupIndex components.Group
	Message    string
	Cause      error
}

func (e *ComponentVisibilityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("visibility check failed for group %s: %s: %v", e.GroupIndex, e.Message, e.Cause)
	}
	return fmt.Sprintf("visibility check failed for group %s: %s", e.GroupIndex, e.Message)
}

func (e *ComponentVisibilityError) Unwrap() error {
	return e.Cause
}
