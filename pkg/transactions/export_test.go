package transactions

import (
	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// NewFilteredTransactionUnchecked skips the structural checks of
// NewFilteredTransaction so tests can build inconsistent values.
func NewFilteredTransactionUnchecked(id crypto.SecureHash, groups []FilteredComponentGroup, groupHashes []crypto.SecureHash, ds *crypto.DigestService) *FilteredTransaction {
	return newFilteredTransaction(id, groups, groupHashes, ds, components.DefaultCodec())
}
