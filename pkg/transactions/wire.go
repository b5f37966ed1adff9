// Package transactions commits transactions to content-derived ids and
// produces verifiable redacted views of them.
//
// A WireTransaction hashes every component into a leaf bound to its group,
// its position and the transaction's privacy salt:
//
//	nonce = NonceDigest(salt || int32BE(group) || int32BE(index))
//	leaf  = PreImageResistantDigest(nonce || component)
//
// Each group's leaves form a Merkle tree. The roots of all groups, ordered by
// group index with absent groups replaced by the all-ones hash, form the top
// tree whose root is the transaction id.
//
// A FilteredTransaction keeps a chosen subset of components, their nonces
// and one partial tree per group, plus every group root. Anyone holding it
// can check the disclosed components against the id without seeing the rest.
package transactions

import (
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/merkle"
)

// WireTransaction is a transaction committed to its id. All derived values
// are computed by NewWireTransaction and never change, so a WireTransaction
// may be shared between goroutines.
type WireTransaction struct {
	groups      []ComponentGroup // sorted by index
	byIndex     map[components.Group]int
	salt        PrivacySalt
	ds          *crypto.DigestService
	decoder     ComponentDecoder
	nonces      [][]crypto.SecureHash // parallel to groups
	trees       []*merkle.Tree        // parallel to groups
	groupHashes []crypto.SecureHash
	id          crypto.SecureHash
}

// NewWireTransaction validates groups and computes the transaction id.
//
// Validation runs in this order and stops at the first failure: duplicate
// group indices, negative indices, empty groups, the privacy salt, the
// commands/signers pairing and the single-component groups. Nothing is
// returned on failure.
func NewWireTransaction(groups []ComponentGroup, salt PrivacySalt, ds *crypto.DigestService, opts ...Option) (*WireTransaction, error) {
	o := buildOptions(opts)

	seen := make(map[components.Group]bool, len(groups))
	for _, g := range groups {
		if seen[g.GroupIndex] {
			return nil, &DuplicateGroupError{GroupIndex: g.GroupIndex}
		}
		seen[g.GroupIndex] = true
	}
	for _, g := range groups {
		if g.GroupIndex < 0 {
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: "negative group index"}
		}
		if len(g.Components) == 0 {
			return nil, &EmptyGroupError{GroupIndex: g.GroupIndex}
		}
	}
	if len(groups) == 0 {
		return nil, &InvalidGroupError{GroupIndex: components.InputsGroup, Message: "transaction has no component groups"}
	}
	if err := salt.Validate(ds, o.allowZeroSalt); err != nil {
		return nil, err
	}

	wtx := &WireTransaction{
		groups:  make([]ComponentGroup, len(groups)),
		byIndex: make(map[components.Group]int, len(groups)),
		salt:    append(PrivacySalt(nil), salt...),
		ds:      ds,
		decoder: o.decoder,
	}
	for i, g := range groups {
		wtx.groups[i] = g.clone()
	}
	sortGroups(wtx.groups)
	for i, g := range wtx.groups {
		wtx.byIndex[g.GroupIndex] = i
	}

	// Either group alone is a count mismatch against an empty partner.
	commands, signers := wtx.Group(components.CommandsGroup), wtx.Group(components.SignersGroup)
	if (commands != nil || signers != nil) && len(commands) != len(signers) {
		return nil, &ComponentGroupSizeMismatchError{Commands: len(commands), Signers: len(signers)}
	}
	for _, g := range wtx.groups {
		if g.GroupIndex.IsSingleton() && len(g.Components) > 1 {
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: fmt.Sprintf("at most one component allowed, got %d", len(g.Components))}
		}
	}

	if err := wtx.commit(); err != nil {
		return nil, err
	}
	return wtx, nil
}

func (w *WireTransaction) commit() error {
	w.nonces = make([][]crypto.SecureHash, len(w.groups))
	w.trees = make([]*merkle.Tree, len(w.groups))

	for gi, g := range w.groups {
		nonces := make([]crypto.SecureHash, len(g.Components))
		leaves := make([]crypto.SecureHash, len(g.Components))
		for i, c := range g.Components {
			nonces[i] = w.ds.ComputeNonce(w.salt, int(g.GroupIndex), i)
			leaves[i] = w.ds.ComponentHashWithNonce(nonces[i], c)
		}
		tree, err := merkle.Build(leaves, w.ds)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.GroupIndex, err)
		}
		w.nonces[gi] = nonces
		w.trees[gi] = tree
	}

	maxIndex := w.groups[len(w.groups)-1].GroupIndex
	w.groupHashes = make([]crypto.SecureHash, int(maxIndex)+1)
	for i := range w.groupHashes {
		w.groupHashes[i] = w.ds.AllOnesHash()
	}
	for gi, g := range w.groups {
		w.groupHashes[g.GroupIndex] = w.trees[gi].Root()
	}

	id, err := merkle.Root(w.groupHashes, w.ds)
	if err != nil {
		return err
	}
	w.id = id
	return nil
}

// ID returns the transaction id.
func (w *WireTransaction) ID() crypto.SecureHash { return w.id }

// PrivacySalt returns a copy of the salt.
func (w *WireTransaction) PrivacySalt() PrivacySalt {
	return append(PrivacySalt(nil), w.salt...)
}

// DigestService returns the digest the transaction is committed with.
func (w *WireTransaction) DigestService() *crypto.DigestService { return w.ds }

// ComponentGroups returns a copy of the groups ordered by index.
func (w *WireTransaction) ComponentGroups() []ComponentGroup {
	out := make([]ComponentGroup, len(w.groups))
	for i, g := range w.groups {
		out[i] = g.clone()
	}
	return out
}

// Group returns a copy of the components of group g, or nil if absent.
func (w *WireTransaction) Group(g components.Group) [][]byte {
	i, ok := w.byIndex[g]
	if !ok {
		return nil
	}
	return w.groups[i].clone().Components
}

// HasGroup reports whether group g is present.
func (w *WireTransaction) HasGroup(g components.Group) bool {
	_, ok := w.byIndex[g]
	return ok
}

// GroupHashes returns the root of every group from index 0 up to the highest
// present index. Absent groups hold the all-ones hash.
func (w *WireTransaction) GroupHashes() []crypto.SecureHash {
	return append([]crypto.SecureHash(nil), w.groupHashes...)
}

// GroupRoot returns the Merkle root of group g.
func (w *WireTransaction) GroupRoot(g components.Group) (crypto.SecureHash, bool) {
	i, ok := w.byIndex[g]
	if !ok {
		return crypto.SecureHash{}, false
	}
	return w.trees[i].Root(), true
}

// Nonces returns the component nonces of group g.
func (w *WireTransaction) Nonces(g components.Group) []crypto.SecureHash {
	i, ok := w.byIndex[g]
	if !ok {
		return nil
	}
	return append([]crypto.SecureHash(nil), w.nonces[i]...)
}

// LeafHashes returns the leaf hashes of group g.
func (w *WireTransaction) LeafHashes(g components.Group) []crypto.SecureHash {
	i, ok := w.byIndex[g]
	if !ok {
		return nil
	}
	return w.trees[i].Leaves()
}

// Equal reports whether both transactions commit to the same content. Equal
// transactions have equal ids.
func (w *WireTransaction) Equal(other *WireTransaction) bool {
	if w == nil || other == nil {
		return w == other
	}
	if w.id != other.id || w.ds.Name() != other.ds.Name() || string(w.salt) != string(other.salt) {
		return false
	}
	if len(w.groups) != len(other.groups) {
		return false
	}
	for i := range w.groups {
		a, b := w.groups[i], other.groups[i]
		if a.GroupIndex != b.GroupIndex || len(a.Components) != len(b.Components) {
			return false
		}
		for j := range a.Components {
			if string(a.Components[j]) != string(b.Components[j]) {
				return false
			}
		}
	}
	return true
}

func (w *WireTransaction) String() string {
	return fmt.Sprintf("WireTransaction(id=%s, groups=%d)", w.id, len(w.groups))
}

// Decoded views.

func identity(i int) int { return i }

// Inputs decodes the inputs group.
func (w *WireTransaction) Inputs() ([]components.StateRef, error) {
	return decodeAll[components.StateRef](w.decoder, components.InputsGroup, w.Group(components.InputsGroup), identity)
}

// Outputs decodes the outputs group.
func (w *WireTransaction) Outputs() ([]components.TransactionState, error) {
	return decodeAll[components.TransactionState](w.decoder, components.OutputsGroup, w.Group(components.OutputsGroup), identity)
}

// References decodes the references group.
func (w *WireTransaction) References() ([]components.ReferenceStateRef, error) {
	return decodeAll[components.ReferenceStateRef](w.decoder, components.ReferencesGroup, w.Group(components.ReferencesGroup), identity)
}

// Attachments decodes the attachments group.
func (w *WireTransaction) Attachments() ([]components.AttachmentID, error) {
	return decodeAll[components.AttachmentID](w.decoder, components.AttachmentsGroup, w.Group(components.AttachmentsGroup), identity)
}

// Commands decodes the commands group and joins each command with its
// signers entry.
func (w *WireTransaction) Commands() ([]components.Command, error) {
	cmds, err := decodeAll[components.Command](w.decoder, components.CommandsGroup, w.Group(components.CommandsGroup), identity)
	if err != nil {
		return nil, err
	}
	signers, err := w.signers()
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		cmds[i].Signers = signers[i]
	}
	return cmds, nil
}

func (w *WireTransaction) signers() ([][]crypto.Key, error) {
	return signersOf(w.decoder, w.Group(components.SignersGroup))
}

// RequiredSigningKeys returns the distinct keys of all command signers in
// first-seen order.
func (w *WireTransaction) RequiredSigningKeys() ([]crypto.Key, error) {
	signers, err := w.signers()
	if err != nil {
		return nil, err
	}
	return distinctKeys(signers), nil
}

// Notary decodes the notary, if present.
func (w *WireTransaction) Notary() (*components.Notary, error) {
	return decodeSingle[components.Notary](w.decoder, components.NotaryGroup, w.Group(components.NotaryGroup))
}

// TimeWindow decodes the time window, if present.
func (w *WireTransaction) TimeWindow() (*components.TimeWindow, error) {
	return decodeSingle[components.TimeWindow](w.decoder, components.TimeWindowGroup, w.Group(components.TimeWindowGroup))
}

// NetworkParametersHash decodes the parameters hash, if present.
func (w *WireTransaction) NetworkParametersHash() (*components.NetworkParametersHash, error) {
	return decodeSingle[components.NetworkParametersHash](w.decoder, components.ParametersGroup, w.Group(components.ParametersGroup))
}

func decodeSingle[T components.Component](d ComponentDecoder, group components.Group, comps [][]byte) (*T, error) {
	if len(comps) == 0 {
		return nil, nil
	}
	out, err := decodeAll[T](d, group, comps[:1], identity)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func distinctKeys(lists [][]crypto.Key) []crypto.Key {
	seen := make(map[crypto.Key]bool)
	var out []crypto.Key
	for _, keys := range lists {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
