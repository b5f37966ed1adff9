package transactions

import (
	"errors"
	"fmt"
	"sort"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/merkle"
)

// VisibilityPredicate decides whether a component is disclosed. Commands are
// offered with their signers attached. Signers entries are never offered;
// they follow the commands.
type VisibilityPredicate func(components.Component) bool

// FilteredComponentGroup is the disclosed part of one group. Components and
// Nonces are parallel and in original order, and PartialTree includes
// exactly their leaves.
type FilteredComponentGroup struct {
	GroupIndex  components.Group
	Components  [][]byte
	Nonces      []crypto.SecureHash
	PartialTree *merkle.PartialTree
}

func (g FilteredComponentGroup) leafHashes(ds *crypto.DigestService) []crypto.SecureHash {
	out := make([]crypto.SecureHash, len(g.Components))
	for i, c := range g.Components {
		out[i] = ds.ComponentHashWithNonce(g.Nonces[i], c)
	}
	return out
}

// FilteredTransaction is a redacted WireTransaction that can still be
// checked against the original id. It is immutable.
type FilteredTransaction struct {
	id          crypto.SecureHash
	groups      []FilteredComponentGroup // sorted by index
	groupHashes []crypto.SecureHash
	ds          *crypto.DigestService
	decoder     ComponentDecoder
}

// BuildFilteredTransaction discloses the components of wtx accepted by
// isVisible. If any command is disclosed the whole signers group is
// disclosed with it. Every group root is kept so the id stays recomputable.
func BuildFilteredTransaction(wtx *WireTransaction, isVisible VisibilityPredicate, opts ...Option) (*FilteredTransaction, error) {
	if isVisible == nil {
		return nil, errors.New("visibility predicate is nil")
	}
	o := options{decoder: wtx.decoder}
	for _, opt := range opts {
		opt(&o)
	}

	signers, err := signersOf(o.decoder, wtx.Group(components.SignersGroup))
	if err != nil {
		return nil, err
	}

	var filtered []FilteredComponentGroup
	commandVisible := false
	for gi, g := range wtx.groups {
		if g.GroupIndex == components.SignersGroup {
			continue
		}

		var keep []int
		for i, b := range g.Components {
			comp, err := o.decoder.Decode(g.GroupIndex, i, b)
			if err != nil {
				return nil, err
			}
			if cmd, ok := comp.(components.Command); ok && i < len(signers) {
				cmd.Signers = append([]crypto.Key(nil), signers[i]...)
				comp = cmd
			}
			if isVisible(comp) {
				keep = append(keep, i)
			}
		}
		if len(keep) == 0 {
			continue
		}
		if g.GroupIndex == components.CommandsGroup {
			commandVisible = true
		}

		fg, err := filterGroup(wtx, gi, keep)
		if err != nil {
			return nil, err
		}
		filtered = append(filtered, fg)
	}

	if commandVisible && wtx.HasGroup(components.SignersGroup) {
		gi := wtx.byIndex[components.SignersGroup]
		all := make([]int, len(wtx.groups[gi].Components))
		for i := range all {
			all[i] = i
		}
		fg, err := filterGroup(wtx, gi, all)
		if err != nil {
			return nil, err
		}
		filtered = append(filtered, fg)
	}

	return NewFilteredTransaction(wtx.id, filtered, wtx.groupHashes, wtx.ds, WithDecoder(o.decoder))
}

func filterGroup(wtx *WireTransaction, gi int, keep []int) (FilteredComponentGroup, error) {
	g := wtx.groups[gi]
	tree := wtx.trees[gi]
	leaves := tree.Leaves()

	fg := FilteredComponentGroup{
		GroupIndex: g.GroupIndex,
		Components: make([][]byte, len(keep)),
		Nonces:     make([]crypto.SecureHash, len(keep)),
	}
	included := make([]crypto.SecureHash, len(keep))
	for j, i := range keep {
		fg.Components[j] = append([]byte(nil), g.Components[i]...)
		fg.Nonces[j] = wtx.nonces[gi][i]
		included[j] = leaves[i]
	}

	pt, err := merkle.BuildPartial(tree, included)
	if err != nil {
		return FilteredComponentGroup{}, fmt.Errorf("group %s: %w", g.GroupIndex, err)
	}
	fg.PartialTree = pt
	return fg, nil
}

func signersOf(d ComponentDecoder, entries [][]byte) ([][]crypto.Key, error) {
	out := make([][]crypto.Key, len(entries))
	for i, b := range entries {
		keys, err := d.DecodeSigners(b)
		if err != nil {
			return nil, &components.DecodeError{Group: components.SignersGroup, Index: i, Cause: err}
		}
		out[i] = keys
	}
	return out, nil
}

// NewFilteredTransaction assembles a filtered transaction from its parts,
// for example after decoding one from the wire. It checks the structure:
// one algorithm throughout, groups unique and non-empty, components, nonces
// and included leaves of equal count, and every group index covered by
// groupHashes. It does not check hashes; call Verify for that.
func NewFilteredTransaction(id crypto.SecureHash, groups []FilteredComponentGroup, groupHashes []crypto.SecureHash, ds *crypto.DigestService, opts ...Option) (*FilteredTransaction, error) {
	o := buildOptions(opts)

	if err := ds.Check(id); err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}
	if len(groupHashes) == 0 {
		return nil, &FilteredTransactionVerificationError{Message: "no group hashes"}
	}
	for i, h := range groupHashes {
		if err := ds.Check(h); err != nil {
			return nil, fmt.Errorf("group hash %d: %w", i, err)
		}
	}

	seen := make(map[components.Group]bool, len(groups))
	for _, g := range groups {
		switch {
		case seen[g.GroupIndex]:
			return nil, &DuplicateGroupError{GroupIndex: g.GroupIndex}
		case len(g.Components) == 0:
			return nil, &EmptyFilteredTransactionError{GroupIndex: g.GroupIndex}
		case g.GroupIndex < 0 || int(g.GroupIndex) >= len(groupHashes):
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: "no group hash for this index"}
		case len(g.Nonces) != len(g.Components):
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: fmt.Sprintf("%d components but %d nonces", len(g.Components), len(g.Nonces))}
		case g.PartialTree == nil:
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: "missing partial tree"}
		case g.PartialTree.IncludedCount() != len(g.Components):
			return nil, &InvalidGroupError{GroupIndex: g.GroupIndex, Message: fmt.Sprintf("%d components but %d visible leaves", len(g.Components), g.PartialTree.IncludedCount())}
		}
		for i, n := range g.Nonces {
			if err := ds.Check(n); err != nil {
				return nil, fmt.Errorf("group %s nonce %d: %w", g.GroupIndex, i, err)
			}
		}
		seen[g.GroupIndex] = true
	}

	return newFilteredTransaction(id, groups, groupHashes, ds, o.decoder), nil
}

// newFilteredTransaction copies its inputs without checking them.
func newFilteredTransaction(id crypto.SecureHash, groups []FilteredComponentGroup, groupHashes []crypto.SecureHash, ds *crypto.DigestService, decoder ComponentDecoder) *FilteredTransaction {
	ftx := &FilteredTransaction{
		id:          id,
		groups:      make([]FilteredComponentGroup, len(groups)),
		groupHashes: append([]crypto.SecureHash(nil), groupHashes...),
		ds:          ds,
		decoder:     decoder,
	}
	for i, g := range groups {
		ftx.groups[i] = cloneFiltered(g)
	}
	sort.Slice(ftx.groups, func(i, j int) bool {
		return ftx.groups[i].GroupIndex < ftx.groups[j].GroupIndex
	})
	return ftx
}

func cloneFiltered(g FilteredComponentGroup) FilteredComponentGroup {
	out := FilteredComponentGroup{
		GroupIndex:  g.GroupIndex,
		Components:  make([][]byte, len(g.Components)),
		Nonces:      append([]crypto.SecureHash(nil), g.Nonces...),
		PartialTree: g.PartialTree,
	}
	for i, c := range g.Components {
		out.Components[i] = append([]byte(nil), c...)
	}
	return out
}

// ID returns the id of the original transaction.
func (f *FilteredTransaction) ID() crypto.SecureHash { return f.id }

// DigestService returns the digest the transaction is committed with.
func (f *FilteredTransaction) DigestService() *crypto.DigestService { return f.ds }

// GroupHashes returns the roots of all groups of the original transaction.
func (f *FilteredTransaction) GroupHashes() []crypto.SecureHash {
	return append([]crypto.SecureHash(nil), f.groupHashes...)
}

// FilteredGroups returns copies of the disclosed groups ordered by index.
// Partial trees are shared; they are immutable.
func (f *FilteredTransaction) FilteredGroups() []FilteredComponentGroup {
	out := make([]FilteredComponentGroup, len(f.groups))
	for i, g := range f.groups {
		out[i] = cloneFiltered(g)
	}
	return out
}

// FilteredGroup returns the disclosed part of group g.
func (f *FilteredTransaction) FilteredGroup(g components.Group) (FilteredComponentGroup, bool) {
	fg, ok := f.group(g)
	if !ok {
		return FilteredComponentGroup{}, false
	}
	return cloneFiltered(*fg), true
}

func (f *FilteredTransaction) group(g components.Group) (*FilteredComponentGroup, bool) {
	for i := range f.groups {
		if f.groups[i].GroupIndex == g {
			return &f.groups[i], true
		}
	}
	return nil, false
}

func (f *FilteredTransaction) String() string {
	return fmt.Sprintf("FilteredTransaction(id=%s, groups=%d/%d)", f.id, len(f.groups), len(f.groupHashes))
}

// Verify checks every disclosed group against its root and the group roots
// against the id. If commands are disclosed the signers group must be
// disclosed in full. All failures are *FilteredTransactionVerificationError.
// A proof that cannot be evaluated at all wraps *merkle.MalformedPartialTreeError,
// so callers tell it apart from a hash mismatch with errors.As; a mismatch
// never wraps it.
func (f *FilteredTransaction) Verify() error {
	for _, g := range f.groups {
		if int(g.GroupIndex) >= len(f.groupHashes) || g.GroupIndex < 0 {
			return &FilteredTransactionVerificationError{Message: fmt.Sprintf("group %s has no group hash", g.GroupIndex)}
		}
		if len(g.Nonces) != len(g.Components) {
			return &FilteredTransactionVerificationError{Message: fmt.Sprintf("group %s has %d components but %d nonces", g.GroupIndex, len(g.Components), len(g.Nonces))}
		}
		if g.PartialTree == nil {
			return &FilteredTransactionVerificationError{Message: fmt.Sprintf("group %s has no partial tree", g.GroupIndex)}
		}

		ok, err := g.PartialTree.VerifyLeaves(f.groupHashes[g.GroupIndex], g.leafHashes(f.ds), f.ds)
		if err != nil {
			return &FilteredTransactionVerificationError{Message: fmt.Sprintf("group %s proof is malformed", g.GroupIndex), Cause: err}
		}
		if !ok {
			return &FilteredTransactionVerificationError{Message: fmt.Sprintf("group %s does not match its root hash", g.GroupIndex)}
		}
	}

	root, err := merkle.Root(f.groupHashes, f.ds)
	if err != nil {
		return &FilteredTransactionVerificationError{Message: "cannot rebuild top level tree", Cause: err}
	}
	if root != f.id {
		return &FilteredTransactionVerificationError{Message: "group hashes do not match the transaction id"}
	}

	if _, ok := f.group(components.CommandsGroup); ok {
		if err := f.CheckAllComponentsVisible(components.SignersGroup); err != nil {
			return &FilteredTransactionVerificationError{Message: "commands are disclosed without all signers", Cause: err}
		}
	}
	return nil
}

// CheckAllComponentsVisible fails unless every component of group g in the
// original transaction is disclosed. A group the original transaction did
// not have passes.
func (f *FilteredTransaction) CheckAllComponentsVisible(g components.Group) error {
	fg, ok := f.group(g)
	if !ok {
		if g < 0 || int(g) >= len(f.groupHashes) || f.groupHashes[g] == f.ds.AllOnesHash() {
			return nil
		}
		return &ComponentVisibilityError{GroupIndex: g, Message: "group is present in the transaction but no components were disclosed"}
	}

	if int(g) >= len(f.groupHashes) {
		return &ComponentVisibilityError{GroupIndex: g, Message: "group has no group hash"}
	}
	if len(fg.Nonces) != len(fg.Components) {
		return &ComponentVisibilityError{GroupIndex: g, Message: "components and nonces differ in length"}
	}

	root, err := merkle.Root(fg.leafHashes(f.ds), f.ds)
	if err != nil {
		return &ComponentVisibilityError{GroupIndex: g, Message: "cannot rebuild group tree", Cause: err}
	}
	if root != f.groupHashes[g] {
		return &ComponentVisibilityError{GroupIndex: g, Message: "some components are not disclosed"}
	}

	top, err := merkle.Root(f.groupHashes, f.ds)
	if err != nil {
		return &ComponentVisibilityError{GroupIndex: g, Message: "cannot rebuild top level tree", Cause: err}
	}
	if top != f.id {
		return &ComponentVisibilityError{GroupIndex: g, Message: "group hashes do not match the transaction id"}
	}
	return nil
}

// CheckCommandVisibility fails unless every command key must sign is
// disclosed. The number of such commands is counted from the fully
// disclosed signers group, so commands hidden from the filtered view are
// still accounted for.
func (f *FilteredTransaction) CheckCommandVisibility(key crypto.Key) error {
	if err := f.CheckAllComponentsVisible(components.SignersGroup); err != nil {
		return err
	}

	signers, err := f.signers()
	if err != nil {
		return &ComponentVisibilityError{GroupIndex: components.SignersGroup, Message: "cannot decode signers", Cause: err}
	}

	expected := 0
	for _, keys := range signers {
		if containsKey(keys, key) {
			expected++
		}
	}

	received := 0
	if fg, ok := f.group(components.CommandsGroup); ok {
		positions, err := f.positions(fg)
		if err != nil {
			return &ComponentVisibilityError{GroupIndex: components.CommandsGroup, Message: "cannot locate commands", Cause: err}
		}
		for _, p := range positions {
			if p >= len(signers) {
				return &ComponentVisibilityError{GroupIndex: components.CommandsGroup, Message: fmt.Sprintf("command %d has no signers entry", p)}
			}
			if containsKey(signers[p], key) {
				received++
			}
		}
	}

	if received != expected {
		return &ComponentVisibilityError{
			GroupIndex: components.CommandsGroup,
			Message:    fmt.Sprintf("key %s signs %d commands but %d are disclosed", key, expected, received),
		}
	}
	return nil
}

// positions maps each disclosed component of fg to its index in the
// original group.
func (f *FilteredTransaction) positions(fg *FilteredComponentGroup) ([]int, error) {
	leaves := fg.leafHashes(f.ds)
	out := make([]int, len(leaves))
	for i, leaf := range leaves {
		p, err := fg.PartialTree.LeafIndex(leaf)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (f *FilteredTransaction) signers() ([][]crypto.Key, error) {
	fg, ok := f.group(components.SignersGroup)
	if !ok {
		return nil, nil
	}
	return signersOf(f.decoder, fg.Components)
}

func containsKey(keys []crypto.Key, key crypto.Key) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Decoded views. Each returns only the disclosed components.

func (f *FilteredTransaction) decodeView(g components.Group) ([][]byte, func(int) int, error) {
	fg, ok := f.group(g)
	if !ok {
		return nil, identity, nil
	}
	positions, err := f.positions(fg)
	if err != nil {
		return nil, nil, err
	}
	return fg.Components, func(i int) int { return positions[i] }, nil
}

func filteredView[T components.Component](f *FilteredTransaction, g components.Group) ([]T, error) {
	comps, pos, err := f.decodeView(g)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](f.decoder, g, comps, pos)
}

// Inputs decodes the disclosed inputs.
func (f *FilteredTransaction) Inputs() ([]components.StateRef, error) {
	return filteredView[components.StateRef](f, components.InputsGroup)
}

// Outputs decodes the disclosed outputs.
func (f *FilteredTransaction) Outputs() ([]components.TransactionState, error) {
	return filteredView[components.TransactionState](f, components.OutputsGroup)
}

// References decodes the disclosed references.
func (f *FilteredTransaction) References() ([]components.ReferenceStateRef, error) {
	return filteredView[components.ReferenceStateRef](f, components.ReferencesGroup)
}

// Attachments decodes the disclosed attachment ids.
func (f *FilteredTransaction) Attachments() ([]components.AttachmentID, error) {
	return filteredView[components.AttachmentID](f, components.AttachmentsGroup)
}

// Commands decodes the disclosed commands. Signers are attached when the
// signers group is disclosed.
func (f *FilteredTransaction) Commands() ([]components.Command, error) {
	fg, ok := f.group(components.CommandsGroup)
	if !ok {
		return nil, nil
	}
	positions, err := f.positions(fg)
	if err != nil {
		return nil, err
	}
	cmds, err := decodeAll[components.Command](f.decoder, components.CommandsGroup, fg.Components, func(i int) int { return positions[i] })
	if err != nil {
		return nil, err
	}
	signers, err := f.signers()
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		if positions[i] < len(signers) {
			cmds[i].Signers = signers[positions[i]]
		}
	}
	return cmds, nil
}

// Opaque returns the disclosed components of a group this version does not
// understand.
func (f *FilteredTransaction) Opaque(g components.Group) ([]components.Opaque, error) {
	return filteredView[components.Opaque](f, g)
}

// Notary decodes the notary if it is disclosed.
func (f *FilteredTransaction) Notary() (*components.Notary, error) {
	return filteredSingle[components.Notary](f, components.NotaryGroup)
}

// TimeWindow decodes the time window if it is disclosed.
func (f *FilteredTransaction) TimeWindow() (*components.TimeWindow, error) {
	return filteredSingle[components.TimeWindow](f, components.TimeWindowGroup)
}

// NetworkParametersHash decodes the parameters hash if it is disclosed.
func (f *FilteredTransaction) NetworkParametersHash() (*components.NetworkParametersHash, error) {
	return filteredSingle[components.NetworkParametersHash](f, components.ParametersGroup)
}

func filteredSingle[T components.Component](f *FilteredTransaction, g components.Group) (*T, error) {
	out, err := filteredView[T](f, g)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}
