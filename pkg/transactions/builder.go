package transactions

import (
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// TransactionBuilder collects typed components and encodes them into
// component groups.
//
// Components are encoded as they are added, so encoding errors surface at
// the call that caused them. Build validates the result and computes the id.
type TransactionBuilder struct {
	ds     *crypto.DigestService         // Digest the transaction is committed with
	codec  *components.Codec             // Component encoder
	salt   PrivacySalt                   // Random if unset at Build
	groups map[components.Group][][]byte // Encoded components by group
}

// NewTransactionBuilder returns a builder using SHA-256 and the default
// codec.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		ds:     crypto.DefaultDigestService(),
		codec:  components.DefaultCodec(),
		groups: make(map[components.Group][][]byte),
	}
}

// WithDigestService selects the digest algorithm.
func (b *TransactionBuilder) WithDigestService(ds *crypto.DigestService) *TransactionBuilder {
	b.ds = ds
	return b
}

// WithPrivacySalt fixes the salt instead of generating one.
func (b *TransactionBuilder) WithPrivacySalt(salt PrivacySalt) *TransactionBuilder {
	b.salt = append(PrivacySalt(nil), salt...)
	return b
}

// AddInput consumes a state.
func (b *TransactionBuilder) AddInput(ref components.StateRef) error {
	return b.add(ref)
}

// AddReference reads a state without consuming it.
func (b *TransactionBuilder) AddReference(ref components.StateRef) error {
	return b.add(components.ReferenceStateRef{StateRef: ref})
}

// AddOutput creates a state.
func (b *TransactionBuilder) AddOutput(state components.TransactionState) error {
	return b.add(state)
}

// AddAttachment references an attachment by id.
func (b *TransactionBuilder) AddAttachment(id crypto.SecureHash) error {
	return b.add(components.AttachmentID{ID: id})
}

// AddCommand adds a command and its parallel signers entry.
func (b *TransactionBuilder) AddCommand(cmd components.Command) error {
	encoded, err := b.codec.Encode(cmd)
	if err != nil {
		return err
	}
	signers, err := b.codec.EncodeSigners(cmd.Signers)
	if err != nil {
		return err
	}
	b.groups[components.CommandsGroup] = append(b.groups[components.CommandsGroup], encoded)
	b.groups[components.SignersGroup] = append(b.groups[components.SignersGroup], signers)
	return nil
}

// SetNotary sets or replaces the notary.
func (b *TransactionBuilder) SetNotary(p components.Party) error {
	return b.set(components.Notary{Party: p})
}

// SetTimeWindow sets or replaces the time window.
func (b *TransactionBuilder) SetTimeWindow(w components.TimeWindow) error {
	return b.set(w)
}

// SetNetworkParametersHash sets or replaces the parameters hash.
func (b *TransactionBuilder) SetNetworkParametersHash(h crypto.SecureHash) error {
	return b.set(components.NetworkParametersHash{Hash: h})
}

// AddComponent appends raw bytes to a group this version does not know.
// Known groups must go through their typed methods.
func (b *TransactionBuilder) AddComponent(group components.Group, data []byte) error {
	if group.IsKnown() || group < 0 {
		return fmt.Errorf("group %s must be added through its typed method", group)
	}
	b.groups[group] = append(b.groups[group], append([]byte(nil), data...))
	return nil
}

func (b *TransactionBuilder) add(c components.Component) error {
	encoded, err := b.codec.Encode(c)
	if err != nil {
		return err
	}
	b.groups[c.Group()] = append(b.groups[c.Group()], encoded)
	return nil
}

func (b *TransactionBuilder) set(c components.Component) error {
	encoded, err := b.codec.Encode(c)
	if err != nil {
		return err
	}
	b.groups[c.Group()] = [][]byte{encoded}
	return nil
}

// Build validates the collected groups and commits to them. A random salt
// is generated when none was set.
func (b *TransactionBuilder) Build(opts ...Option) (*WireTransaction, error) {
	salt := b.salt
	if salt == nil {
		var err error
		if salt, err = NewPrivacySalt(b.ds); err != nil {
			return nil, err
		}
	}

	groups := make([]ComponentGroup, 0, len(b.groups))
	for index, comps := range b.groups {
		groups = append(groups, ComponentGroup{GroupIndex: index, Components: comps})
	}
	sortGroups(groups)

	opts = append([]Option{WithDecoder(b.codec)}, opts...)
	return NewWireTransaction(groups, salt, b.ds, opts...)
}
