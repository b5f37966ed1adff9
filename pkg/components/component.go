package components

import (
	"time"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Component is a decoded transaction component. The set of implementations
// is closed; unknown groups decode as Opaque.
type Component interface {
	// Group returns the group the component belongs to.
	Group() Group
	component()
}

// StateRef points at an output of an earlier transaction.
type StateRef struct {
	TxHash crypto.SecureHash // Id of the producing transaction
	Index  uint32            // Output position within it
}

// ReferenceStateRef is a StateRef read by the transaction but not consumed.
type ReferenceStateRef struct {
	StateRef
}

// Party is a named identity holding a signing key.
type Party struct {
	Name string
	Key  crypto.Key
}

// TransactionState is an output.
type TransactionState struct {
	Contract string // Contract the state is governed by
	Data     []byte // Contract-specific state payload
	Notary   Party  // Notary the state is bound to
}

// Command is an instruction to a contract together with the keys that must
// sign for it. Signers is populated from the signers group when a
// transaction is decoded and is never part of the command's own bytes.
type Command struct {
	Name    string
	Data    []byte
	Signers []crypto.Key
}

// HasSigner reports whether key is one of the command's signers.
func (c Command) HasSigner(key crypto.Key) bool {
	for _, s := range c.Signers {
		if s == key {
			return true
		}
	}
	return false
}

// AttachmentID references an attachment by content hash.
type AttachmentID struct {
	ID crypto.SecureHash
}

// Notary names the transaction's notary.
type Notary struct {
	Party
}

// TimeWindow bounds when the transaction may be notarised. A zero bound is
// open.
type TimeWindow struct {
	From  time.Time
	Until time.Time
}

// Contains reports whether t falls inside the window. From is inclusive,
// Until exclusive.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && !t.Before(w.Until) {
		return false
	}
	return true
}

// NetworkParametersHash pins the network parameters the transaction was
// built against.
type NetworkParametersHash struct {
	Hash crypto.SecureHash
}

// Signers is one entry of the signers group, parallel to the command at the
// same position.
type Signers struct {
	Keys []crypto.Key
}

// Opaque is a component of a group this version does not understand.
type Opaque struct {
	GroupIndex Group
	Index      int
	Bytes      []byte
}

func (StateRef) Group() Group              { return InputsGroup }
func (ReferenceStateRef) Group() Group     { return ReferencesGroup }
func (TransactionState) Group() Group      { return OutputsGroup }
func (Command) Group() Group               { return CommandsGroup }
func (AttachmentID) Group() Group          { return AttachmentsGroup }
func (Notary) Group() Group                { return NotaryGroup }
func (TimeWindow) Group() Group            { return TimeWindowGroup }
func (NetworkParametersHash) Group() Group { return ParametersGroup }
func (Signers) Group() Group               { return SignersGroup }
func (o Opaque) Group() Group              { return o.GroupIndex }

func (StateRef) component()              {}
func (ReferenceStateRef) component()     {}
func (TransactionState) component()      {}
func (Command) component()               {}
func (AttachmentID) component()          {}
func (Notary) component()                {}
func (TimeWindow) component()            {}
func (NetworkParametersHash) component() {}
func (Signers) component()               {}
func (Opaque) component()                {}
