// Package components defines the typed view of transaction components.
//
// A transaction stores every component as opaque bytes inside an indexed
// group. This package names the known groups, gives each kind of component a
// Go type, and converts between the two with a deterministic CBOR codec.
//
// Group layout:
//
//	0 inputs       StateRef
//	1 outputs      TransactionState
//	2 commands     Command (signers live in group 6)
//	3 attachments  AttachmentID
//	4 notary       Notary (at most one)
//	5 time window  TimeWindow (at most one)
//	6 signers      Signers, parallel to commands
//	7 references   ReferenceStateRef
//	8 parameters   NetworkParametersHash (at most one)
//
// Indices from 9 upwards belong to future versions. They decode as Opaque
// and must be carried through unchanged.
package components

import (
	"fmt"
	"strconv"
)

// Group is a component group index.
type Group int

const (
	InputsGroup Group = iota
	OutputsGroup
	CommandsGroup
	AttachmentsGroup
	NotaryGroup
	TimeWindowGroup
	SignersGroup
	ReferencesGroup
	ParametersGroup

	// KnownGroupCount is the number of groups this version understands.
	KnownGroupCount = int(ParametersGroup) + 1
)

var groupNames = [...]string{
	InputsGroup:      "inputs",
	OutputsGroup:     "outputs",
	CommandsGroup:    "commands",
	AttachmentsGroup: "attachments",
	NotaryGroup:      "notary",
	TimeWindowGroup:  "timewindow",
	SignersGroup:     "signers",
	ReferencesGroup:  "references",
	ParametersGroup:  "parameters",
}

// IsKnown reports whether g is one of the groups above.
func (g Group) IsKnown() bool {
	return g >= 0 && int(g) < KnownGroupCount
}

// IsSingleton reports whether the group may hold at most one component.
func (g Group) IsSingleton() bool {
	return g == NotaryGroup || g == TimeWindowGroup || g == ParametersGroup
}

func (g Group) String() string {
	if g.IsKnown() {
		return groupNames[g]
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// ParseGroup accepts a group name or a decimal index.
func ParseGroup(s string) (Group, error) {
	for i, name := range groupNames {
		if name == s {
			return Group(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("unknown component group %q", s)
	}
	return Group(n), nil
}
