package transactions

import (
	"sort"

	"github.com/suffix-labs/txmerkle/pkg/components"
)

// ComponentGroup is an ordered list of serialized components sharing one
// group index. The order of Components is committed to; the order of groups
// within a transaction is not.
type ComponentGroup struct {
	GroupIndex components.Group
	Components [][]byte
}

// NewComponentGroup returns a group over the given components.
func NewComponentGroup(index components.Group, comps ...[]byte) ComponentGroup {
	return ComponentGroup{GroupIndex: index, Components: comps}
}

func (g ComponentGroup) clone() ComponentGroup {
	out := ComponentGroup{GroupIndex: g.GroupIndex, Components: make([][]byte, len(g.Components))}
	for i, c := range g.Components {
		out.Components[i] = append([]byte(nil), c...)
	}
	return out
}

func sortGroups(groups []ComponentGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].GroupIndex < groups[j].GroupIndex
	})
}
