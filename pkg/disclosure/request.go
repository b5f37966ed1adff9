// Package disclosure implements disclosure request URIs, which name the
// parts of a transaction a counterparty wants to see.
//
// URI Format:
//
//	disclose:?group=outputs&command=Move&signer=<hex key>
//
// Parameters may repeat. A component is disclosed if any parameter selects
// it:
//   - group: every component of a group, by name or index
//   - command: commands with this name
//   - signer: commands that key must sign
//   - contract: outputs governed by this contract
//   - state: the input or reference "<tx hash>:<output index>"
//
// Components of groups this version does not understand can be selected
// by position with indexed parameters:
//
//	disclose:?group.1=11&index.1=0,2&group.2=12&index.2=5
//
// Signers are never selected directly. They are disclosed with the
// commands.
package disclosure

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/transactions"
)

// Scheme is the URI scheme of disclosure requests.
const Scheme = "disclose"

// maxIndex bounds the N of indexed parameters.
const maxIndex = 9999

// Request is a parsed disclosure request.
type Request struct {
	Groups    []components.Group    // Whole groups
	Commands  []string              // Command names
	Signers   []crypto.Key          // Commands signed by any of these keys
	Contracts []string              // Outputs by contract
	States    []components.StateRef // Specific inputs or references
	Positions []Selection           // Positions within unknown groups
}

// Selection picks components of an unknown group by position.
type Selection struct {
	Group   components.Group
	Indices []int
}

// Parse parses a disclosure request URI, with or without the scheme.
//
// Example:
//
//	req, err := disclosure.Parse("disclose:?group=outputs&command=Move")
func Parse(uri string) (*Request, error) {
	uri = strings.TrimPrefix(uri, Scheme+":")
	uri = strings.TrimPrefix(uri, "?")

	params, err := url.ParseQuery(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid query string: %w", err)
	}

	req := &Request{}
	indexed := make(map[int]bool)

	for name, values := range params {
		if idx := extractIndex(name); idx >= 0 {
			indexed[idx] = true
			continue
		}
		for _, v := range values {
			if err := req.addParam(name, v); err != nil {
				return nil, err
			}
		}
	}

	indices := make([]int, 0, len(indexed))
	for idx := range indexed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		sel, err := parseSelection(params, idx)
		if err != nil {
			return nil, err
		}
		req.Positions = append(req.Positions, sel)
	}

	req.normalize()
	if req.IsEmpty() {
		return nil, fmt.Errorf("disclosure request selects nothing")
	}
	return req, nil
}

func (r *Request) addParam(name, value string) error {
	switch name {
	case "group":
		g, err := components.ParseGroup(value)
		if err != nil {
			return err
		}
		if g == components.SignersGroup {
			return fmt.Errorf("signers cannot be requested directly; request the commands")
		}
		r.Groups = append(r.Groups, g)
	case "command":
		if value == "" {
			return fmt.Errorf("empty command name")
		}
		r.Commands = append(r.Commands, value)
	case "signer":
		pub, err := crypto.ParsePublicKeyHex(value)
		if err != nil {
			return fmt.Errorf("invalid signer: %w", err)
		}
		r.Signers = append(r.Signers, pub.Key())
	case "contract":
		if value == "" {
			return fmt.Errorf("empty contract name")
		}
		r.Contracts = append(r.Contracts, value)
	case "state":
		ref, err := parseStateRef(value)
		if err != nil {
			return err
		}
		r.States = append(r.States, ref)
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

// parseSelection reads group.N and index.N.
func parseSelection(params url.Values, idx int) (Selection, error) {
	for name := range params {
		if i := extractIndex(name); i == idx {
			if base := name[:strings.IndexByte(name, '.')]; base != "group" && base != "index" {
				return Selection{}, fmt.Errorf("unknown parameter %q", name)
			}
		}
	}

	groupStr := params.Get(fmt.Sprintf("group.%d", idx))
	if groupStr == "" {
		return Selection{}, fmt.Errorf("selection %d missing group", idx)
	}
	g, err := components.ParseGroup(groupStr)
	if err != nil {
		return Selection{}, fmt.Errorf("selection %d: %w", idx, err)
	}
	if g.IsKnown() {
		return Selection{}, fmt.Errorf("selection %d: positions can only select groups this version does not know, got %s", idx, g)
	}

	indexStr := params.Get(fmt.Sprintf("index.%d", idx))
	if indexStr == "" {
		return Selection{}, fmt.Errorf("selection %d missing index", idx)
	}
	sel := Selection{Group: g}
	for _, part := range strings.Split(indexStr, ",") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Selection{}, fmt.Errorf("selection %d: invalid index %q", idx, part)
		}
		sel.Indices = append(sel.Indices, n)
	}
	return sel, nil
}

// extractIndex extracts the index from a parameter name.
//
// Examples:
//   - "group.1" -> 1
//   - "index.42" -> 42
//   - "group" -> -1 (no index)
func extractIndex(paramName string) int {
	parts := strings.Split(paramName, ".")
	if len(parts) != 2 {
		return -1
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 1 || idx > maxIndex {
		return -1
	}
	return idx
}

func parseStateRef(s string) (components.StateRef, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return components.StateRef{}, fmt.Errorf("invalid state %q: want <tx hash>:<index>", s)
	}
	h, err := crypto.ParseSecureHash(s[:i])
	if err != nil {
		return components.StateRef{}, fmt.Errorf("invalid state %q: %w", s, err)
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return components.StateRef{}, fmt.Errorf("invalid state %q: %w", s, err)
	}
	return components.StateRef{TxHash: h, Index: uint32(n)}, nil
}

func (r *Request) normalize() {
	sort.Slice(r.Groups, func(i, j int) bool { return r.Groups[i] < r.Groups[j] })
	sort.Strings(r.Commands)
	sort.Strings(r.Contracts)
	sort.Slice(r.Signers, func(i, j int) bool { return r.Signers[i].String() < r.Signers[j].String() })
	sort.Slice(r.States, func(i, j int) bool { return formatStateRef(r.States[i]) < formatStateRef(r.States[j]) })
}

// IsEmpty reports whether the request selects nothing.
func (r *Request) IsEmpty() bool {
	return len(r.Groups) == 0 && len(r.Commands) == 0 && len(r.Signers) == 0 &&
		len(r.Contracts) == 0 && len(r.States) == 0 && len(r.Positions) == 0
}

// Predicate returns the visibility predicate the request describes.
func (r *Request) Predicate() transactions.VisibilityPredicate {
	groups := make(map[components.Group]bool, len(r.Groups))
	for _, g := range r.Groups {
		groups[g] = true
	}
	commands := toSet(r.Commands)
	contracts := toSet(r.Contracts)
	signers := make(map[crypto.Key]bool, len(r.Signers))
	for _, k := range r.Signers {
		signers[k] = true
	}
	states := make(map[components.StateRef]bool, len(r.States))
	for _, s := range r.States {
		states[s] = true
	}
	positions := make(map[components.Group]map[int]bool)
	for _, sel := range r.Positions {
		if positions[sel.Group] == nil {
			positions[sel.Group] = make(map[int]bool)
		}
		for _, i := range sel.Indices {
			positions[sel.Group][i] = true
		}
	}

	return func(c components.Component) bool {
		if groups[c.Group()] {
			return true
		}
		switch x := c.(type) {
		case components.Command:
			if commands[x.Name] {
				return true
			}
			for _, k := range x.Signers {
				if signers[k] {
					return true
				}
			}
		case components.TransactionState:
			return contracts[x.Contract]
		case components.StateRef:
			return states[x]
		case components.ReferenceStateRef:
			return states[x.StateRef]
		case components.Opaque:
			return positions[x.GroupIndex][x.Index]
		}
		return false
	}
}

// Encode renders the request as a URI. Parameters are sorted, so equal
// requests encode identically.
func (r *Request) Encode() string {
	params := url.Values{}
	for _, g := range r.Groups {
		params.Add("group", groupParam(g))
	}
	for _, c := range r.Commands {
		params.Add("command", c)
	}
	for _, k := range r.Signers {
		params.Add("signer", k.String())
	}
	for _, c := range r.Contracts {
		params.Add("contract", c)
	}
	for _, s := range r.States {
		params.Add("state", formatStateRef(s))
	}
	for i, sel := range r.Positions {
		idx := make([]string, len(sel.Indices))
		for j, n := range sel.Indices {
			idx[j] = strconv.Itoa(n)
		}
		params.Set(fmt.Sprintf("group.%d", i+1), strconv.Itoa(int(sel.Group)))
		params.Set(fmt.Sprintf("index.%d", i+1), strings.Join(idx, ","))
	}
	return Scheme + ":?" + params.Encode()
}

func groupParam(g components.Group) string {
	if g.IsKnown() {
		return g.String()
	}
	return strconv.Itoa(int(g))
}

func formatStateRef(s components.StateRef) string {
	return fmt.Sprintf("%s:%d", s.TxHash, s.Index)
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
