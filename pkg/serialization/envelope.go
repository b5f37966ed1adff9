// Package serialization implements the binary envelopes for wire and
// filtered transactions.
//
// Both envelopes share one layout:
//
//	magic (4 bytes) || version (u32le) || CBOR body
//
// The magic is "TXWT" for wire transactions and "TXFT" for filtered
// transactions. Bodies use CBOR core deterministic encoding with every
// struct encoded as an array, so equal transactions serialize to equal
// bytes.
//
// Parsing never trusts derived values. A wire transaction's id and group
// roots are recomputed from its components and salt. A filtered
// transaction is checked structurally on parse; callers still run Verify
// before relying on it.
package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/merkle"
	"github.com/suffix-labs/txmerkle/pkg/transactions"
)

// Envelope format: magic || version (u32le) || CBOR body

const (
	WireMagic     = "TXWT"
	FilteredMagic = "TXFT"
	Version1      = uint32(1)

	headerSize = 8
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type groupBody struct {
	_          struct{} `cbor:",toarray"`
	Index      int
	Components [][]byte
}

type wireBody struct {
	_         struct{} `cbor:",toarray"`
	Algorithm string
	Salt      []byte
	Groups    []groupBody
}

type nodeBody struct {
	_    struct{} `cbor:",toarray"`
	Kind uint8
	Hash []byte // empty for branches
}

type filteredGroupBody struct {
	_          struct{} `cbor:",toarray"`
	Index      int
	Components [][]byte
	Nonces     [][]byte
	Nodes      []nodeBody
}

type filteredBody struct {
	_           struct{} `cbor:",toarray"`
	Algorithm   string
	ID          []byte
	GroupHashes [][]byte
	Groups      []filteredGroupBody
}

// SerializeWireTransaction encodes wtx.
// Format: "TXWT" || I2LEOSP_32(1) || CBOR(wireBody)
func SerializeWireTransaction(wtx *transactions.WireTransaction) ([]byte, error) {
	body := wireBody{
		Algorithm: wtx.DigestService().Name(),
		Salt:      wtx.PrivacySalt(),
	}
	for _, g := range wtx.ComponentGroups() {
		body.Groups = append(body.Groups, groupBody{Index: int(g.GroupIndex), Components: g.Components})
	}
	return seal(WireMagic, body)
}

// ParseWireTransaction decodes a wire transaction and recomputes its id.
// The digest algorithm named in the envelope is resolved through registry.
func ParseWireTransaction(data []byte, registry *crypto.Registry, opts ...transactions.Option) (*transactions.WireTransaction, error) {
	var body wireBody
	if err := open(data, WireMagic, &body); err != nil {
		return nil, err
	}

	ds, err := registry.Service(body.Algorithm)
	if err != nil {
		return nil, &ParseError{Message: "unknown digest algorithm", Cause: err}
	}

	groups := make([]transactions.ComponentGroup, len(body.Groups))
	for i, g := range body.Groups {
		groups[i] = transactions.ComponentGroup{GroupIndex: components.Group(g.Index), Components: g.Components}
	}

	wtx, err := transactions.NewWireTransaction(groups, body.Salt, ds, opts...)
	if err != nil {
		return nil, &ParseError{Message: "invalid wire transaction", Cause: err}
	}
	return wtx, nil
}

// SerializeFilteredTransaction encodes ftx.
// Format: "TXFT" || I2LEOSP_32(1) || CBOR(filteredBody)
func SerializeFilteredTransaction(ftx *transactions.FilteredTransaction) ([]byte, error) {
	body := filteredBody{
		Algorithm: ftx.DigestService().Name(),
		ID:        ftx.ID().Bytes(),
	}
	for _, h := range ftx.GroupHashes() {
		body.GroupHashes = append(body.GroupHashes, h.Bytes())
	}
	for _, g := range ftx.FilteredGroups() {
		gb := filteredGroupBody{Index: int(g.GroupIndex), Components: g.Components}
		for _, n := range g.Nonces {
			gb.Nonces = append(gb.Nonces, n.Bytes())
		}
		for _, n := range g.PartialTree.Nodes() {
			gb.Nodes = append(gb.Nodes, nodeBody{Kind: uint8(n.Kind), Hash: n.Hash.Bytes()})
		}
		body.Groups = append(body.Groups, gb)
	}
	return seal(FilteredMagic, body)
}

// ParseFilteredTransaction decodes a filtered transaction and checks its
// structure. It does not verify it.
func ParseFilteredTransaction(data []byte, registry *crypto.Registry, opts ...transactions.Option) (*transactions.FilteredTransaction, error) {
	var body filteredBody
	if err := open(data, FilteredMagic, &body); err != nil {
		return nil, err
	}

	ds, err := registry.Service(body.Algorithm)
	if err != nil {
		return nil, &ParseError{Message: "unknown digest algorithm", Cause: err}
	}
	hash := func(b []byte) crypto.SecureHash { return crypto.NewSecureHash(body.Algorithm, b) }

	groupHashes := make([]crypto.SecureHash, len(body.GroupHashes))
	for i, h := range body.GroupHashes {
		groupHashes[i] = hash(h)
	}

	groups := make([]transactions.FilteredComponentGroup, len(body.Groups))
	for i, g := range body.Groups {
		nodes := make([]merkle.FlatNode, len(g.Nodes))
		for j, n := range g.Nodes {
			nodes[j] = merkle.FlatNode{Kind: merkle.NodeKind(n.Kind)}
			if len(n.Hash) > 0 {
				nodes[j].Hash = hash(n.Hash)
			}
		}
		pt, err := merkle.PartialTreeFromNodes(nodes)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("group %d partial tree", g.Index), Cause: err}
		}

		nonces := make([]crypto.SecureHash, len(g.Nonces))
		for j, n := range g.Nonces {
			nonces[j] = hash(n)
		}
		groups[i] = transactions.FilteredComponentGroup{
			GroupIndex:  components.Group(g.Index),
			Components:  g.Components,
			Nonces:      nonces,
			PartialTree: pt,
		}
	}

	ftx, err := transactions.NewFilteredTransaction(hash(body.ID), groups, groupHashes, ds, opts...)
	if err != nil {
		return nil, &ParseError{Message: "invalid filtered transaction", Cause: err}
	}
	return ftx, nil
}

func seal(magic string, body any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(magic)
	if err := binary.Write(buf, binary.LittleEndian, Version1); err != nil {
		return nil, err
	}

	encoded, err := encMode.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cbor encode failed: %w", err)
	}
	buf.Write(encoded)
	return buf.Bytes(), nil
}

func open(data []byte, magic string, body any) error {
	if len(data) < headerSize {
		return &ParseError{Message: "data too short"}
	}
	if string(data[0:4]) != magic {
		return &ParseError{Message: "invalid magic bytes"}
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != Version1 {
		return &ParseError{Message: fmt.Sprintf("unsupported version: %d", version)}
	}
	if err := decMode.Unmarshal(data[headerSize:], body); err != nil {
		return &ParseError{Message: "cbor decode failed", Cause: err}
	}
	return nil
}

// Kind reports which envelope data holds, or "" if neither.
func Kind(data []byte) string {
	if len(data) < headerSize {
		return ""
	}
	switch string(data[0:4]) {
	case WireMagic, FilteredMagic:
		return string(data[0:4])
	}
	return ""
}
