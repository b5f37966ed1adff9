// Package merkle builds the binary hash trees used for transaction
// commitments and the partial trees used to disclose a subset of leaves.
//
// Adjacent nodes are combined as Hash(left || right). When a level has an odd
// number of nodes the last one is paired with the digest's zero hash; nodes
// are never duplicated. This rule fixes transaction ids across
// implementations and must not change.
package merkle

import (
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Tree is a complete Merkle tree. levels[0] holds the leaves and the last
// level holds the root alone.
type Tree struct {
	ds     *crypto.DigestService
	levels [][]crypto.SecureHash
}

// Build constructs the tree over leaves, which must all come from ds's
// algorithm.
func Build(leaves []crypto.SecureHash, ds *crypto.DigestService) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeaves
	}
	for _, leaf := range leaves {
		if err := ds.Check(leaf); err != nil {
			return nil, err
		}
	}

	level := make([]crypto.SecureHash, len(leaves))
	copy(level, leaves)
	levels := [][]crypto.SecureHash{level}

	// Legacy SHA-256 passes a lone leaf through as the root. Every other
	// algorithm pads it like any odd level.
	if len(level) == 1 && !ds.PadsSingleLeaf() {
		return &Tree{ds: ds, levels: levels}, nil
	}

	for {
		next := make([]crypto.SecureHash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := ds.ZeroHash()
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, ds.Hash(level[i].Concat(right)))
		}
		levels = append(levels, next)
		if len(next) == 1 {
			break
		}
		level = next
	}

	return &Tree{ds: ds, levels: levels}, nil
}

// Root returns the root hash.
func (t *Tree) Root() crypto.SecureHash {
	return t.levels[len(t.levels)-1][0]
}

// Leaves returns a copy of the leaf hashes, without padding.
func (t *Tree) Leaves() []crypto.SecureHash {
	out := make([]crypto.SecureHash, len(t.levels[0]))
	copy(out, t.levels[0])
	return out
}

// LeafCount returns the number of real leaves.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Height returns the number of edges between the root and a leaf.
func (t *Tree) Height() int {
	return len(t.levels) - 1
}

// DigestService returns the service the tree was built with.
func (t *Tree) DigestService() *crypto.DigestService {
	return t.ds
}

// node returns the hash at (level, index), or the zero hash where the level
// was padded.
func (t *Tree) node(level, index int) (crypto.SecureHash, bool) {
	if index < len(t.levels[level]) {
		return t.levels[level][index], true
	}
	return t.ds.ZeroHash(), false
}

// Root computes the root over leaves without keeping the tree.
func Root(leaves []crypto.SecureHash, ds *crypto.DigestService) (crypto.SecureHash, error) {
	t, err := Build(leaves, ds)
	if err != nil {
		return crypto.SecureHash{}, err
	}
	return t.Root(), nil
}
