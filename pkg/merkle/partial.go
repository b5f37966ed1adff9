package merkle

import (
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// MaxDepth bounds the depth of a partial tree. It is far above any tree this
// module builds and stops adversarial inputs from recursing without limit.
const MaxDepth = 64

// NodeKind identifies the role of a PartialNode.
type NodeKind uint8

const (
	// IncludedLeaf is a disclosed leaf.
	IncludedLeaf NodeKind = iota + 1
	// PrunedHash stands in for a subtree with no disclosed leaves.
	PrunedHash
	// Branch combines two children.
	Branch
)

func (k NodeKind) String() string {
	switch k {
	case IncludedLeaf:
		return "included-leaf"
	case PrunedHash:
		return "pruned-hash"
	case Branch:
		return "branch"
	default:
		return "unknown"
	}
}

// PartialNode is one node of a partial tree. Leaf kinds carry Hash; Branch
// carries Left and Right.
type PartialNode struct {
	Kind  NodeKind
	Hash  crypto.SecureHash
	Left  *PartialNode
	Right *PartialNode
}

// PartialTree reveals a subset of a tree's leaves together with the sibling
// hashes needed to recompute its root.
type PartialTree struct {
	root *PartialNode
}

// NewPartialTree wraps an existing node structure. The structure is checked
// when the tree is evaluated.
func NewPartialTree(root *PartialNode) *PartialTree {
	return &PartialTree{root: root}
}

// BuildPartial prunes tree down to the leaves in include.
func BuildPartial(tree *Tree, include []crypto.SecureHash) (*PartialTree, error) {
	leaves := make(map[crypto.SecureHash]struct{}, tree.LeafCount())
	for _, leaf := range tree.levels[0] {
		leaves[leaf] = struct{}{}
	}

	included := make(map[crypto.SecureHash]struct{}, len(include))
	for _, h := range include {
		if _, ok := leaves[h]; !ok {
			return nil, &LeafNotFoundError{Hash: h}
		}
		included[h] = struct{}{}
	}

	root, _ := buildPartial(tree, included, tree.Height(), 0)
	return &PartialTree{root: root}, nil
}

func buildPartial(tree *Tree, included map[crypto.SecureHash]struct{}, level, index int) (*PartialNode, bool) {
	h, real := tree.node(level, index)
	if !real {
		return &PartialNode{Kind: PrunedHash, Hash: h}, false
	}

	if level == 0 {
		if _, ok := included[h]; ok {
			return &PartialNode{Kind: IncludedLeaf, Hash: h}, true
		}
		return &PartialNode{Kind: PrunedHash, Hash: h}, false
	}

	left, leftIncluded := buildPartial(tree, included, level-1, 2*index)
	right, rightIncluded := buildPartial(tree, included, level-1, 2*index+1)
	if !leftIncluded && !rightIncluded {
		return &PartialNode{Kind: PrunedHash, Hash: h}, false
	}
	return &PartialNode{Kind: Branch, Left: left, Right: right}, true
}

// Root returns the root node.
func (p *PartialTree) Root() *PartialNode {
	return p.root
}

// RootHash recomputes the root from the included leaves and pruned hashes.
func (p *PartialTree) RootHash(ds *crypto.DigestService) (crypto.SecureHash, error) {
	if p == nil || p.root == nil {
		return crypto.SecureHash{}, malformed("missing root")
	}
	return rootHash(p.root, ds, 0)
}

func rootHash(n *PartialNode, ds *crypto.DigestService, depth int) (crypto.SecureHash, error) {
	if depth > MaxDepth {
		return crypto.SecureHash{}, malformed("depth exceeds %d", MaxDepth)
	}
	switch n.Kind {
	case IncludedLeaf, PrunedHash:
		if err := ds.Check(n.Hash); err != nil {
			return crypto.SecureHash{}, &MalformedPartialTreeError{Reason: "bad node hash", Err: err}
		}
		return n.Hash, nil
	case Branch:
		if n.Left == nil || n.Right == nil {
			return crypto.SecureHash{}, malformed("branch at depth %d is missing a child", depth)
		}
		left, err := rootHash(n.Left, ds, depth+1)
		if err != nil {
			return crypto.SecureHash{}, err
		}
		right, err := rootHash(n.Right, ds, depth+1)
		if err != nil {
			return crypto.SecureHash{}, err
		}
		return ds.Hash(left.Concat(right)), nil
	default:
		return crypto.SecureHash{}, malformed("unknown node kind %d at depth %d", n.Kind, depth)
	}
}

// Verify reports whether the tree recomputes to expectedRoot. An error is
// returned only when the tree is malformed.
func (p *PartialTree) Verify(expectedRoot crypto.SecureHash, ds *crypto.DigestService) (bool, error) {
	root, err := p.RootHash(ds)
	if err != nil {
		return false, err
	}
	return root == expectedRoot, nil
}

// VerifyLeaves is Verify plus a check that the included leaves are exactly
// leafHashes, in order.
func (p *PartialTree) VerifyLeaves(expectedRoot crypto.SecureHash, leafHashes []crypto.SecureHash, ds *crypto.DigestService) (bool, error) {
	ok, err := p.Verify(expectedRoot, ds)
	if err != nil || !ok {
		return false, err
	}
	included := p.IncludedHashes()
	if len(included) != len(leafHashes) {
		return false, nil
	}
	for i := range included {
		if included[i] != leafHashes[i] {
			return false, nil
		}
	}
	return true, nil
}

// IncludedHashes returns the disclosed leaves from left to right.
func (p *PartialTree) IncludedHashes() []crypto.SecureHash {
	var out []crypto.SecureHash
	p.walk(func(n *PartialNode, _ uint64, _ int) {
		out = append(out, n.Hash)
	})
	return out
}

// IncludedCount returns the number of disclosed leaves.
func (p *PartialTree) IncludedCount() int {
	count := 0
	p.walk(func(*PartialNode, uint64, int) { count++ })
	return count
}

// IncludedIndices returns the leaf positions of the disclosed leaves in
// ascending order.
func (p *PartialTree) IncludedIndices() []int {
	var out []int
	p.walk(func(_ *PartialNode, path uint64, _ int) {
		out = append(out, int(path))
	})
	return out
}

// LeafIndex returns the position of leaf in the original tree. Each branch
// on the way down contributes one bit, most significant first, with 1 for a
// right turn. A tree that is a single included leaf has index 0.
func (p *PartialTree) LeafIndex(leaf crypto.SecureHash) (int, error) {
	index := -1
	p.walk(func(n *PartialNode, path uint64, _ int) {
		if index < 0 && n.Hash == leaf {
			index = int(path)
		}
	})
	if index < 0 {
		return 0, &LeafNotFoundError{Hash: leaf}
	}
	return index, nil
}

// walk visits included leaves in order. Malformed branches are skipped;
// RootHash reports them.
func (p *PartialTree) walk(fn func(n *PartialNode, path uint64, depth int)) {
	if p == nil || p.root == nil {
		return
	}
	var visit func(n *PartialNode, path uint64, depth int)
	visit = func(n *PartialNode, path uint64, depth int) {
		if n == nil || depth > MaxDepth {
			return
		}
		switch n.Kind {
		case IncludedLeaf:
			fn(n, path, depth)
		case Branch:
			visit(n.Left, path<<1, depth+1)
			visit(n.Right, path<<1|1, depth+1)
		}
	}
	visit(p.root, 0, 0)
}

// FlatNode is one entry of a partial tree's preorder encoding.
type FlatNode struct {
	Kind NodeKind
	Hash crypto.SecureHash
}

// Nodes flattens the tree in preorder. Branches carry no hash.
func (p *PartialTree) Nodes() []FlatNode {
	var out []FlatNode
	var visit func(n *PartialNode)
	visit = func(n *PartialNode) {
		if n == nil {
			return
		}
		if n.Kind == Branch {
			out = append(out, FlatNode{Kind: Branch})
			visit(n.Left)
			visit(n.Right)
			return
		}
		out = append(out, FlatNode{Kind: n.Kind, Hash: n.Hash})
	}
	if p != nil {
		visit(p.root)
	}
	return out
}

// PartialTreeFromNodes rebuilds a tree from its preorder encoding.
func PartialTreeFromNodes(nodes []FlatNode) (*PartialTree, error) {
	if len(nodes) == 0 {
		return nil, malformed("no nodes")
	}
	pos := 0
	var read func(depth int) (*PartialNode, error)
	read = func(depth int) (*PartialNode, error) {
		if depth > MaxDepth {
			return nil, malformed("depth exceeds %d", MaxDepth)
		}
		if pos >= len(nodes) {
			return nil, malformed("truncated after %d nodes", pos)
		}
		fn := nodes[pos]
		pos++
		switch fn.Kind {
		case IncludedLeaf, PrunedHash:
			if fn.Hash.IsEmpty() {
				return nil, malformed("leaf node %d has no hash", pos-1)
			}
			return &PartialNode{Kind: fn.Kind, Hash: fn.Hash}, nil
		case Branch:
			left, err := read(depth + 1)
			if err != nil {
				return nil, err
			}
			right, err := read(depth + 1)
			if err != nil {
				return nil, err
			}
			return &PartialNode{Kind: Branch, Left: left, Right: right}, nil
		default:
			return nil, malformed("unknown node kind %d", fn.Kind)
		}
	}

	root, err := read(0)
	if err != nil {
		return nil, err
	}
	if pos != len(nodes) {
		return nil, malformed("%d trailing nodes", len(nodes)-pos)
	}
	return &PartialTree{root: root}, nil
}
