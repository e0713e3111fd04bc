// Package merkle builds the hash tree described by a package manifest and
// answers structural queries over it.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID.
// Only internal nodes have children, and an internal node always has both.
package merkle

import (
	"fmt"
	"math/bits"

	"github.com/kk-code-lab/btide/internal/bpkg"
)

// NodeID indexes a node in a Tree's arena.
type NodeID int

// NodeKind tags a node as internal or leaf.
type NodeKind uint8

const (
	Internal NodeKind = iota + 1
	Leaf
)

func (k NodeKind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Leaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node is a populated tree node. Left and Right are meaningful only for
// internal nodes. For a leaf, Index is the chunk index in the manifest.
type Node struct {
	Kind  NodeKind
	Hash  string
	Left  NodeID
	Right NodeID
	Level int
	Index int
}

// Tree is a perfect binary hash tree: intermediate hashes fill the levels
// above the leaves breadth-first, chunk hashes fill the leaf level.
type Tree struct {
	nodes  []Node
	levels [][]NodeID
	count  int
	depth  int
	width  int
}

// TreeShapeError reports hash and chunk counts that cannot form a tree.
type TreeShapeError struct {
	Hashes int
	Chunks int
	Reason string
}

func (e *TreeShapeError) Error() string {
	return fmt.Sprintf("merkle: %d hashes, %d chunks: %s", e.Hashes, e.Chunks, e.Reason)
}

// Depth returns the number of levels, leaves included, of a tree holding
// nhashes intermediate hashes.
func Depth(nhashes int) int {
	if nhashes <= 0 {
		return 0
	}
	return bits.Len(uint(nhashes)) + 1
}

// Build constructs the tree for d. It fails with a *TreeShapeError when the
// counts do not describe a perfect tree, that is unless
// nchunks == nhashes+1 and nhashes+1 is a power of two.
func Build(d *bpkg.Descriptor) (*Tree, error) {
	if d == nil {
		return nil, &TreeShapeError{Reason: "nil descriptor"}
	}
	nh, nc := len(d.Hashes), len(d.Chunks)
	shapeErr := func(format string, args ...any) error {
		return &TreeShapeError{Hashes: nh, Chunks: nc, Reason: fmt.Sprintf(format, args...)}
	}
	if nh == 0 {
		return nil, shapeErr("no intermediate hashes")
	}
	if nc == 0 {
		return nil, shapeErr("no chunks")
	}

	depth := Depth(nh)
	t := &Tree{
		nodes:  make([]Node, 0, nh+nc),
		levels: make([][]NodeID, 0, depth),
		depth:  depth,
		width:  1 << (depth - 1),
	}

	consumed := 0
	for level := 0; consumed < nh; level++ {
		capacity := 1 << level
		n := min(capacity, nh-consumed)
		if n != capacity {
			return nil, shapeErr("level %d holds %d of %d intermediate hashes", level, n, capacity)
		}
		row := make([]NodeID, 0, n)
		for j := 0; j < n; j++ {
			row = append(row, t.add(Node{Kind: Internal, Hash: d.Hashes[consumed], Level: level, Index: j}))
			consumed++
		}
		t.levels = append(t.levels, row)
	}

	parents := len(t.levels[len(t.levels)-1])
	if nc != 2*parents {
		return nil, shapeErr("leaf level needs %d chunks", 2*parents)
	}
	leafLevel := len(t.levels)
	row := make([]NodeID, 0, nc)
	for j, ch := range d.Chunks {
		row = append(row, t.add(Node{Kind: Leaf, Hash: ch.Hash, Level: leafLevel, Index: j}))
	}
	t.levels = append(t.levels, row)

	for i := 0; i < len(t.levels)-1; i++ {
		children := t.levels[i+1]
		for j, id := range t.levels[i] {
			t.nodes[id].Left = children[2*j]
			t.nodes[id].Right = children[2*j+1]
		}
	}
	return t, nil
}

func (t *Tree) add(n Node) NodeID {
	t.nodes = append(t.nodes, n)
	t.count++
	return NodeID(len(t.nodes) - 1)
}

// Root returns the root node id.
func (t *Tree) Root() NodeID {
	return t.levels[0][0]
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id NodeID) Node {
	return t.nodes[id]
}

// Depth is the number of levels, leaves included.
func (t *Tree) Depth() int {
	return t.depth
}

// Width is the node capacity of the leaf level.
func (t *Tree) Width() int {
	return t.width
}

// NodeCount is the total number of populated nodes across all levels.
func (t *Tree) NodeCount() int {
	return t.count
}

// LeafCount is the number of leaves, one per chunk.
func (t *Tree) LeafCount() int {
	return len(t.levels[len(t.levels)-1])
}

// Levels returns the node ids of each level, root first.
func (t *Tree) Levels() [][]NodeID {
	out := make([][]NodeID, len(t.levels))
	for i, row := range t.levels {
		out[i] = append([]NodeID(nil), row...)
	}
	return out
}

// Hash returns the expected hash of a node.
func (t *Tree) Hash(id NodeID) string {
	return t.nodes[id].Hash
}

// Hashes returns every node hash, breadth-first.
func (t *Tree) Hashes() []string {
	out := make([]string, 0, t.count)
	t.Walk(func(n Node) bool {
		out = append(out, n.Hash)
		return true
	})
	return out
}
