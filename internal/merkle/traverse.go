package merkle

// Walk visits every node breadth-first, root first, until fn returns false.
func (t *Tree) Walk(fn func(Node) bool) {
	for _, row := range t.levels {
		for _, id := range row {
			if !fn(t.nodes[id]) {
				return
			}
		}
	}
}

// Find returns the first node, in inorder (left, self, right), whose
// expected hash equals hash.
func (t *Tree) Find(hash string) (NodeID, bool) {
	return t.find(t.Root(), hash)
}

func (t *Tree) find(id NodeID, hash string) (NodeID, bool) {
	n := &t.nodes[id]
	if n.Kind == Internal {
		if found, ok := t.find(n.Left, hash); ok {
			return found, true
		}
	}
	if n.Hash == hash {
		return id, true
	}
	if n.Kind == Internal {
		return t.find(n.Right, hash)
	}
	return 0, false
}

// Leaves returns the leaves under id in inorder. A leaf yields itself.
func (t *Tree) Leaves(id NodeID) []NodeID {
	return t.leaves(id, nil)
}

func (t *Tree) leaves(id NodeID, out []NodeID) []NodeID {
	n := &t.nodes[id]
	if n.Kind == Leaf {
		return append(out, id)
	}
	out = t.leaves(n.Left, out)
	return t.leaves(n.Right, out)
}

// Cover returns the smallest ordered set of nodes representing the
// completed leaves: a subtree whose leaves are all complete is represented
// by its own root, incomplete leaves contribute nothing. complete is called
// with a leaf's chunk index.
func (t *Tree) Cover(complete func(leaf int) bool) []NodeID {
	out, _ := t.cover(t.Root(), complete, nil)
	return out
}

// cover walks post-order and reports whether the subtree at id is fully
// complete.
func (t *Tree) cover(id NodeID, complete func(int) bool, out []NodeID) ([]NodeID, bool) {
	n := &t.nodes[id]
	if n.Kind == Leaf {
		if complete(n.Index) {
			return append(out, id), true
		}
		return out, false
	}
	mark := len(out)
	out, left := t.cover(n.Left, complete, out)
	out, right := t.cover(n.Right, complete, out)
	if left && right {
		return append(out[:mark], id), true
	}
	return out, false
}
