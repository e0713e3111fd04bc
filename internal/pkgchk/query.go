// Package pkgchk answers integrity and completion queries about a package:
// its hashes, its completed chunks, the minimal set of hashes describing its
// completion, and the chunks below a given hash.
//
// Every query returns a fresh Result that shares no memory with the
// descriptor or tree it was computed from.
package pkgchk

import (
	"fmt"

	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/merkle"
)

// Result is an ordered list of hash strings.
type Result []string

// NotFoundError reports a hash that matches no node of the tree.
type NotFoundError struct {
	Hash string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pkgchk: hash %s not found in tree", e.Hash)
}

// AllHashes returns the intermediate hashes followed by the chunk hashes,
// both in manifest order.
func AllHashes(d *bpkg.Descriptor) Result {
	out := make(Result, 0, len(d.Hashes)+len(d.Chunks))
	out = append(out, d.Hashes...)
	for _, ch := range d.Chunks {
		out = append(out, ch.Hash)
	}
	return out
}

// CompletedChunks returns the hashes of completed chunks in manifest order.
func CompletedChunks(d *bpkg.Descriptor) Result {
	out := Result{}
	for _, ch := range d.Chunks {
		if ch.Completed() {
			out = append(out, ch.Hash)
		}
	}
	return out
}

// MinCompletedHashes returns the smallest ordered set of hashes that
// represents the completed regions of the package: each fully completed
// subtree contributes only its highest hash, incomplete chunks contribute
// nothing. The result is empty when no chunk is complete and holds only
// the root hash when every chunk is.
func MinCompletedHashes(d *bpkg.Descriptor, t *merkle.Tree) Result {
	ids := t.Cover(func(leaf int) bool {
		return d.Chunks[leaf].Completed()
	})
	return hashes(t, ids)
}

// ChunksUnder returns, in order, the chunk hashes below the first node
// (inorder search) whose hash equals hash. If that node is a leaf the
// result is its own hash.
func ChunksUnder(t *merkle.Tree, hash string) (Result, error) {
	id, ok := t.Find(hash)
	if !ok {
		return nil, &NotFoundError{Hash: hash}
	}
	return hashes(t, t.Leaves(id)), nil
}

func hashes(t *merkle.Tree, ids []merkle.NodeID) Result {
	out := make(Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.Hash(id))
	}
	return out
}
