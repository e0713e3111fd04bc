package merkle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/btide/internal/bpkg"
)

func hexHash(prefix byte, i int) string {
	return fmt.Sprintf("%c%063x", prefix, i)
}

// descriptor builds a manifest with nhashes intermediate hashes and
// nchunks chunks; chunks listed in done are completed.
func descriptor(nhashes, nchunks int, done ...int) *bpkg.Descriptor {
	d := &bpkg.Descriptor{Ident: "id", Filename: "f", Hashes: []string{}, Chunks: []bpkg.Chunk{}}
	for i := 0; i < nhashes; i++ {
		d.Hashes = append(d.Hashes, hexHash('a', i))
	}
	for i := 0; i < nchunks; i++ {
		d.Chunks = append(d.Chunks, bpkg.Chunk{Hash: hexHash('c', i), Offset: uint32(i * 16)})
	}
	for _, i := range done {
		d.Chunks[i].Size = 16
	}
	return d
}

func TestDepth(t *testing.T) {
	cases := map[int]int{0: 0, 1: 2, 3: 3, 7: 4, 15: 5}
	for nhashes, want := range cases {
		require.Equal(t, want, Depth(nhashes), "nhashes=%d", nhashes)
	}
}

func TestBuildShapes(t *testing.T) {
	for _, nhashes := range []int{1, 3, 7, 15} {
		t.Run(fmt.Sprintf("nhashes=%d", nhashes), func(t *testing.T) {
			d := descriptor(nhashes, nhashes+1)
			tree, err := Build(d)
			require.NoError(t, err)
			require.Equal(t, Depth(nhashes), tree.Depth())
			require.Equal(t, nhashes+1, tree.Width())
			require.Equal(t, nhashes+nhashes+1, tree.NodeCount())
			require.Equal(t, nhashes+1, tree.LeafCount())

			levels := tree.Levels()
			require.Len(t, levels, tree.Depth())
			for i, row := range levels {
				require.Len(t, row, 1<<i)
			}

			root := tree.Node(tree.Root())
			require.Equal(t, Internal, root.Kind)
			require.Equal(t, d.Hashes[0], root.Hash)
		})
	}
}

func TestBuildReproducesEveryHashOnce(t *testing.T) {
	for _, nhashes := range []int{1, 3, 7} {
		d := descriptor(nhashes, nhashes+1)
		tree, err := Build(d)
		require.NoError(t, err)

		want := append(append([]string{}, d.Hashes...), hexHashes(d)...)
		require.Equal(t, want, tree.Hashes())
	}
}

func hexHashes(d *bpkg.Descriptor) []string {
	out := make([]string, 0, len(d.Chunks))
	for _, ch := range d.Chunks {
		out = append(out, ch.Hash)
	}
	return out
}

func TestBuildLinksChildrenInOrder(t *testing.T) {
	d := descriptor(3, 4)
	tree, err := Build(d)
	require.NoError(t, err)

	root := tree.Node(tree.Root())
	left, right := tree.Node(root.Left), tree.Node(root.Right)
	require.Equal(t, d.Hashes[1], left.Hash)
	require.Equal(t, d.Hashes[2], right.Hash)

	require.Equal(t, d.Chunks[0].Hash, tree.Hash(left.Left))
	require.Equal(t, d.Chunks[1].Hash, tree.Hash(left.Right))
	require.Equal(t, d.Chunks[2].Hash, tree.Hash(right.Left))
	require.Equal(t, d.Chunks[3].Hash, tree.Hash(right.Right))

	leaf := tree.Node(right.Right)
	require.Equal(t, Leaf, leaf.Kind)
	require.Equal(t, 3, leaf.Index)
	require.Equal(t, 2, leaf.Level)
}

func TestBuildShapeErrors(t *testing.T) {
	cases := []struct {
		name    string
		nhashes int
		nchunks int
	}{
		{name: "no hashes", nhashes: 0, nchunks: 2},
		{name: "no chunks", nhashes: 1, nchunks: 0},
		{name: "partial level", nhashes: 2, nchunks: 4},
		{name: "too few chunks", nhashes: 3, nchunks: 3},
		{name: "too many chunks", nhashes: 3, nchunks: 5},
		{name: "single hash single chunk", nhashes: 1, nchunks: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Build(descriptor(tc.nhashes, tc.nchunks))
			require.Nil(t, tree)
			var se *TreeShapeError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tc.nhashes, se.Hashes)
			require.Equal(t, tc.nchunks, se.Chunks)
		})
	}
}

func TestBuildNilDescriptor(t *testing.T) {
	_, err := Build(nil)
	var se *TreeShapeError
	require.ErrorAs(t, err, &se)
}
