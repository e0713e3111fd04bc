package pkgchk

import (
	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/merkle"
)

// Package pairs a descriptor with the tree built from it. It is not safe
// for concurrent use while the descriptor is being modified.
type Package struct {
	Descriptor *bpkg.Descriptor
	Tree       *merkle.Tree
}

// Open loads the manifest at path and builds its tree.
func Open(path string) (*Package, error) {
	d, err := bpkg.Load(path)
	if err != nil {
		return nil, err
	}
	return NewPackage(d)
}

// NewPackage builds the tree for d.
func NewPackage(d *bpkg.Descriptor) (*Package, error) {
	t, err := merkle.Build(d)
	if err != nil {
		return nil, err
	}
	return &Package{Descriptor: d, Tree: t}, nil
}

// RootHash returns the hash at the root of the tree.
func (p *Package) RootHash() string {
	return p.Tree.Hash(p.Tree.Root())
}

func (p *Package) AllHashes() Result {
	return AllHashes(p.Descriptor)
}

func (p *Package) CompletedChunks() Result {
	return CompletedChunks(p.Descriptor)
}

func (p *Package) MinCompletedHashes() Result {
	return MinCompletedHashes(p.Descriptor, p.Tree)
}

func (p *Package) ChunksUnder(hash string) (Result, error) {
	return ChunksUnder(p.Tree, hash)
}

func (p *Package) CheckFile() (FileStatus, error) {
	return CheckFile(p.Descriptor)
}

// Progress returns the number of completed chunks and the chunk total.
func (p *Package) Progress() (done, total int) {
	for _, ch := range p.Descriptor.Chunks {
		if ch.Completed() {
			done++
		}
	}
	return done, len(p.Descriptor.Chunks)
}

// Complete reports whether every chunk has been fetched.
func (p *Package) Complete() bool {
	done, total := p.Progress()
	return done == total
}
