package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/clock"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeManifest(t *testing.T, dir, name, ident string, nhashes, nchunks int, done ...int) {
	t.Helper()
	d := &bpkg.Descriptor{Ident: ident, Filename: name + ".data", Size: uint32(nchunks)}
	for i := 0; i < nhashes; i++ {
		d.Hashes = append(d.Hashes, fmt.Sprintf("a%063x", i))
	}
	for i := 0; i < nchunks; i++ {
		d.Chunks = append(d.Chunks, bpkg.Chunk{Hash: fmt.Sprintf("c%063x", i), Offset: uint32(i)})
	}
	for _, i := range done {
		d.Chunks[i].Size = 1
	}
	var buf bytes.Buffer
	require.NoError(t, bpkg.Encode(&buf, d))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func ident(c byte) string {
	return strings.Repeat(string(c), 40)
}

func TestAddAndList(t *testing.T) {
	store := openStore(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetClock(clock.Fixed(at))
	dir := t.TempDir()
	writeManifest(t, dir, "a.bpkg", ident('a'), 3, 4, 0, 1, 2, 3)
	writeManifest(t, dir, "b.bpkg", ident('b'), 3, 4, 0)

	ctx := context.Background()
	entry, err := store.Add(ctx, dir, "a.bpkg")
	require.NoError(t, err)
	require.Equal(t, ident('a')[:IdentLen], entry.Ident)
	require.Equal(t, filepath.Join(dir, "a.bpkg.data"), entry.Filename)
	require.Equal(t, StatusComplete, entry.Status)

	_, err = store.Add(ctx, dir, "b.bpkg")
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ident('a')[:IdentLen], entries[0].Ident)
	require.Equal(t, StatusComplete, entries[0].Status)
	require.True(t, entries[0].AddedAt.Equal(at))
	require.Equal(t, ident('b')[:IdentLen], entries[1].Ident)
	require.Equal(t, StatusIncomplete, entries[1].Status)
	require.Equal(t, 1, entries[1].Done)
	require.Equal(t, 4, entries[1].Total)
	require.Equal(t, ident('b'), entries[1].Descriptor.Ident)

	pkg, err := entries[1].Package()
	require.NoError(t, err)
	require.Equal(t, entries[1].Descriptor.Hashes[0], pkg.RootHash())
}

func TestAddDuplicate(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	writeManifest(t, dir, "a.bpkg", ident('a'), 1, 2)

	ctx := context.Background()
	_, err := store.Add(ctx, dir, "a.bpkg")
	require.NoError(t, err)
	_, err = store.Add(ctx, dir, "a.bpkg")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestAddInvalidShapeIsListedInvalid(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	writeManifest(t, dir, "odd.bpkg", ident('o'), 2, 4)

	entry, err := store.Add(context.Background(), dir, "odd.bpkg")
	require.NoError(t, err)
	require.Equal(t, StatusInvalid, entry.Status)
}

func TestAddErrors(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := store.Add(ctx, dir, "")
	require.Error(t, err)

	_, err = store.Add(ctx, dir, "missing.bpkg")
	var ioe *bpkg.IOError
	require.ErrorAs(t, err, &ioe)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.bpkg"), []byte("ident:x\n"), 0o644))
	_, err = store.Add(ctx, dir, "bad.bpkg")
	var fe *bpkg.FormatError
	require.ErrorAs(t, err, &fe)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	writeManifest(t, dir, "a.bpkg", ident('a'), 1, 2)
	writeManifest(t, dir, "b.bpkg", ident('b'), 1, 2)
	ctx := context.Background()
	_, err := store.Add(ctx, dir, "a.bpkg")
	require.NoError(t, err)
	_, err = store.Add(ctx, dir, "b.bpkg")
	require.NoError(t, err)

	require.ErrorIs(t, store.Remove(ctx, "aaaa"), ErrIdentTooShort)
	require.ErrorIs(t, store.Remove(ctx, strings.Repeat("z", 20)), ErrNotFound)

	require.NoError(t, store.Remove(ctx, ident('a')[:20]+"anything"))
	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ident('b')[:IdentLen], entries[0].Ident)

	_, err = store.Get(ctx, ident('a'))
	require.ErrorIs(t, err, ErrNotFound)
	got, err := store.Get(ctx, ident('b'))
	require.NoError(t, err)
	require.Equal(t, entries[0].Ident, got.Ident)
}

func TestReopenKeepsPackages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	dir := t.TempDir()
	writeManifest(t, dir, "a.bpkg", ident('a'), 1, 2, 0)

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), dir, "a.bpkg")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, StatusIncomplete, entries[0].Status)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
