package peer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/registry"
)

const testIdent = "0123456789abcdefghijklmnopqrstuvwxyz0123456789"

func writeManifest(t *testing.T, dir, name string, done ...int) *bpkg.Descriptor {
	t.Helper()
	d := &bpkg.Descriptor{Ident: testIdent, Filename: "pkg.data", Size: 4}
	for i := 0; i < 3; i++ {
		d.Hashes = append(d.Hashes, fmt.Sprintf("a%063x", i))
	}
	for i := 0; i < 4; i++ {
		d.Chunks = append(d.Chunks, bpkg.Chunk{Hash: fmt.Sprintf("c%063x", i), Offset: uint32(i)})
	}
	for _, i := range done {
		d.Chunks[i].Size = 1
	}
	var buf bytes.Buffer
	require.NoError(t, bpkg.Encode(&buf, d))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
	return d
}

func newShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	store, err := registry.Open(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	peers := NewPeerSet(2)
	t.Cleanup(func() {
		_ = peers.Close()
		_ = store.Close()
	})
	log, _ := test.NewNullLogger()
	out := &bytes.Buffer{}
	return &Shell{Registry: store, Peers: peers, Dir: dir, Out: out, Log: log}, out
}

func TestShellPackages(t *testing.T) {
	sh, out := newShell(t)
	writeManifest(t, sh.Dir, "a.bpkg", 0, 1, 2, 3)

	script := strings.Join([]string{
		"PACKAGES",
		"ADDPACKAGE a.bpkg",
		"PACKAGES",
		"REMPACKAGE short",
		"REMPACKAGE zzzzzzzzzzzzzzzzzzzzzzzz",
		"REMPACKAGE " + testIdent[:20],
		"PACKAGES",
		"QUIT",
		"PACKAGES",
	}, "\n")
	require.NoError(t, sh.Run(context.Background(), strings.NewReader(script)))

	want := strings.Join([]string{
		"No packages managed",
		"1. " + testIdent[:registry.IdentLen] + ", " + filepath.Join(sh.Dir, "pkg.data") + " : COMPLETE",
		"Missing identifier argument, please specify whole 1024 character or at least 20 characters.",
		"Identifier provided does not match managed packages",
		"Package has been removed",
		"No packages managed",
	}, "\n") + "\n"
	require.Equal(t, want, out.String())
}

func TestShellPeers(t *testing.T) {
	sh, out := newShell(t)
	addr := listen(t)

	script := strings.Join([]string{
		"PEERS",
		"CONNECT " + addr,
		"PEERS",
		"DISCONNECT " + addr,
		"DISCONNECT " + addr,
		"CONNECT",
		"CONNECT nowhere",
		"BOGUS",
	}, "\n")
	require.NoError(t, sh.Run(context.Background(), strings.NewReader(script)))

	want := strings.Join([]string{
		"Not connected to any peers",
		"Connection established with peer",
		"Connected to:",
		"1. " + addr,
		"Disconnected from peer",
		"Not connected to peer",
		"Missing address and port argument",
		"Invalid address/ Address not supported",
		"Invalid Input.",
	}, "\n") + "\n"
	require.Equal(t, want, out.String())
}

func TestShellFetch(t *testing.T) {
	sh, out := newShell(t)
	d := writeManifest(t, sh.Dir, "a.bpkg", 0)
	addr := listen(t)
	ctx := context.Background()

	_, err := sh.Execute(ctx, Command{Kind: CmdFetch, Addr: addr, Arg: testIdent})
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = sh.Execute(ctx, Command{Kind: CmdConnect, Addr: addr})
	require.NoError(t, err)
	_, err = sh.Execute(ctx, Command{Kind: CmdFetch, Addr: addr, Arg: testIdent})
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = sh.Execute(ctx, Command{Kind: CmdAddPackage, Arg: "a.bpkg"})
	require.NoError(t, err)

	out.Reset()
	_, err = sh.Execute(ctx, Command{Kind: CmdFetch, Addr: addr, Arg: testIdent, Hash: d.Hashes[1]})
	require.NoError(t, err)
	require.Equal(t, "Fetching\n", out.String())

	_, err = sh.Execute(ctx, Command{Kind: CmdFetch, Addr: addr, Arg: testIdent, Hash: "ff"})
	require.Error(t, err)
	require.Equal(t, "Unable to request chunk, chunk hash does not belong to package", userMessage(err))
}

func TestShellQuit(t *testing.T) {
	sh, _ := newShell(t)
	quit, err := sh.Execute(context.Background(), Command{Kind: CmdQuit})
	require.NoError(t, err)
	require.True(t, quit)
}
