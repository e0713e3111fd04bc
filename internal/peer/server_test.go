package peer

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type received struct {
	remote string
	msg    []byte
}

func startServer(t *testing.T) (string, <-chan received, *test.Hook) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	log, hook := test.NewNullLogger()
	got := make(chan received, 4)
	srv := &Server{
		Log: log,
		OnMessage: func(remote string, msg []byte) {
			got <- received{remote: remote, msg: msg}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("server did not stop")
		}
	})
	return ln.Addr().String(), got, hook
}

func send(t *testing.T, addr string, payload []byte) {
	t.Helper()
	conn, err := net.Dial("tcp4", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestServerReceivesMessage(t *testing.T) {
	addr, got, hook := startServer(t)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte("hello peer")))
	send(t, addr, buf.Bytes())

	select {
	case r := <-got:
		require.Equal(t, "hello peer", string(r.msg))
		require.NotEmpty(t, r.remote)
	case <-time.After(5 * time.Second):
		t.Fatalf("message not delivered")
	}
	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "hello peer" && e.Level == logrus.InfoLevel {
			logged = true
		}
	}
	require.True(t, logged)
}

func TestServerRejectsOversizedMessage(t *testing.T) {
	addr, got, _ := startServer(t)

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], MaxMessageLen+1)
	send(t, addr, hdr[:])

	select {
	case r := <-got:
		t.Fatalf("unexpected message %q", r.msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReadMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte("abc")))
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c'}, buf.Bytes())

	msg, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), msg)

	msg, err = ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.NoError(t, err)
	require.Nil(t, msg)

	_, err = ReadMessage(bytes.NewReader([]byte{5, 0, 0, 0, 'a'}))
	require.Error(t, err)
}

func TestWriteMessageTooLong(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteMessage(&buf, make([]byte, MaxMessageLen+1)))
	require.Zero(t, buf.Len())
}
