package peer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxMessageLen bounds one framed message.
const MaxMessageLen = 5520

// ReadTimeout bounds how long a connection may take to deliver its message.
const ReadTimeout = 30 * time.Second

// Server accepts peer connections. Each connection delivers one message
// framed as a 4-byte little-endian length followed by that many bytes; the
// message is logged with the sender's address and the connection closed.
type Server struct {
	Addr string
	Log  logrus.FieldLogger

	// OnMessage, when set, receives each message after it is logged.
	OnMessage func(remote string, msg []byte)
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("peer: listen %s: %w", s.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. It closes ln and
// waits for in-flight connections before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.logger()
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
	}()

	log.WithField("addr", ln.Addr().String()).Info("peer server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("peer: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	log := s.logger().WithField("remote", conn.RemoteAddr().String())
	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))

	msg, err := ReadMessage(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.WithError(err).Warn("peer message rejected")
		}
		return
	}
	if len(msg) == 0 {
		return
	}
	log.WithField("bytes", len(msg)).Infof("%s", msg)
	if s.OnMessage != nil {
		s.OnMessage(conn.RemoteAddr().String(), msg)
	}
}

func (s *Server) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// ReadMessage reads one length-prefixed message.
func ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := int32(binary.LittleEndian.Uint32(hdr[:]))
	if n <= 0 {
		return nil, nil
	}
	if n > MaxMessageLen {
		return nil, fmt.Errorf("peer: message length %d exceeds %d", n, MaxMessageLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("peer: short message: %w", err)
	}
	return buf, nil
}

// WriteMessage writes msg with its length prefix.
func WriteMessage(w io.Writer, msg []byte) error {
	if len(msg) > MaxMessageLen {
		return fmt.Errorf("peer: message length %d exceeds %d", len(msg), MaxMessageLen)
	}
	buf := make([]byte, 4, 4+len(msg))
	binary.LittleEndian.PutUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}
