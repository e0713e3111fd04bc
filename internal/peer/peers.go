package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	ErrTooManyPeers     = errors.New("peer: too many peers")
	ErrNotConnected     = errors.New("peer: not connected")
	ErrAlreadyConnected = errors.New("peer: already connected")
)

// DialTimeout bounds a single CONNECT.
const DialTimeout = 5 * time.Second

// PeerSet tracks outbound peer connections. It is safe for concurrent use.
type PeerSet struct {
	max  int
	dial func(ctx context.Context, addr string) (net.Conn, error)

	mu    sync.Mutex
	order []string
	conns map[string]net.Conn
}

// NewPeerSet returns a set holding at most max peers.
func NewPeerSet(max int) *PeerSet {
	d := &net.Dialer{Timeout: DialTimeout}
	return &PeerSet{
		max: max,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp4", addr)
		},
		conns: make(map[string]net.Conn),
	}
}

// Connect dials addr and records the connection.
func (p *PeerSet) Connect(ctx context.Context, addr string) error {
	p.mu.Lock()
	if _, ok := p.conns[addr]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, addr)
	}
	if len(p.conns) >= p.max {
		p.mu.Unlock()
		return fmt.Errorf("%w: limit %d", ErrTooManyPeers, p.max)
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("peer: connect %s: %w", addr, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.conns[addr]; ok {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, addr)
	}
	if len(p.conns) >= p.max {
		_ = conn.Close()
		return fmt.Errorf("%w: limit %d", ErrTooManyPeers, p.max)
	}
	p.conns[addr] = conn
	p.order = append(p.order, addr)
	return nil
}

// Disconnect closes and forgets the connection to addr.
func (p *PeerSet) Disconnect(addr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}
	delete(p.conns, addr)
	for i, a := range p.order {
		if a == addr {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return conn.Close()
}

// Connected reports whether addr is in the set.
func (p *PeerSet) Connected(addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[addr]
	return ok
}

// Addrs returns the connected addresses in connection order.
func (p *PeerSet) Addrs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Close disconnects every peer.
func (p *PeerSet) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, addr := range p.order {
		if err := p.conns[addr].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.order = nil
	p.conns = make(map[string]net.Conn)
	return errors.Join(errs...)
}
