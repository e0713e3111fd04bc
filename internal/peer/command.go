package peer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand    = errors.New("peer: empty command")
	ErrUnknownCommand  = errors.New("peer: unknown command")
	ErrMissingAddress  = errors.New("peer: missing address and port argument")
	ErrInvalidAddress  = errors.New("peer: invalid address")
	ErrMissingArgument = errors.New("peer: missing argument")
)

// Kind identifies a shell command.
type Kind int

const (
	CmdConnect Kind = iota + 1
	CmdDisconnect
	CmdAddPackage
	CmdRemPackage
	CmdPackages
	CmdPeers
	CmdFetch
	CmdQuit
)

var verbs = map[string]Kind{
	"CONNECT":    CmdConnect,
	"DISCONNECT": CmdDisconnect,
	"ADDPACKAGE": CmdAddPackage,
	"REMPACKAGE": CmdRemPackage,
	"PACKAGES":   CmdPackages,
	"PEERS":      CmdPeers,
	"FETCH":      CmdFetch,
	"QUIT":       CmdQuit,
}

func (k Kind) String() string {
	for verb, kind := range verbs {
		if kind == k {
			return verb
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is one parsed shell line.
type Command struct {
	Kind Kind
	// Addr is the ip:port of CONNECT, DISCONNECT and FETCH.
	Addr string
	// Arg is the manifest name of ADDPACKAGE and the identifier of
	// REMPACKAGE and FETCH.
	Arg string
	// Hash optionally narrows FETCH to the chunks under one hash.
	Hash string
}

// ParseCommand parses one shell line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	kind, ok := verbs[fields[0]]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]
	cmd := Command{Kind: kind}
	switch kind {
	case CmdConnect, CmdDisconnect:
		if len(args) < 1 {
			return Command{}, ErrMissingAddress
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return Command{}, err
		}
		cmd.Addr = addr
	case CmdAddPackage, CmdRemPackage:
		if len(args) < 1 {
			return Command{}, fmt.Errorf("%w: %s needs a value", ErrMissingArgument, fields[0])
		}
		cmd.Arg = args[0]
	case CmdFetch:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: FETCH <ip:port> <identifier> [hash]", ErrMissingArgument)
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return Command{}, err
		}
		cmd.Addr = addr
		cmd.Arg = args[1]
		if len(args) > 2 {
			cmd.Hash = args[2]
		}
	}
	return cmd, nil
}

// parseAddr accepts an IPv4 address with a port.
func parseAddr(s string) (string, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	return net.JoinHostPort(ip.To4().String(), strconv.Itoa(port)), nil
}
