package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/kk-code-lab/btide/internal/pkgchk"
	"github.com/kk-code-lab/btide/internal/registry"
)

// Shell runs the interactive peer commands against a registry and a peer
// set. Commands run one at a time.
type Shell struct {
	Registry *registry.Store
	Peers    *PeerSet
	// Dir is the directory ADDPACKAGE resolves manifest names against.
	Dir string
	Out io.Writer
	Log logrus.FieldLogger
}

// Run executes one command per line of in until QUIT, end of input or ctx
// cancellation. Command failures are printed and do not stop the shell.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, err := ParseCommand(sc.Text())
		if errors.Is(err, ErrEmptyCommand) {
			continue
		}
		if err != nil {
			s.printf("%s\n", userMessage(err))
			continue
		}
		quit, err := s.Execute(ctx, cmd)
		if err != nil {
			s.logger().WithError(err).WithField("command", cmd.Kind.String()).Debug("command failed")
			s.printf("%s\n", userMessage(err))
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// Execute runs a single command. quit is true for QUIT.
func (s *Shell) Execute(ctx context.Context, cmd Command) (quit bool, err error) {
	switch cmd.Kind {
	case CmdQuit:
		return true, nil
	case CmdConnect:
		if err := s.Peers.Connect(ctx, cmd.Addr); err != nil {
			return false, err
		}
		s.logger().WithField("peer", cmd.Addr).Info("peer connected")
		s.printf("Connection established with peer\n")
	case CmdDisconnect:
		if err := s.Peers.Disconnect(cmd.Addr); err != nil {
			return false, err
		}
		s.printf("Disconnected from peer\n")
	case CmdAddPackage:
		entry, err := s.Registry.Add(ctx, s.Dir, cmd.Arg)
		if err != nil {
			return false, err
		}
		s.logger().WithFields(logrus.Fields{"ident": entry.Ident, "status": entry.Status}).Info("package added")
	case CmdRemPackage:
		if err := s.Registry.Remove(ctx, cmd.Arg); err != nil {
			return false, err
		}
		s.printf("Package has been removed\n")
	case CmdPackages:
		entries, err := s.Registry.List(ctx)
		if err != nil {
			return false, err
		}
		if len(entries) == 0 {
			s.printf("No packages managed\n")
			return false, nil
		}
		for i, e := range entries {
			s.printf("%d. %s, %s : %s\n", i+1, e.Ident, e.Filename, e.Status)
		}
	case CmdPeers:
		addrs := s.Peers.Addrs()
		if len(addrs) == 0 {
			s.printf("Not connected to any peers\n")
			return false, nil
		}
		s.printf("Connected to:\n")
		for i, addr := range addrs {
			s.printf("%d. %s\n", i+1, addr)
		}
	case CmdFetch:
		return false, s.fetch(ctx, cmd)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
	return false, nil
}

// fetch checks that a fetch request names a connected peer, a managed
// package and, when given, a hash inside that package. Chunk data is not
// transferred.
func (s *Shell) fetch(ctx context.Context, cmd Command) error {
	if !s.Peers.Connected(cmd.Addr) {
		return fmt.Errorf("%w: %s", ErrNotConnected, cmd.Addr)
	}
	entry, err := s.Registry.Get(ctx, cmd.Arg)
	if err != nil {
		return err
	}
	pkg, err := entry.Package()
	if err != nil {
		return err
	}
	wanted := pkg.AllHashes()[pkg.Descriptor.NHashes():]
	if cmd.Hash != "" {
		wanted, err = pkg.ChunksUnder(cmd.Hash)
		if err != nil {
			return err
		}
	}
	s.logger().WithFields(logrus.Fields{
		"peer":   cmd.Addr,
		"ident":  entry.Ident,
		"chunks": len(wanted),
	}).Info("fetch requested")
	s.printf("Fetching\n")
	return nil
}

func (s *Shell) printf(format string, args ...any) {
	if s.Out == nil {
		return
	}
	fmt.Fprintf(s.Out, format, args...)
}

func (s *Shell) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// userMessage maps errors to the messages the shell prints.
func userMessage(err error) string {
	var nf *pkgchk.NotFoundError
	switch {
	case errors.Is(err, ErrMissingAddress):
		return "Missing address and port argument"
	case errors.Is(err, ErrInvalidAddress):
		return "Invalid address/ Address not supported"
	case errors.Is(err, registry.ErrIdentTooShort):
		return "Missing identifier argument, please specify whole 1024 character or at least 20 characters."
	case errors.Is(err, registry.ErrNotFound):
		return "Identifier provided does not match managed packages"
	case errors.Is(err, ErrNotConnected):
		return "Not connected to peer"
	case errors.As(err, &nf):
		return "Unable to request chunk, chunk hash does not belong to package"
	case errors.Is(err, ErrUnknownCommand):
		return "Invalid Input."
	default:
		return err.Error()
	}
}
