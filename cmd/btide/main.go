// Command btide runs a package-sharing peer: it manages packages in a
// registry, accepts peer connections and reads shell commands from stdin.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/kk-code-lab/btide/internal/config"
	"github.com/kk-code-lab/btide/internal/peer"
	"github.com/kk-code-lab/btide/internal/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "btide: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var logFormat string
	fs := pflag.NewFlagSet("btide", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: btide [flags] <config.yaml>")
		fs.PrintDefaults()
	}
	fs.StringVar(&logFormat, "log-format", "text", "log output format: text|json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs.Args())
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, logFormat, stderr)
	if err != nil {
		return err
	}
	if err := config.EnsureDirectory(cfg.Directory); err != nil {
		return err
	}

	store, err := registry.Open(cfg.Registry)
	if err != nil {
		return fmt.Errorf("registry open %s: %w", cfg.Registry, err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peers := peer.NewPeerSet(cfg.MaxPeers)
	defer peers.Close()

	srv := &peer.Server{Addr: cfg.ListenAddr(), Log: log.WithField("component", "peer")}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx) }()

	if cfg.AdminAddr != "" {
		if _, err := startAdminServer(ctx, cfg.AdminAddr, cfg.Directory, store, log); err != nil {
			return fmt.Errorf("admin listen %s: %w", cfg.AdminAddr, err)
		}
		log.WithField("addr", cfg.AdminAddr).Info("admin api listening")
	}

	shell := &peer.Shell{
		Registry: store,
		Peers:    peers,
		Dir:      cfg.Directory,
		Out:      stdout,
		Log:      log.WithField("component", "shell"),
	}
	shellErr := make(chan error, 1)
	go func() { shellErr <- shell.Run(ctx, stdin) }()

	select {
	case err = <-shellErr:
	case err = <-srvErr:
		return err
	case <-ctx.Done():
		log.Info("interrupted")
	}
	cancel()
	if serr := <-srvErr; serr != nil && err == nil {
		err = serr
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func loadConfig(args []string) (*config.Config, error) {
	switch len(args) {
	case 0:
		return config.Load()
	case 1:
		return config.LoadFile(args[0])
	default:
		return nil, fmt.Errorf("unknown arguments: %v", args[1:])
	}
}

func newLogger(cfg *config.Config, format string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(cfg.Level())
	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}
