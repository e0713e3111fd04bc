package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

type query int

const (
	queryNone query = iota
	queryAllHashes
	queryChunkCheck
	queryMinHashes
	queryHashesOf
	queryFileCheck
	queryNormalize
	queryScan
)

// command is one parsed pkgchk invocation.
type command struct {
	manifest string
	query    query
	hash     string
	scanDir  string
	jsonOut  bool
}

// legacyFlags are the query names that older scripts pass with one dash.
var legacyFlags = map[string]bool{
	"-all_hashes":  true,
	"-chunk_check": true,
	"-min_hashes":  true,
	"-hashes_of":   true,
	"-file_check":  true,
	"-json":        true,
	"-normalize":   true,
	"-scan":        true,
}

func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		name, _, _ := strings.Cut(arg, "=")
		if legacyFlags[name] {
			arg = "-" + arg
		}
		out[i] = arg
	}
	return out
}

func parseArgs(args []string, stderr io.Writer) (command, error) {
	var (
		cmd                                     command
		allHashes, chunkCheck, minHashes, check bool
		normalize                               bool
		hashesOf                                string
	)
	fs := pflag.NewFlagSet("pkgchk", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: pkgchk <file.bpkg> <query>")
		fmt.Fprintln(stderr, "       pkgchk --scan <dir>")
		fs.PrintDefaults()
	}
	fs.BoolVar(&allHashes, "all_hashes", false, "print every hash of the package")
	fs.BoolVar(&chunkCheck, "chunk_check", false, "print the hashes of completed chunks")
	fs.BoolVar(&minHashes, "min_hashes", false, "print the minimal hashes covering the completed chunks")
	fs.StringVar(&hashesOf, "hashes_of", "", "print the chunk hashes under `hash`")
	fs.BoolVar(&check, "file_check", false, "check the target file exists, creating it when missing")
	fs.BoolVar(&normalize, "normalize", false, "rewrite the manifest in canonical form to stdout")
	fs.StringVar(&cmd.scanDir, "scan", "", "report completion for every manifest in `dir`")
	fs.BoolVar(&cmd.jsonOut, "json", false, "print results as JSON")

	if err := fs.Parse(normalizeArgs(args)); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return command{}, &exitCodeError{code: 0, quiet: true}
		}
		return command{}, usageError(err.Error())
	}

	selected := map[query]bool{
		queryAllHashes:  allHashes,
		queryChunkCheck: chunkCheck,
		queryMinHashes:  minHashes,
		queryHashesOf:   fs.Changed("hashes_of"),
		queryFileCheck:  check,
		queryNormalize:  normalize,
		queryScan:       fs.Changed("scan"),
	}
	for q, on := range selected {
		if !on {
			continue
		}
		if cmd.query != queryNone {
			return command{}, usageError(ErrOneQuery.Error())
		}
		cmd.query = q
	}

	rest := fs.Args()
	switch {
	case cmd.query == queryScan:
		if cmd.scanDir == "" {
			return command{}, usageError("scan directory not provided")
		}
		if len(rest) > 0 {
			return command{}, usageError(fmt.Sprintf("unknown arguments: %v", rest))
		}
		return cmd, nil
	case len(rest) == 0 || cmd.query == queryNone:
		return command{}, usageError(ErrManifestRequired.Error())
	case len(rest) > 1:
		return command{}, usageError(fmt.Sprintf("unknown arguments: %v", rest[1:]))
	}
	cmd.manifest = rest[0]
	if cmd.query == queryHashesOf {
		if hashesOf == "" {
			return command{}, usageError(ErrHashRequired.Error())
		}
		cmd.hash = hashesOf
	}
	return cmd, nil
}
