// Command pkgchk answers integrity and completion queries about a bpkg
// package manifest.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd, err := parseArgs(args, stderr)
	if err == nil {
		err = execute(cmd, stdout)
	}
	if err == nil {
		return 0
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if !exitErr.Quiet() && exitErr.Error() != "" {
			fmt.Fprintln(stderr, exitErr.Error())
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(stderr, err)
	return 1
}
