package main

import (
	"fmt"
	"io"

	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/ops"
	"github.com/kk-code-lab/btide/internal/pkgchk"
)

func execute(cmd command, stdout io.Writer) error {
	if cmd.query == queryScan {
		return runScan(cmd, stdout)
	}
	d, err := bpkg.Load(cmd.manifest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnableToLoad, err)
	}
	if cmd.query == queryNormalize {
		return bpkg.Encode(stdout, d)
	}
	if cmd.query == queryFileCheck {
		status, err := pkgchk.CheckFile(d)
		if perr := printResult(stdout, pkgchk.Result{status.String()}, cmd.jsonOut); perr != nil {
			return perr
		}
		if err != nil {
			return fmt.Errorf("file check %s: %w", d.Filename, err)
		}
		return nil
	}

	pkg, err := pkgchk.NewPackage(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnableToLoad, err)
	}
	var res pkgchk.Result
	switch cmd.query {
	case queryAllHashes:
		res = pkg.AllHashes()
	case queryChunkCheck:
		res = pkg.CompletedChunks()
	case queryMinHashes:
		res = pkg.MinCompletedHashes()
	case queryHashesOf:
		res, err = pkg.ChunksUnder(cmd.hash)
		if err != nil {
			return err
		}
	default:
		return usageError("argument is invalid")
	}
	return printResult(stdout, res, cmd.jsonOut)
}

func printResult(w io.Writer, res pkgchk.Result, jsonOut bool) error {
	if jsonOut {
		return writeJSON(w, []string(res))
	}
	for _, h := range res {
		if _, err := fmt.Fprintf(w, "%.64s\n", h); err != nil {
			return err
		}
	}
	return nil
}

func runScan(cmd command, stdout io.Writer) error {
	report, err := ops.Scan(cmd.scanDir)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		if err := writeJSON(stdout, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(stdout, formatReport(report))
		for _, p := range report.Packages {
			fmt.Fprintf(stdout, "%s %.64s %d/%d\n", p.Path, p.RootHash, p.Done, p.Total)
		}
		for _, msg := range report.ErrorSample {
			fmt.Fprintf(stdout, "error: %s\n", msg)
		}
	}
	if report.Errors > 0 {
		return &exitCodeError{code: 1, msg: fmt.Sprintf("%d manifest(s) failed", report.Errors), quiet: cmd.jsonOut}
	}
	return nil
}

func formatReport(report *ops.Report) string {
	return fmt.Sprintf("mode=%s manifests=%d complete=%d incomplete=%d errors=%d",
		report.Mode, report.Manifests, report.Complete, report.Incomplete, report.Errors)
}
