package bpkg

import "fmt"

// FormatError reports a malformed or short manifest.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	prefix := "bpkg"
	if e.Path != "" {
		prefix += ": " + e.Path
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", prefix, e.Line, e.Msg)
	}
	return prefix + ": " + e.Msg
}

// IOError reports a failure to open or read a manifest.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("bpkg: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bpkg: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
