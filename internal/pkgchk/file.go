package pkgchk

import (
	"errors"
	"io/fs"
	"os"

	"github.com/kk-code-lab/btide/internal/bpkg"
)

// FileStatus is the outcome of a file-presence check.
type FileStatus int

const (
	FileError FileStatus = iota
	FileExists
	FileCreated
)

func (s FileStatus) String() string {
	switch s {
	case FileExists:
		return "File Exists"
	case FileCreated:
		return "File Created"
	default:
		return "File Error"
	}
}

// CheckFile reports whether the package's target file exists. A missing
// file is created empty. The returned error explains a FileError status.
func CheckFile(d *bpkg.Descriptor) (FileStatus, error) {
	return checkPath(d.Filename)
}

// FileCheck is CheckFile rendered as a single-line Result.
func FileCheck(d *bpkg.Descriptor) Result {
	status, _ := CheckFile(d)
	return Result{status.String()}
}

func checkPath(path string) (FileStatus, error) {
	f, err := os.Open(path)
	if err == nil {
		f.Close()
		return FileExists, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return FileError, err
	}
	f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return FileError, err
	}
	if err := f.Close(); err != nil {
		return FileError, err
	}
	return FileCreated, nil
}
