package bpkg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxLineLen bounds a single manifest line; the longest legal line is the
// ident line.
const maxLineLen = 2048

// Load reads the manifest at path.
func Load(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		var ioe *IOError
		if errors.As(err, &ioe) {
			ioe.Path = path
		}
		return nil, err
	}
	return d, nil
}

// Parse reads a manifest from r. It returns either a fully populated
// descriptor or an error; fields over their bound are rejected, never
// truncated.
func Parse(r io.Reader) (*Descriptor, error) {
	lr := newLineReader(r)

	ident, err := lr.field("ident")
	if err != nil {
		return nil, err
	}
	if fe := checkText("ident", ident, MaxIdentLen); fe != nil {
		return nil, lr.at(fe)
	}
	filename, err := lr.field("filename")
	if err != nil {
		return nil, err
	}
	if fe := checkText("filename", filename, MaxFilenameLen); fe != nil {
		return nil, lr.at(fe)
	}
	size, err := lr.uintField("size")
	if err != nil {
		return nil, err
	}

	nhashes, err := lr.uintField("nhashes")
	if err != nil {
		return nil, err
	}
	if err := lr.skipHeader("hashes"); err != nil {
		return nil, err
	}
	hashes := make([]string, 0, capHint(nhashes))
	for i := uint32(0); i < nhashes; i++ {
		line, err := lr.next(fmt.Sprintf("hash %d of %d", i+1, nhashes))
		if err != nil {
			return nil, err
		}
		h := strings.TrimSpace(line)
		if fe := checkHash(h); fe != nil {
			return nil, lr.at(fe)
		}
		hashes = append(hashes, h)
	}

	nchunks, err := lr.uintField("nchunks")
	if err != nil {
		return nil, err
	}
	if err := lr.skipHeader("chunks"); err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, capHint(nchunks))
	for i := uint32(0); i < nchunks; i++ {
		line, err := lr.next(fmt.Sprintf("chunk %d of %d", i+1, nchunks))
		if err != nil {
			return nil, err
		}
		ch, fe := parseChunk(line)
		if fe != nil {
			return nil, lr.at(fe)
		}
		chunks = append(chunks, ch)
	}

	if err := lr.expectEnd(); err != nil {
		return nil, err
	}
	return &Descriptor{
		Ident:    ident,
		Filename: filename,
		Size:     size,
		Hashes:   hashes,
		Chunks:   chunks,
	}, nil
}

func parseChunk(line string) (Chunk, *FormatError) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return Chunk{}, &FormatError{Msg: fmt.Sprintf("chunk line %q: want hash,offset,size", line)}
	}
	h := strings.TrimSpace(parts[0])
	if fe := checkHash(h); fe != nil {
		return Chunk{}, fe
	}
	offset, err := parseUint32(parts[1])
	if err != nil {
		return Chunk{}, &FormatError{Msg: fmt.Sprintf("chunk offset: %v", err)}
	}
	size, err := parseUint32(parts[2])
	if err != nil {
		return Chunk{}, &FormatError{Msg: fmt.Sprintf("chunk size: %v", err)}
	}
	return Chunk{Hash: h, Offset: offset, Size: size}, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) {
			return 0, fmt.Errorf("%q: %w", ne.Num, ne.Err)
		}
		return 0, err
	}
	return uint32(v), nil
}

// capHint keeps a hostile count from forcing a huge allocation up front.
func capHint(n uint32) int {
	if n > 4096 {
		return 4096
	}
	return int(n)
}

type lineReader struct {
	sc      *bufio.Scanner
	line    int
	pending *string
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), maxLineLen)
	return &lineReader{sc: sc}
}

func (lr *lineReader) at(fe *FormatError) *FormatError {
	fe.Line = lr.line
	return fe
}

func (lr *lineReader) read() (string, bool, error) {
	if lr.pending != nil {
		s := *lr.pending
		lr.pending = nil
		lr.line++
		return s, true, nil
	}
	if !lr.sc.Scan() {
		if err := lr.sc.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return "", false, &FormatError{Line: lr.line + 1, Msg: fmt.Sprintf("line longer than %d bytes", maxLineLen)}
			}
			return "", false, &IOError{Op: "read", Err: err}
		}
		return "", false, nil
	}
	lr.line++
	return strings.TrimRight(lr.sc.Text(), "\r"), true, nil
}

func (lr *lineReader) unread(s string) {
	lr.pending = &s
	lr.line--
}

// next returns the next line or a FormatError naming what was expected.
func (lr *lineReader) next(want string) (string, error) {
	s, ok, err := lr.read()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &FormatError{Line: lr.line + 1, Msg: "unexpected end of manifest, want " + want}
	}
	return s, nil
}

func (lr *lineReader) field(key string) (string, error) {
	line, err := lr.next(key + " line")
	if err != nil {
		return "", err
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), key+":")
	if !ok {
		return "", &FormatError{Line: lr.line, Msg: fmt.Sprintf("want %q field, got %q", key, line)}
	}
	return strings.TrimSpace(rest), nil
}

func (lr *lineReader) uintField(key string) (uint32, error) {
	v, err := lr.field(key)
	if err != nil {
		return 0, err
	}
	n, err := parseUint32(v)
	if err != nil {
		return 0, &FormatError{Line: lr.line, Msg: fmt.Sprintf("%s: %v", key, err)}
	}
	return n, nil
}

// skipHeader consumes an optional "hashes:" or "chunks:" section line.
func (lr *lineReader) skipHeader(name string) error {
	s, ok, err := lr.read()
	if err != nil || !ok {
		return err
	}
	if strings.TrimSpace(s) != name+":" {
		lr.unread(s)
	}
	return nil
}

func (lr *lineReader) expectEnd() error {
	for {
		s, ok, err := lr.read()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if strings.TrimSpace(s) != "" {
			return &FormatError{Line: lr.line, Msg: fmt.Sprintf("unexpected trailing content %q", s)}
		}
	}
}
