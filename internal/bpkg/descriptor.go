package bpkg

import (
	"fmt"
	"strings"
)

// Field bounds of a package manifest.
const (
	MaxIdentLen    = 1024
	MaxFilenameLen = 256
	MaxHashLen     = 64
)

// Chunk is one contiguous byte range of the target file.
type Chunk struct {
	Hash   string `json:"hash"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// Completed reports whether the chunk has been fetched. Chunks that are
// still missing are recorded with a zero size.
func (c Chunk) Completed() bool {
	return c.Size > 0
}

// Descriptor is the in-memory form of a package manifest.
type Descriptor struct {
	Ident    string   `json:"ident"`
	Filename string   `json:"filename"`
	Size     uint32   `json:"size"`
	Hashes   []string `json:"hashes"`
	Chunks   []Chunk  `json:"chunks"`
}

// NHashes returns the number of intermediate hashes.
func (d *Descriptor) NHashes() int {
	return len(d.Hashes)
}

// NChunks returns the number of chunk records.
func (d *Descriptor) NChunks() int {
	return len(d.Chunks)
}

// Validate checks the field bounds the parser enforces on input.
func (d *Descriptor) Validate() error {
	if d == nil {
		return &FormatError{Msg: "nil descriptor"}
	}
	if err := checkText("ident", d.Ident, MaxIdentLen); err != nil {
		return err
	}
	if err := checkText("filename", d.Filename, MaxFilenameLen); err != nil {
		return err
	}
	for i, h := range d.Hashes {
		if err := checkHash(h); err != nil {
			return &FormatError{Msg: fmt.Sprintf("hash %d: %s", i, err.Msg)}
		}
	}
	for i, ch := range d.Chunks {
		if err := checkHash(ch.Hash); err != nil {
			return &FormatError{Msg: fmt.Sprintf("chunk %d: %s", i, err.Msg)}
		}
	}
	return nil
}

func checkText(name, v string, max int) *FormatError {
	if v == "" {
		return &FormatError{Msg: name + " is empty"}
	}
	if len(v) > max {
		return &FormatError{Msg: fmt.Sprintf("%s is %d bytes, max %d", name, len(v), max)}
	}
	if strings.ContainsAny(v, "\r\n") {
		return &FormatError{Msg: name + " contains a line break"}
	}
	return nil
}

func checkHash(h string) *FormatError {
	if h == "" {
		return &FormatError{Msg: "empty hash"}
	}
	if len(h) > MaxHashLen {
		return &FormatError{Msg: fmt.Sprintf("hash is %d chars, max %d", len(h), MaxHashLen)}
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return &FormatError{Msg: fmt.Sprintf("hash %q is not hex", h)}
		}
	}
	return nil
}
