package bpkg

import (
	"bufio"
	"fmt"
	"io"
)

// Encode writes d in the canonical manifest text form. Parse(Encode(d))
// reproduces d.
func Encode(w io.Writer, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ident:%s\n", d.Ident)
	fmt.Fprintf(bw, "filename:%s\n", d.Filename)
	fmt.Fprintf(bw, "size:%d\n", d.Size)
	fmt.Fprintf(bw, "nhashes:%d\n", len(d.Hashes))
	bw.WriteString("hashes:\n")
	for _, h := range d.Hashes {
		fmt.Fprintf(bw, "\t%s\n", h)
	}
	fmt.Fprintf(bw, "nchunks:%d\n", len(d.Chunks))
	bw.WriteString("chunks:\n")
	for _, ch := range d.Chunks {
		fmt.Fprintf(bw, "\t%s,%d,%d\n", ch.Hash, ch.Offset, ch.Size)
	}
	return bw.Flush()
}
