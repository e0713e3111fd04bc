package bpkg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	snapshotMagic = 0x474b5042 // "BPKG"
	snapshotV1    = 1
	headerLen     = 4 + 4
	checksumLen   = 32

	// maxSnapshotBody caps the decompressed CBOR body.
	maxSnapshotBody = 64 << 20
)

var (
	cborEnc     cbor.EncMode
	cborDec     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bpkg: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("bpkg: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("bpkg: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSnapshotBody))
	if err != nil {
		panic("bpkg: zstd decoder initialization failed: " + err.Error())
	}
}

type snapshotRecord struct {
	Ident    string          `cbor:"1,keyasint"`
	Filename string          `cbor:"2,keyasint"`
	Size     uint32          `cbor:"3,keyasint"`
	Hashes   []string        `cbor:"4,keyasint"`
	Chunks   []snapshotChunk `cbor:"5,keyasint"`
}

type snapshotChunk struct {
	_      struct{} `cbor:",toarray"`
	Hash   string
	Offset uint32
	Size   uint32
}

// SnapshotCodec serializes descriptors into a compact checksummed binary
// form: header, zstd-compressed CBOR body, BLAKE3 checksum.
type SnapshotCodec struct{}

// Encode writes a snapshot of d.
func (c *SnapshotCodec) Encode(w io.Writer, d *Descriptor) error {
	if d == nil {
		return errors.New("bpkg: nil descriptor")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	rec := snapshotRecord{
		Ident:    d.Ident,
		Filename: d.Filename,
		Size:     d.Size,
		Hashes:   d.Hashes,
		Chunks:   make([]snapshotChunk, len(d.Chunks)),
	}
	for i, ch := range d.Chunks {
		rec.Chunks[i] = snapshotChunk{Hash: ch.Hash, Offset: ch.Offset, Size: ch.Size}
	}
	body, err := cborEnc.Marshal(rec)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, headerLen+len(body)/2+checksumLen)
	buf = binary.LittleEndian.AppendUint32(buf, snapshotMagic)
	buf = binary.LittleEndian.AppendUint32(buf, snapshotV1)
	buf = zstdEncoder.EncodeAll(body, buf)
	checksum := blake3.Sum256(buf[headerLen:])
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err = w.Write(checksum[:])
	return err
}

// Decode reads a snapshot, validates header and checksum, and returns the
// descriptor.
func (c *SnapshotCodec) Decode(r io.Reader) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerLen+checksumLen {
		return nil, errors.New("bpkg: snapshot truncated")
	}
	body := data[:len(data)-checksumLen]
	checksum := data[len(data)-checksumLen:]
	sum := blake3.Sum256(body[headerLen:])
	if !bytes.Equal(sum[:], checksum) {
		return nil, errors.New("bpkg: snapshot checksum mismatch")
	}
	if binary.LittleEndian.Uint32(body[0:4]) != snapshotMagic {
		return nil, errors.New("bpkg: snapshot bad magic")
	}
	if binary.LittleEndian.Uint32(body[4:8]) != snapshotV1 {
		return nil, errors.New("bpkg: snapshot unsupported version")
	}
	raw, err := zstdDecoder.DecodeAll(body[headerLen:], nil)
	if err != nil {
		return nil, errors.New("bpkg: snapshot body: " + err.Error())
	}
	var rec snapshotRecord
	if err := cborDec.Unmarshal(raw, &rec); err != nil {
		return nil, errors.New("bpkg: snapshot body: " + err.Error())
	}
	d := &Descriptor{
		Ident:    rec.Ident,
		Filename: rec.Filename,
		Size:     rec.Size,
		Hashes:   make([]string, 0, len(rec.Hashes)),
		Chunks:   make([]Chunk, 0, len(rec.Chunks)),
	}
	d.Hashes = append(d.Hashes, rec.Hashes...)
	for _, ch := range rec.Chunks {
		d.Chunks = append(d.Chunks, Chunk{Hash: ch.Hash, Offset: ch.Offset, Size: ch.Size})
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalSnapshot is a convenience wrapper around SnapshotCodec.Encode.
func MarshalSnapshot(d *Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	if err := (&SnapshotCodec{}).Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot is a convenience wrapper around SnapshotCodec.Decode.
func UnmarshalSnapshot(data []byte) (*Descriptor, error) {
	return (&SnapshotCodec{}).Decode(bytes.NewReader(data))
}
