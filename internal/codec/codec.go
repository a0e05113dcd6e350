// Package codec wraps streams in the compression formats derrik understands.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies a compression format.
type Format uint8

const (
	// None means the stream is used as is.
	None Format = iota
	Gzip
	Zstd
	LZ4
)

var formatNames = [...]string{"none", "gzip", "zstd", "lz4"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown compression format")

// ParseFormat returns the format called name (none, gzip, zstd or lz4, in
// any case).
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	return None, fmt.Errorf("%w %q (use none, gzip, zstd or lz4)", ErrUnknownFormat, name)
}

// Magic numbers at the start of each format.  None of them can start a JSON
// text.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// SniffLen is the number of leading bytes Sniff needs to see.
const SniffLen = 4

// MagicStart reports whether b is the first byte of a magic number.  When it
// is not, Sniff returns None whatever follows, so there is no need to wait
// for more bytes.
func MagicStart(b byte) bool {
	return b == gzipMagic[0] || b == zstdMagic[0] || b == lz4Magic[0]
}

// Sniff returns the format whose magic number starts head, or None.
func Sniff(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	default:
		return None
	}
}

// FromPath picks a format from the extension of path: .gz, .zst or .lz4.
func FromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// NewReader returns a reader decompressing r.  Closing it releases the
// decompressor but does not close r.
func NewReader(f Format, r io.Reader) (io.ReadCloser, error) {
	switch f {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression format %s", f)
	}
}

// NewWriter returns a writer compressing into w.  Close must be called to
// write the end of the compressed stream; it does not close w.
func NewWriter(f Format, w io.Writer) (io.WriteCloser, error) {
	switch f {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression format %s", f)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
