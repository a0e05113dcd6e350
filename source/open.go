package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arnodel/derrik/internal/codec"
)

const readBufferSize = 64 * 1024

// handle is an open location.  Closing it closes the decompressor, then the
// underlying stream.
type handle struct {
	location string
	format   codec.Format
	br       *bufio.Reader
	closers  []io.Closer
}

func (h *handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

func (h *handle) Read(p []byte) (int, error) {
	return h.br.Read(p)
}

var errIsDirectory = errors.New("is a directory")

// Open opens a single location as a Reader would and returns its content,
// decompressed unless opts.Raw is set.  Failure is an *OpenError.
func Open(location string, opts Options) (io.ReadCloser, error) {
	r := NewReader([]string{location}, opts)
	h, err := r.open(location)
	if err != nil {
		return nil, &OpenError{Location: location, Err: err}
	}
	return h, nil
}

func (r *Reader) open(location string) (*handle, error) {
	h := &handle{location: location}
	var raw io.Reader
	switch {
	case location == Stdin:
		raw = r.stdin()
	case strings.HasPrefix(location, s3Scheme):
		obj, err := r.openS3(location)
		if err != nil {
			return nil, err
		}
		raw = obj
		h.closers = append(h.closers, obj)
	default:
		f, err := openFile(location)
		if err != nil {
			return nil, err
		}
		raw = f
		h.closers = append(h.closers, f)
	}
	if err := h.wrap(raw, r.opts.Raw); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unwrapPathError(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, unwrapPathError(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, errIsDirectory
	}
	return f, nil
}

// The location is already part of OpenError, so the path in *fs.PathError
// would only repeat it.
func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// wrap sets up buffering and, unless raw is true, transparent decompression.
func (h *handle) wrap(raw io.Reader, rawMode bool) error {
	br := bufio.NewReaderSize(raw, readBufferSize)
	if !rawMode {
		// Only ask for a whole magic number when the first byte could start
		// one: an interactive stdin must not wait for more than a line.
		head, err := br.Peek(1)
		if err == nil && codec.MagicStart(head[0]) {
			head, err = br.Peek(codec.SniffLen)
		}
		if err != nil && err != io.EOF {
			return err
		}
		h.format = codec.Sniff(head)
	}
	if h.format == codec.None {
		h.br = br
		return nil
	}
	dec, err := codec.NewReader(h.format, br)
	if err != nil {
		return fmt.Errorf("%s stream: %w", h.format, err)
	}
	h.closers = append(h.closers, dec)
	h.br = bufio.NewReaderSize(dec, readBufferSize)
	return nil
}
