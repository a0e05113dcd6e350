// Package source reads the lines of an ordered list of input locations.
//
// A Reader opens each location in turn, only once the previous one has been
// read to the end, and returns its lines one at a time:
//
//	r := source.NewReader([]string{"a.jsonl", "b.jsonl.gz"}, source.Options{})
//	defer r.Close()
//	for {
//	    line, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    var lineErr *source.LineError
//	    if errors.As(err, &lineErr) {
//	        continue // the line could not be decoded, the next one may be fine
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    use(line.Text)
//	}
//
// Locations are local paths, "-" for standard input, or s3://bucket/key.
// Compressed content (gzip, zstd, lz4) is detected and decompressed.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Stdin is the location that designates standard input.
const Stdin = "-"

// Options control how locations are opened.
type Options struct {
	// Raw disables detection of compressed content.
	Raw bool

	// Stdin replaces os.Stdin for the "-" location.
	Stdin io.Reader

	// S3 configures access to s3:// locations.
	S3 S3Options
}

// A Line is one line of input, without its terminator.
type Line struct {
	Location string
	Number   int // 1-based, per location
	Text     []byte
}

var (
	// ErrInvalidUTF8 is wrapped by a LineError for lines that are not UTF-8
	// text.
	ErrInvalidUTF8 = errors.New("line is not valid UTF-8")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("source reader is closed")
)

// OpenError reports a location that could not be opened.  It ends the read.
type OpenError struct {
	Location string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open %s: %s", e.Location, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// LineError reports a line that could not be decoded.  Only that line is
// lost; reading can continue.
type LineError struct {
	Location string
	Number   int
	Err      error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("error reading line %d of %s: %s", e.Number, e.Location, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ReadError reports a failure of the underlying stream.  It ends the read.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("error reading %s: %s", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader returns the lines of a list of locations, in order.
type Reader struct {
	locations []string
	opts      Options
	s3        ObjectGetter

	next   int     // index in locations of the next location to open
	opened int
	cur    *handle // nil between locations
	lineNo int
	buf    []byte

	// Sticky: once set, Next always returns it.
	err error
}

// NewReader returns a Reader over locations.  Nothing is opened until the
// first call to Next.
func NewReader(locations []string, opts Options) *Reader {
	return &Reader{
		locations: locations,
		opts:      opts,
		s3:        opts.S3.Getter,
	}
}

// Opened returns the number of locations opened so far.
func (r *Reader) Opened() int {
	return r.opened
}

// Next returns the next line.  It returns io.EOF after the last line of the
// last location.  A *LineError means that one line was skipped and Next can
// be called again; any other error is final and is returned by every later
// call.  The Text of the returned line is only valid until the next call.
func (r *Reader) Next() (Line, error) {
	if r.err != nil {
		return Line{}, r.err
	}
	for {
		if r.cur == nil {
			if r.next >= len(r.locations) {
				r.err = io.EOF
				return Line{}, io.EOF
			}
			location := r.locations[r.next]
			r.next++
			h, err := r.open(location)
			if err != nil {
				r.err = &OpenError{Location: location, Err: err}
				return Line{}, r.err
			}
			r.cur = h
			r.opened++
			r.lineNo = 0
		}
		text, err := r.readLine()
		if err == io.EOF {
			if err := r.closeCurrent(); err != nil {
				return Line{}, r.err
			}
			continue
		}
		if err != nil {
			r.fail(&ReadError{Location: r.cur.location, Err: err})
			return Line{}, r.err
		}
		r.lineNo++
		if !utf8.Valid(text) {
			return Line{}, &LineError{Location: r.cur.location, Number: r.lineNo, Err: ErrInvalidUTF8}
		}
		return Line{Location: r.cur.location, Number: r.lineNo, Text: text}, nil
	}
}

// readLine returns the next line of the current location, without its
// terminator.  A line ending in "\r\n" loses both characters.  A final line
// with no terminator is returned as is.
func (r *Reader) readLine() ([]byte, error) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.cur.br.ReadSlice('\n')
		switch err {
		case nil:
			if len(r.buf) == 0 {
				return trimEOL(chunk), nil
			}
			r.buf = append(r.buf, chunk...)
			return trimEOL(r.buf), nil
		case bufio.ErrBufferFull:
			r.buf = append(r.buf, chunk...)
		case io.EOF:
			r.buf = append(r.buf, chunk...)
			if len(r.buf) == 0 {
				return nil, io.EOF
			}
			return r.buf, nil
		default:
			return nil, err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

func (r *Reader) closeCurrent() error {
	h := r.cur
	r.cur = nil
	if err := h.Close(); err != nil {
		r.err = &ReadError{Location: h.location, Err: err}
		return r.err
	}
	return nil
}

func (r *Reader) fail(err error) {
	r.err = err
	if r.cur != nil {
		r.cur.Close()
		r.cur = nil
	}
}

// Close releases the location being read, if any.  Later calls to Next
// return ErrClosed.
func (r *Reader) Close() error {
	var err error
	if r.cur != nil {
		err = r.cur.Close()
		r.cur = nil
	}
	if r.err == nil || r.err == io.EOF {
		r.err = ErrClosed
	}
	return err
}

func (r *Reader) stdin() io.Reader {
	if r.opts.Stdin != nil {
		return r.opts.Stdin
	}
	return os.Stdin
}
