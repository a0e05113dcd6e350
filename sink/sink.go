// Package sink is the single destination of a filtering run: standard output
// or a file created for the purpose.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/arnodel/derrik/internal/codec"
)

// Options select the destination.
type Options struct {
	// Path of the file to create.  Empty means standard output.
	Path string

	// Stdout replaces os.Stdout when Path is empty.
	Stdout io.Writer

	// LineBuffered flushes after every line instead of only on Flush.
	LineBuffered bool

	// Compression overrides the format chosen from the extension of Path.
	// Standard output is only compressed when it is set.
	Compression *codec.Format
}

// OpenError reports a destination that could not be created.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot create %s: %s", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned when writing to a sink after Close or Abort.
var ErrClosed = errors.New("sink is closed")

// Sink appends lines to a buffered destination.
type Sink struct {
	name         string
	out          *bufio.Writer
	compressor   io.WriteCloser // nil when not compressing
	file         *os.File       // nil for standard output
	lineBuffered bool
	closed       bool
}

// Open resolves the destination.  A file is created, or truncated if it
// exists; it is compressed if its extension is .gz, .zst or .lz4, unless
// opts.Compression says otherwise.
func Open(opts Options) (*Sink, error) {
	s := &Sink{lineBuffered: opts.LineBuffered}
	format := codec.None
	if opts.Compression != nil {
		format = *opts.Compression
	}
	var w io.Writer
	if opts.Path == "" {
		s.name = "<stdout>"
		w = opts.Stdout
		if w == nil {
			w = os.Stdout
		}
	} else {
		f, err := os.Create(opts.Path)
		if err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				err = pathErr.Err
			}
			return nil, &OpenError{Path: opts.Path, Err: err}
		}
		s.name = opts.Path
		s.file = f
		w = f
		if opts.Compression == nil {
			format = codec.FromPath(opts.Path)
		}
	}
	if format != codec.None {
		compressor, err := codec.NewWriter(format, w)
		if err != nil {
			if s.file != nil {
				s.file.Close()
			}
			return nil, &OpenError{Path: s.name, Err: err}
		}
		s.compressor = compressor
		w = compressor
	}
	s.out = bufio.NewWriter(w)
	return s, nil
}

// Name is the file path, or "<stdout>".
func (s *Sink) Name() string {
	return s.name
}

// WriteLine appends line and a newline.
func (s *Sink) WriteLine(line []byte) error {
	if s.closed {
		return ErrClosed
	}
	if _, err := s.out.Write(line); err != nil {
		return err
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return err
	}
	if s.lineBuffered {
		return s.Flush()
	}
	return nil
}

// Flush writes buffered lines to the destination.  When compressing, the
// compressor is flushed too so that everything written so far is readable.
func (s *Sink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.out.Flush(); err != nil {
		return err
	}
	if f, ok := s.compressor.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes, terminates the compressed stream and closes the file.
// Standard output is flushed but not closed.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	errs := []error{s.out.Flush()}
	s.closed = true
	if s.compressor != nil {
		errs = append(errs, s.compressor.Close())
	}
	if s.file != nil {
		errs = append(errs, s.file.Close())
	}
	return errors.Join(errs...)
}

// Abort releases the destination without writing what is still buffered.
func (s *Sink) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// IsBrokenPipe reports whether an error is a broken pipe / closed pipe.
// This happens when the reader of standard output (like `head`) exits early.
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}
