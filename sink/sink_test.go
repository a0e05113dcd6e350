package sink

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnodel/derrik/internal/codec"
)

func TestStdoutSinkBuffers(t *testing.T) {
	var out bytes.Buffer
	s, err := Open(Options{Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, "<stdout>", s.Name())

	require.NoError(t, s.WriteLine([]byte(`{"a":1}`)))
	require.NoError(t, s.WriteLine([]byte(`{"b":2}`)))
	assert.Empty(t, out.String(), "nothing should reach the destination before Flush")

	require.NoError(t, s.Flush())
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", out.String())
	require.NoError(t, s.Close())
}

func TestLineBuffered(t *testing.T) {
	var out bytes.Buffer
	s, err := Open(Options{Stdout: &out, LineBuffered: true})
	require.NoError(t, err)
	require.NoError(t, s.WriteLine([]byte("x")))
	assert.Equal(t, "x\n", out.String())
}

func TestFileSinkTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old content that is long\n"), 0o644))

	s, err := Open(Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, s.Name())
	require.NoError(t, s.WriteLine([]byte("new")))
	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))
}

func TestFileSinkCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".gz", ".zst", ".lz4"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "out.jsonl"+ext)
			s, err := Open(Options{Path: path})
			require.NoError(t, err)
			require.NoError(t, s.WriteLine([]byte(`{"a":1}`)))
			require.NoError(t, s.WriteLine([]byte(`{"b":2}`)))
			require.NoError(t, s.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			format := codec.Sniff(raw)
			assert.Equal(t, codec.FromPath(path), format)
			r, err := codec.NewReader(format, bytes.NewReader(raw))
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(got))
		})
	}
}

func TestCompressionOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gz")
	none := codec.None
	s, err := Open(Options{Path: path, Compression: &none})
	require.NoError(t, err)
	require.NoError(t, s.WriteLine([]byte("plain")))
	require.NoError(t, s.Close())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plain\n", string(got))
}

func TestStdoutCompressed(t *testing.T) {
	var out bytes.Buffer
	zstd := codec.Zstd
	s, err := Open(Options{Stdout: &out, Compression: &zstd})
	require.NoError(t, err)
	require.NoError(t, s.WriteLine([]byte(`{"a":1}`)))
	require.NoError(t, s.Close())

	require.Equal(t, codec.Zstd, codec.Sniff(out.Bytes()))
	r, err := codec.NewReader(codec.Zstd, &out)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(got))
}

func TestOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.jsonl")
	_, err := Open(Options{Path: path})
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, path, openErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAbortDiscardsBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.WriteLine([]byte("never written")))
	require.NoError(t, s.Abort())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, s.WriteLine([]byte("x")), ErrClosed)
	assert.ErrorIs(t, s.Flush(), ErrClosed)
	assert.NoError(t, s.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, syscall.EPIPE
}

func TestFlushError(t *testing.T) {
	s, err := Open(Options{Stdout: failingWriter{}})
	require.NoError(t, err)
	require.NoError(t, s.WriteLine([]byte("x")))
	err = s.Flush()
	require.Error(t, err)
	assert.True(t, IsBrokenPipe(err))
}

func TestIsBrokenPipe(t *testing.T) {
	assert.False(t, IsBrokenPipe(nil))
	assert.False(t, IsBrokenPipe(errors.New("other")))
	assert.True(t, IsBrokenPipe(io.ErrClosedPipe))
	assert.True(t, IsBrokenPipe(&os.PathError{Op: "write", Path: "/dev/stdout", Err: syscall.EPIPE}))
}
