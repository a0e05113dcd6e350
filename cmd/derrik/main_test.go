package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnodel/derrik/internal/codec"
)

// runDerrik executes the derrik command line in-process.
func runDerrik(t *testing.T, input string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	exitCode = run(args, strings.NewReader(input), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), exitCode
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func gzipped(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := codec.NewWriter(codec.Gzip, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.String()
}

const people = `{"name":"John Doe","description":"Software Engineer"}
{"name":"Jane Roe","description":"Manager"}
not json
{"name":"johnny","tags":["engineer"]}
`

// TestFilterUsage_Examples runs the examples of the filter usage text.
func TestFilterUsage_Examples(t *testing.T) {
	dir := t.TempDir()
	peopleFile := writeFile(t, dir, "people.jsonl", people)
	writeFile(t, dir, "a.jsonl", `{"name":"Ann","description":"engineer"}`+"\n")
	writeFile(t, dir, "b.jsonl.gz", gzipped(t, `{"name":"Bob","description":"ENGINEER"}`+"\n"))
	logs := `{"msg":"read timeout"}` + "\n" + `{"msg":"ok"}` + "\n"

	tests := []struct {
		name  string
		input string
		args  []string
		want  string
	}{
		{
			name: "single field",
			args: []string{"filter", "-where", "name", "-what", "John", peopleFile},
			want: `{"name":"John Doe","description":"Software Engineer"}` + "\n",
		},
		{
			name: "several fields, case insensitive, compressed input",
			args: []string{
				"filter", "-where", "name description", "-what", "engineer", "-operator", "icontains",
				filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl.gz"),
			},
			want: `{"name":"Ann","description":"engineer"}` + "\n" + `{"name":"Bob","description":"ENGINEER"}` + "\n",
		},
		{
			name:  "standard input",
			input: logs,
			args:  []string{"filter", "-where", "msg", "-what", "timeout", "-"},
			want:  `{"msg":"read timeout"}` + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runDerrik(t, tt.input, tt.args...)
			assert.Equal(t, 0, code, stderr)
			assert.Equal(t, tt.want, stdout)
			assert.Empty(t, stderr)
		})
	}
}

func TestFilterNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)

	stdout, stderr, code := runDerrik(t, "", "filter", "-where", "name", "-what", "JOHN", path)
	assert.Equal(t, 0, code)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)

	// The array value of "tags" is never searched.
	stdout, _, code = runDerrik(t, "", "filter", "-where", "tags", "-what", "engineer", path)
	assert.Equal(t, 0, code)
	assert.Empty(t, stdout)
}

func TestFilterConfigError(t *testing.T) {
	stdout, stderr, code := runDerrik(t, "", "filter", "-what", "x", "in.jsonl")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "invalid configuration")
	assert.Contains(t, stderr, "Usage: derrik filter")
}

func TestFilterMissingInput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	missing := filepath.Join(dir, "missing.jsonl")

	stdout, stderr, code := runDerrik(t, "", "filter", "-where", "name", "-what", "J", path, missing)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "cannot open "+missing)
}

func TestFilterOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	output := filepath.Join(dir, "out.jsonl.gz")

	stdout, stderr, code := runDerrik(t, "", "filter", "-where", "name", "-what", "Roe", "-output", output, path)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)

	// read decompresses it again.
	stdout, stderr, code = runDerrik(t, "", "read", output)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `{"name":"Jane Roe","description":"Manager"}`+"\n", stdout)
}

func TestFilterCompress(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	want := `{"name":"Jane Roe","description":"Manager"}` + "\n"

	stdout, stderr, code := runDerrik(t, "", "filter", "-where", "name", "-what", "Roe", "-compress", "gzip", path)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, codec.Gzip, codec.Sniff([]byte(stdout)))
	got, stderr, code := runDerrik(t, stdout, "read", "-")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, want, got)

	// The flag wins over the extension.
	output := filepath.Join(dir, "out.jsonl.gz")
	_, stderr, code = runDerrik(t, "", "filter", "-where", "name", "-what", "Roe", "-compress", "none", "-output", output, path)
	require.Equal(t, 0, code, stderr)
	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, want, string(raw))
}

func TestFilterUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	output := filepath.Join(dir, "no", "dir", "out.jsonl")

	_, stderr, code := runDerrik(t, "", "filter", "-where", "name", "-what", "Roe", "-output", output, path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cannot create")
}

func TestFilterConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	cfg := writeFile(t, dir, "derrik.yaml", "where: [description]\nwhat: manager\noperator: icontains\ninputs: ["+path+"]\n")

	stdout, stderr, code := runDerrik(t, "", "filter", "-config", cfg)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `{"name":"Jane Roe","description":"Manager"}`+"\n", stdout)
}

func TestFilterVerbose(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)

	_, stderr, code := runDerrik(t, "", "filter", "-v", "-where", "name", "-what", "J", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "level=INFO")
	assert.Contains(t, stderr, "msg=done")
	assert.Contains(t, stderr, "stats.matched=2")
	assert.Contains(t, stderr, "stats.malformed=1")
	assert.Contains(t, stderr, "run=")
	assert.NotContains(t, stderr, "level=DEBUG")

	_, stderr, _ = runDerrik(t, "", "filter", "-vv", "-where", "name", "-what", "J", path)
	assert.Contains(t, stderr, "skipping malformed line")
}

type closedPipe struct{}

func (closedPipe) Write([]byte) (int, error) {
	return 0, syscall.EPIPE
}

func TestFilterBrokenPipe(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.jsonl", people)
	var stderr bytes.Buffer
	code := run([]string{"filter", "-where", "name", "-what", "J", path}, strings.NewReader(""), closedPipe{}, &stderr)
	assert.Equal(t, 0, code)
	assert.Empty(t, stderr.String())
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "no final newline")
	b := writeFile(t, dir, "b.gz", gzipped(t, "line\r\n"))

	stdout, stderr, code := runDerrik(t, "from stdin\n", "read", a, b, "-")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "no final newline"+"line\r\n"+"from stdin\n", stdout)

	stdout, _, code = runDerrik(t, "", "read", "-raw", b)
	require.Equal(t, 0, code)
	assert.Equal(t, gzipped(t, "line\r\n")[:2], stdout[:2])

	_, stderr, code = runDerrik(t, "", "read", filepath.Join(dir, "missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cannot open")
}

func TestCommands(t *testing.T) {
	stdout, _, code := runDerrik(t, "", "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "derrik "), stdout)

	stdout, _, code = runDerrik(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Commands:")

	_, stderr, code := runDerrik(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "no command")

	_, stderr, code = runDerrik(t, "", "grep")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "grep"`)

	stdout, _, code = runDerrik(t, "", "filter", "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage: derrik filter")
}
