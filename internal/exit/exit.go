// Package exit carries the outcome of a command to the top of main: the
// process exit code and a final message.
package exit

import (
	"fmt"
	"io"
)

// Exit codes.
const (
	CodeSuccess = 0
	CodeFailure = 1 // the run failed (I/O)
	CodeUsage   = 2 // the run could not start (flags, config)
)

// Stream selects where a Result message is printed.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Result holds the output destination and exit code for program termination.
type Result struct {
	Stream   Stream
	ExitCode int
	Message  string
}

// Print writes the result message to stdout or stderr, depending on r.Stream.
func (r *Result) Print(stdout, stderr io.Writer) {
	if r.Message == "" {
		return
	}
	w := stdout
	if r.Stream == Stderr {
		w = stderr
	}
	fmt.Fprint(w, r.Message)
}

// Success creates a successful exit result that outputs to stdout with exit code 0.
func Success(message string) *Result {
	return &Result{
		Stream:   Stdout,
		ExitCode: CodeSuccess,
		Message:  message,
	}
}

// Error creates an error exit result that outputs to stderr with exit code 1.
func Error(message string) *Result {
	return &Result{
		Stream:   Stderr,
		ExitCode: CodeFailure,
		Message:  message,
	}
}

// Errorf creates an error exit result with formatted message.
func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// Usage creates an exit result for a command that could not start, with exit
// code 2.
func Usage(message string) *Result {
	return &Result{
		Stream:   Stderr,
		ExitCode: CodeUsage,
		Message:  message,
	}
}

// Usagef is Usage with a formatted message.
func Usagef(format string, a ...any) *Result {
	return Usage(fmt.Sprintf(format, a...))
}
