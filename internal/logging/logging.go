// Package logging builds the diagnostic logger used by derrik.  Records are
// written as slog text, one per line, optionally colored by level.
package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Some color ANSI codes
var (
	reset     = []byte("\033[0m")
	red       = []byte("\033[31m")
	yellow    = []byte("\033[33m")
	dimWhite  = []byte("\033[37;2m")
	noColor   = []byte(nil)
	allColors = map[slog.Level][]byte{
		slog.LevelDebug: dimWhite,
		slog.LevelInfo:  noColor,
		slog.LevelWarn:  yellow,
		slog.LevelError: red,
	}
)

// New returns a logger writing to w records at level or above.  When color is
// true each record is wrapped in the ANSI color of its level.
func New(w io.Writer, level slog.Leveler, color bool) *slog.Logger {
	if !color {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	buf := new(bytes.Buffer)
	return slog.New(&colorHandler{
		Handler: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}),
		buf:     buf,
		mu:      new(sync.Mutex),
		out:     w,
	})
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Level maps the -v count and the -q flag to a minimum level.  Quiet wins.
func Level(verbose int, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError
	case verbose <= 0:
		return slog.LevelWarn
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// WithRun tags every record of logger with a fresh run id.
func WithRun(logger *slog.Logger) *slog.Logger {
	return logger.With("run", uuid.NewString())
}

// colorHandler renders a record with the text handler into buf, then copies
// it to out between color codes.  The handlers derived through WithAttrs and
// WithGroup share buf and mu.
type colorHandler struct {
	slog.Handler
	buf *bytes.Buffer
	mu  *sync.Mutex
	out io.Writer
}

func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}
	line := bytes.TrimSuffix(h.buf.Bytes(), []byte{'\n'})
	color := levelColor(r.Level)
	var out []byte
	if color == nil {
		out = append(line, '\n')
	} else {
		out = make([]byte, 0, len(color)+len(line)+len(reset)+1)
		out = append(out, color...)
		out = append(out, line...)
		out = append(out, reset...)
		out = append(out, '\n')
	}
	_, err := h.out.Write(out)
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithAttrs(attrs), buf: h.buf, mu: h.mu, out: h.out}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithGroup(name), buf: h.buf, mu: h.mu, out: h.out}
}

func levelColor(level slog.Level) []byte {
	switch {
	case level >= slog.LevelError:
		return allColors[slog.LevelError]
	case level >= slog.LevelWarn:
		return allColors[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return allColors[slog.LevelInfo]
	default:
		return allColors[slog.LevelDebug]
	}
}

// Throttle limits how often a repeated diagnostic is emitted: the first few
// occurrences, then at most one per interval.  It counts what it drops.
type Throttle struct {
	sometimes rate.Sometimes
	seen      int
	emitted   int
}

// NewThrottle returns a Throttle that lets the first calls through, then one
// call per interval.
func NewThrottle(first int, interval time.Duration) *Throttle {
	return &Throttle{sometimes: rate.Sometimes{First: first, Interval: interval}}
}

// Do calls f unless the throttle is holding back.
func (t *Throttle) Do(f func()) {
	t.seen++
	t.sometimes.Do(func() {
		t.emitted++
		f()
	})
}

// Suppressed is the number of calls to Do that did not call f.
func (t *Throttle) Suppressed() int {
	return t.seen - t.emitted
}
