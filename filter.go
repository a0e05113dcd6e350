package derrik

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arnodel/derrik/encoding/jsonl"
	"github.com/arnodel/derrik/internal/logging"
	"github.com/arnodel/derrik/match"
	"github.com/arnodel/derrik/sink"
	"github.com/arnodel/derrik/source"
)

var (
	// ErrOutputClosed is returned when the reader of standard output went away
	// before the run completed (e.g. the output was piped into head).
	ErrOutputClosed = errors.New("output closed by reader")

	// ErrNoInputs is wrapped in a ConfigError when Config.Inputs is empty.
	ErrNoInputs = errors.New("no input locations")
)

// ConfigError reports a configuration that cannot run.  Nothing has been
// opened when it is returned.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config describes a filtering run.
type Config struct {
	Spec   match.Spec
	Inputs []string // locations read in this order, see source.NewReader
	Source source.Options
	Sink   sink.Options

	// Logger receives diagnostics.  Nil discards them.
	Logger *slog.Logger
}

// Stats counts what a run has done.
type Stats struct {
	Sources    int // locations opened
	Lines      int // lines read, including those dropped
	Matched    int
	Malformed  int // lines that are not a JSON value
	Unreadable int // lines that are not UTF-8
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("sources", s.Sources),
		slog.Int("lines", s.Lines),
		slog.Int("matched", s.Matched),
		slog.Int("malformed", s.Malformed),
		slog.Int("unreadable", s.Unreadable),
	)
}

// Unreadable lines usually come in bulk (a binary file in the input list), so
// only the first few are reported individually.
const (
	lineWarningsFirst    = 10
	lineWarningsInterval = time.Second
)

// Filter runs cfg to completion: every input is read in order and each line
// that cfg.Spec selects is written to the sink, unchanged.
//
// Lines that are not JSON, or not UTF-8, are dropped and the run goes on.  Any
// other error ends the run: nothing that was still buffered is written and
// the error is returned.  The Stats are valid in all cases.
func Filter(cfg Config) (Stats, error) {
	var stats Stats
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if len(cfg.Inputs) == 0 {
		return stats, &ConfigError{Err: ErrNoInputs}
	}
	matcher, err := match.New(cfg.Spec)
	if err != nil {
		return stats, &ConfigError{Err: err}
	}

	out, err := sink.Open(cfg.Sink)
	if err != nil {
		return stats, err
	}
	logger.Debug("filtering",
		"fields", cfg.Spec.Fields,
		"operator", cfg.Spec.Operator,
		"inputs", len(cfg.Inputs),
		"output", out.Name(),
	)

	r := source.NewReader(cfg.Inputs, cfg.Source)
	defer r.Close()

	throttle := logging.NewThrottle(lineWarningsFirst, lineWarningsInterval)
	for {
		line, err := r.Next()
		stats.Sources = r.Opened()
		if err == io.EOF {
			break
		}
		var lineErr *source.LineError
		if errors.As(err, &lineErr) {
			stats.Lines++
			stats.Unreadable++
			throttle.Do(func() {
				logger.Warn("skipping unreadable line",
					"location", lineErr.Location,
					"line", lineErr.Number,
					"error", lineErr.Err,
				)
			})
			continue
		}
		if err != nil {
			out.Abort()
			return stats, err
		}
		stats.Lines++

		v, err := jsonl.Parse(line.Text)
		if err != nil {
			stats.Malformed++
			logger.Debug("skipping malformed line",
				"location", line.Location,
				"line", line.Number,
				"error", err,
			)
			continue
		}
		field, ok := matcher.MatchField(v)
		if !ok {
			continue
		}
		stats.Matched++
		logger.Debug("match", "location", line.Location, "line", line.Number, "field", field)
		if err := out.WriteLine(line.Text); err != nil {
			return stats, writeFailed(out, err)
		}
	}

	if err := out.Flush(); err != nil {
		return stats, writeFailed(out, err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("closing %s: %w", out.Name(), err)
	}
	if n := throttle.Suppressed(); n > 0 {
		logger.Warn("more unreadable lines were skipped", "count", n)
	}
	logger.Info("done", "stats", stats)
	return stats, nil
}

func writeFailed(out *sink.Sink, err error) error {
	out.Abort()
	if sink.IsBrokenPipe(err) {
		return fmt.Errorf("%w: %w", ErrOutputClosed, err)
	}
	return fmt.Errorf("writing to %s: %w", out.Name(), err)
}
