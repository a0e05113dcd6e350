package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/arnodel/derrik"
	"github.com/arnodel/derrik/internal/config"
	"github.com/arnodel/derrik/internal/exit"
	"github.com/arnodel/derrik/internal/logging"
	"github.com/arnodel/derrik/sink"
	"github.com/arnodel/derrik/source"
)

func main() {
	// Do not handle SIGPIPE, we'll do it ourselves (see exitResult).
	signal.Ignore(syscall.SIGPIPE)

	code := exit.CodeFailure
	func() {
		// Display a stack trace on panic
		defer func() {
			if e := recover(); e != nil {
				fmt.Fprintf(os.Stderr, "%s: %s", e, debug.Stack())
			}
		}()
		code = run(os.Args[1:], os.Stdin, os.Stdout, colorable.NewColorableStderr())
	}()
	os.Exit(code)
}

// run executes the command line args (without the program name) and returns
// the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var res *exit.Result
	if len(args) == 0 {
		res = exit.Usagef("derrik: no command given\n\n%s", config.Usage())
	} else {
		switch cmd := args[0]; cmd {
		case "filter":
			res = runFilter(args, stdin, stdout, stderr)
		case "read":
			res = runRead(args, stdin, stdout)
		case "version":
			res = exit.Success(version())
		case "help", "-h", "-help", "--help":
			res = exit.Success(config.Usage())
		default:
			res = exit.Usagef("derrik: unknown command %q\n\n%s", cmd, config.Usage())
		}
	}
	res.Print(stdout, stderr)
	return res.ExitCode
}

func runFilter(args []string, stdin io.Reader, stdout, stderr io.Writer) *exit.Result {
	cfg, res := config.Parse(args)
	if res != nil {
		return res
	}
	level := logging.Level(cfg.Verbose, cfg.Quiet)
	logger := logging.WithRun(logging.New(stderr, level, isTerminal(stderr)))

	filterCfg := cfg.Filter()
	filterCfg.Logger = logger
	filterCfg.Source.Stdin = stdin
	filterCfg.Sink.Stdout = stdout

	// If we are writing to a terminal, flush after each line so the user gets
	// feedback early.
	filterCfg.Sink.LineBuffered = cfg.Output == "" && isTerminal(stdout)

	_, err := derrik.Filter(filterCfg)
	return exitResult(err)
}

func exitResult(err error) *exit.Result {
	var cfgErr *derrik.ConfigError
	switch {
	case err == nil:
		return exit.Success("")
	case errors.Is(err, derrik.ErrOutputClosed):
		// stdout is a pipe and something closed it (e.g. 'head' or 'less').
		// In this case we don't want to complain.
		return exit.Success("")
	case errors.As(err, &cfgErr):
		return exit.Usagef("derrik: %s\n\n%s", err, config.FilterUsage())
	default:
		return exit.Errorf("derrik: %s\n", err)
	}
}

// runRead copies the content of each location to stdout.
func runRead(args []string, stdin io.Reader, stdout io.Writer) *exit.Result {
	cfg, res := config.ParseRead(args)
	if res != nil {
		return res
	}
	opts := source.Options{Raw: cfg.Raw, Stdin: stdin, S3: cfg.S3}
	for _, location := range cfg.Locations {
		if err := copyLocation(stdout, location, opts); err != nil {
			if sink.IsBrokenPipe(err) {
				return exit.Success("")
			}
			return exit.Errorf("derrik: %s\n", err)
		}
	}
	return exit.Success("")
}

func copyLocation(w io.Writer, location string, opts source.Options) error {
	r, err := source.Open(location, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying %s: %w", location, err)
	}
	return nil
}

func version() string {
	v := "unknown"
	goVersion := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		v = info.Main.Version
		goVersion = info.GoVersion
	}
	return fmt.Sprintf("derrik %s %s\n", v, goVersion)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
