// Package config turns the command line of the derrik subcommands, and the
// optional YAML configuration file, into a validated configuration.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/arnodel/derrik"
	"github.com/arnodel/derrik/internal/codec"
	"github.com/arnodel/derrik/internal/exit"
	"github.com/arnodel/derrik/match"
	"github.com/arnodel/derrik/sink"
	"github.com/arnodel/derrik/source"
)

var (
	ErrNoArguments = errors.New("no arguments provided")
	ErrEmptyWhere  = errors.New("-where needs at least one field name")
)

// Config is the configuration of the filter subcommand.
type Config struct {
	Spec     match.Spec
	Inputs   []string
	Output   string        // empty for standard output
	Compress *codec.Format // nil to choose from the Output extension
	Raw      bool
	S3       source.S3Options
	Verbose  int
	Quiet    bool
}

// ReadConfig is the configuration of the read subcommand.
type ReadConfig struct {
	Locations []string
	Raw       bool
	S3        source.S3Options
}

// File is the content of a -config file.
type File struct {
	Where    []string       `yaml:"where"`
	Operator match.Operator `yaml:"operator"`
	What     string         `yaml:"what"`
	Output   string         `yaml:"output"`
	Compress string         `yaml:"compress"`
	Inputs   []string       `yaml:"inputs"`
	Raw      bool           `yaml:"raw"`
	S3       struct {
		Endpoint string `yaml:"endpoint"`
		Region   string `yaml:"region"`
		Insecure bool   `yaml:"insecure"`
	} `yaml:"s3"`
}

// LoadFile reads a configuration file.  Unknown keys are an error.  An empty
// file is a valid, empty configuration.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file File
	if len(bytes.TrimSpace(data)) == 0 {
		return &file, nil
	}
	if err := yaml.UnmarshalWithOptions(data, &file, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &file, nil
}

// whereFlag implements flag.Value for -where.  It can be used multiple times
// and each value is split on spaces and commas.
type whereFlag []string

func (w *whereFlag) String() string {
	return strings.Join(*w, ",")
}

func (w *whereFlag) Set(value string) error {
	fields := splitFields(value)
	if len(fields) == 0 {
		return ErrEmptyWhere
	}
	*w = append(*w, fields...)
	return nil
}

func splitFields(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// countFlag implements flag.Value for -v, which counts its occurrences.
type countFlag int

func (c *countFlag) String() string {
	return strconv.Itoa(int(*c))
}

func (c *countFlag) Set(value string) error {
	on, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	if on {
		*c++
	}
	return nil
}

func (c *countFlag) IsBoolFlag() bool {
	return true
}

type s3Flags struct {
	endpoint, region *string
	insecure         *bool
}

func addS3Flags(fs *flag.FlagSet) s3Flags {
	return s3Flags{
		endpoint: fs.String("s3-endpoint", "", "S3 endpoint as host[:port] (default s3.amazonaws.com)"),
		region:   fs.String("s3-region", "", "S3 region"),
		insecure: fs.Bool("s3-insecure", false, "use plain HTTP for the S3 endpoint"),
	}
}

func (s s3Flags) options() source.S3Options {
	return source.S3Options{Endpoint: *s.endpoint, Region: *s.region, Insecure: *s.insecure}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	// Suppress error output since we handle it ourselves
	fs.SetOutput(io.Discard)
	return fs
}

// Parse parses the arguments of the filter subcommand, args[0] being the
// subcommand name, and returns a validated Config.  If parsing fails or help
// is requested, it returns a nil config and the exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, usageError(ErrNoArguments, FilterUsage())
	}
	fs := newFlagSet(args[0])

	var (
		where      whereFlag
		verbose    countFlag
		what       = fs.String("what", "", "the string to look for")
		operator   = fs.String("operator", "", "contains (default) or icontains")
		output     = fs.String("output", "", "file to write matching lines to (default stdout)")
		compress   = fs.String("compress", "", "none, gzip, zstd or lz4 (default from the -output extension)")
		configFile = fs.String("config", "", "YAML configuration file")
		raw        = fs.Bool("raw", false, "do not decompress inputs")
		quiet      = fs.Bool("q", false, "only log errors")
		veryVerb   = fs.Bool("vv", false, "log debug information")
		s3         = addS3Flags(fs)
	)
	fs.Var(&where, "where", "field(s) to look in (can be used multiple times)")
	fs.Var(&verbose, "v", "log more (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(FilterUsage())
		}
		return nil, usageError(err, FilterUsage())
	}

	cfg := &Config{}
	if *configFile != "" {
		file, err := LoadFile(*configFile)
		if err != nil {
			return nil, usageError(fmt.Errorf("config file: %w", err), FilterUsage())
		}
		if err := cfg.apply(file); err != nil {
			return nil, usageError(fmt.Errorf("config file: %w", err), FilterUsage())
		}
	}

	// Command-line flags take precedence over the config file
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "where":
			cfg.Spec.Fields = where
		case "what":
			cfg.Spec.Needle = *what
		case "operator":
			op, err := match.ParseOperator(*operator)
			if err != nil {
				flagErr = err
			}
			cfg.Spec.Operator = op
		case "output":
			cfg.Output = *output
		case "compress":
			format, err := codec.ParseFormat(*compress)
			if err != nil {
				flagErr = err
			}
			cfg.Compress = &format
		case "raw":
			cfg.Raw = *raw
		case "s3-endpoint":
			cfg.S3.Endpoint = *s3.endpoint
		case "s3-region":
			cfg.S3.Region = *s3.region
		case "s3-insecure":
			cfg.S3.Insecure = *s3.insecure
		}
	})
	if flagErr != nil {
		return nil, usageError(flagErr, FilterUsage())
	}
	if inputs := fs.Args(); len(inputs) > 0 {
		cfg.Inputs = inputs
	}
	cfg.Verbose = int(verbose)
	if *veryVerb {
		cfg.Verbose += 2
	}
	cfg.Quiet = *quiet

	if err := cfg.Validate(); err != nil {
		return nil, usageError(err, FilterUsage())
	}
	return cfg, nil
}

func (c *Config) apply(file *File) error {
	for _, w := range file.Where {
		c.Spec.Fields = append(c.Spec.Fields, splitFields(w)...)
	}
	c.Spec.Operator = file.Operator
	c.Spec.Needle = file.What
	c.Output = file.Output
	if file.Compress != "" {
		format, err := codec.ParseFormat(file.Compress)
		if err != nil {
			return err
		}
		c.Compress = &format
	}
	c.Inputs = file.Inputs
	c.Raw = file.Raw
	c.S3 = source.S3Options{
		Endpoint: file.S3.Endpoint,
		Region:   file.S3.Region,
		Insecure: file.S3.Insecure,
	}
	return nil
}

// Validate checks that the configuration can run.
func (c *Config) Validate() error {
	if err := c.Spec.Validate(); err != nil {
		return err
	}
	if len(c.Inputs) == 0 {
		return derrik.ErrNoInputs
	}
	return nil
}

// Filter returns the run configuration.  The caller supplies the logger and
// the standard streams.
func (c *Config) Filter() derrik.Config {
	return derrik.Config{
		Spec:   c.Spec,
		Inputs: c.Inputs,
		Source: source.Options{Raw: c.Raw, S3: c.S3},
		Sink:   sink.Options{Path: c.Output, Compression: c.Compress},
	}
}

// ParseRead parses the arguments of the read subcommand.
func ParseRead(args []string) (*ReadConfig, *exit.Result) {
	if len(args) == 0 {
		return nil, usageError(ErrNoArguments, ReadUsage())
	}
	fs := newFlagSet(args[0])
	raw := fs.Bool("raw", false, "do not decompress")
	s3 := addS3Flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(ReadUsage())
		}
		return nil, usageError(err, ReadUsage())
	}
	if fs.NArg() == 0 {
		return nil, usageError(derrik.ErrNoInputs, ReadUsage())
	}
	return &ReadConfig{Locations: fs.Args(), Raw: *raw, S3: s3.options()}, nil
}

func usageError(err error, usage string) *exit.Result {
	return exit.Usagef("derrik: %v\n\n%s", &derrik.ConfigError{Err: err}, usage)
}

// Usage returns the general usage string.
func Usage() string {
	return `derrik - filter JSON lines by field content

Usage: derrik <command> [options] [arguments]

Commands:
  filter    print the lines whose fields contain a string
  read      print the content of files, decompressed
  version   print version information

Run 'derrik <command> -h' for the options of a command.
`
}

// FilterUsage returns the usage string of the filter subcommand.
func FilterUsage() string {
	return `Usage: derrik filter [options] INPUT...

Print the JSON lines of the INPUTs in which at least one of the -where
fields contains the -what string.  Lines that are not JSON objects are
skipped.  INPUT is a file, - for standard input or s3://bucket/key.
Compressed inputs (gzip, zstd, lz4) are decompressed.

Options:
  -where FIELDS         field(s) to look in, separated by spaces or commas
                        (can be used multiple times)
  -what STRING          the string to look for
  -operator OP          contains (default) or icontains; icontains lower-cases
                        the field value, not the -what string
  -output FILE          write to FILE instead of stdout (.gz, .zst and .lz4
                        files are compressed)
  -compress FORMAT      compress the output with none, gzip, zstd or lz4
                        whatever the -output extension; also applies to stdout
  -config FILE          read options from a YAML file; options given on the
                        command line take precedence
  -raw                  do not decompress inputs
  -s3-endpoint HOST     S3 endpoint (default s3.amazonaws.com)
  -s3-region REGION     S3 region
  -s3-insecure          use plain HTTP for S3
  -v, -vv               log more
  -q                    only log errors

Examples:
  derrik filter -where name -what John people.jsonl
  derrik filter -where "name description" -what engineer -operator icontains a.jsonl b.jsonl.gz
  zcat logs.gz | derrik filter -where msg -what timeout -
`
}

// ReadUsage returns the usage string of the read subcommand.
func ReadUsage() string {
	return `Usage: derrik read [options] LOCATION...

Print the content of each LOCATION in turn, decompressed.

Options:
  -raw                  do not decompress
  -s3-endpoint HOST     S3 endpoint (default s3.amazonaws.com)
  -s3-region REGION     S3 region
  -s3-insecure          use plain HTTP for S3
`
}
