// Package derrik filters newline-delimited JSON records.
//
// A filter reads the lines of one or more inputs, in the order given, and
// writes unchanged the lines whose JSON object has at least one of a set of
// top-level fields containing a substring.  The fields are looked up
// by name only (no nested paths), and the value of a field is compared by its
// JSON rendering, so that for instance a needle of `2` finds {"n": 12} and a
// needle of `"a` finds {"s": "abc"}.
//
// The package is organized into several sub-packages:
//
// - source: reads the lines of files, stdin or s3:// objects, decompressing
//   gzip, zstd and lz4 content on the fly
// - encoding/jsonl: parses one line into a value
// - value: the JSON value model and its rendering
// - match: the filter spec and the field matcher
// - sink: the buffered, optionally compressed destination
//
// These form a pipeline run one line at a time:
//
//    read line -> parse -> match -> write (or drop)
//
// Lines that are not JSON are dropped silently, and lines that cannot be
// decoded as UTF-8 are dropped with a warning.  Neither stops the run.
//
// The CLI utility is in the directory cmd/derrik. You can install it with:
//
//  go install github.com/arnodel/derrik/cmd/derrik
//
package derrik
