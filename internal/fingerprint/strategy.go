package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors describing why a single query tier produced no sample.
var (
	ErrUnparsable  = errors.New("query output not in expected format")
	ErrPlaceholder = errors.New("query returned a placeholder value")
)

// RawSample is the unvalidated value extracted from one query.
type RawSample struct {
	Method string
	Text   string
}

// Strategy is one tier of a fallback chain.
type Strategy interface {
	// Name identifies the tier in logs and in the resolved result.
	Name() string
	// Attempt runs the tier's query. Any failure is reported as an error;
	// the chain treats every error the same way and moves on.
	Attempt(ctx context.Context) (RawSample, error)
}

// QueryError records why one tier failed. It is logged by the resolvers and
// never returned to their callers.
type QueryError struct {
	Method string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Parser extracts a candidate value from a utility's output.
// It reports false when the output does not have the expected shape.
type Parser func(output string) (string, bool)

// Query is a Strategy that runs one platform utility and parses its output.
type Query struct {
	Method  string
	Command string
	Args    []string
	Parse   Parser

	// Runner executes the command. Nil means ExecRunner.
	Runner Runner
}

// Name implements Strategy.
func (q *Query) Name() string {
	return q.Method
}

// Attempt implements Strategy.
func (q *Query) Attempt(ctx context.Context) (RawSample, error) {
	runner := q.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, q.Command, q.Args...)
	if err != nil {
		return RawSample{}, &QueryError{Method: q.Method, Err: fmt.Errorf("run %s: %w", q.Command, err)}
	}

	parse := q.Parse
	if parse == nil {
		parse = SingleValue
	}

	// Utilities sometimes emit stray bytes in localized output; replace them
	// rather than rejecting the whole sample.
	value, ok := parse(strings.ToValidUTF8(string(out), "\uFFFD"))
	if !ok {
		return RawSample{}, &QueryError{Method: q.Method, Err: ErrUnparsable}
	}
	return RawSample{Method: q.Method, Text: value}, nil
}

// SingleValue treats the whole output as the value.
func SingleValue(output string) (string, bool) {
	v := strings.TrimSpace(output)
	return v, v != ""
}

// KeyValue returns a Parser that finds the first line whose trimmed text
// starts with key followed by sep and returns the remainder, with spaces and
// double quotes removed.
//
//	KeyValue("UUID", "=")            // wmic /value output
//	KeyValue(`"IOPlatformUUID"`, "=") // ioreg output
func KeyValue(key, sep string) Parser {
	return func(output string) (string, bool) {
		for _, line := range strings.Split(output, "\n") {
			line = strings.TrimSpace(line)
			rest, ok := strings.CutPrefix(line, key)
			if !ok {
				continue
			}
			rest = strings.TrimSpace(rest)
			rest, ok = strings.CutPrefix(rest, sep)
			if !ok {
				continue
			}
			v := strings.Trim(strings.TrimSpace(rest), `"`)
			return v, v != ""
		}
		return "", false
	}
}

// LastField returns a Parser that finds the first line containing marker and
// returns its last whitespace-separated field.
func LastField(marker string) Parser {
	return func(output string) (string, bool) {
		for _, line := range strings.Split(output, "\n") {
			if !strings.Contains(line, marker) {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return "", false
			}
			return fields[len(fields)-1], true
		}
		return "", false
	}
}
