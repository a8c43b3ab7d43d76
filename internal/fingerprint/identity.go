package fingerprint

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrTotalResolutionFailure is returned when no tier produced a usable sample.
var ErrTotalResolutionFailure = errors.New("unable to retrieve system identifier from any available method")

// Identity is a resolved machine fingerprint.
type Identity struct {
	// Hash is the lowercase hex SHA-256 of the winning sample.
	Hash string `json:"hash"`
	// Method names the tier that produced the sample.
	Method string `json:"method"`
}

// identityPlaceholders are values a utility prints when it has nothing real
// to report: column headers, firmware defaults and nil UUIDs.
var identityPlaceholders = []string{
	"uuid",
	"machineguid",
	"hardware uuid",
	"none",
	"null",
	"n/a",
	"not available",
	"not specified",
	"default string",
	"system serial number",
	"to be filled by o.e.m.",
	"00000000-0000-0000-0000-000000000000",
	"ffffffff-ffff-ffff-ffff-ffffffffffff",
}

// Resolver walks an ordered chain of strategies and hashes the first valid
// sample.
type Resolver struct {
	strategies   []Strategy
	placeholders map[string]struct{}
}

// NewResolver creates a Resolver that tries strategies in the given order.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies:   strategies,
		placeholders: placeholderSet(identityPlaceholders),
	}
}

// DefaultResolver returns the Resolver for the current platform.
// A nil runner means ExecRunner.
func DefaultResolver(runner Runner) *Resolver {
	return NewResolver(identityStrategies(runner)...)
}

// Methods returns the tier names in evaluation order.
func (r *Resolver) Methods() []string {
	return strategyNames(r.strategies)
}

// Resolve returns the fingerprint from the first tier that produces a valid
// sample. Later tiers are not invoked. Per-tier failures are logged at debug
// level and never returned; if every tier fails the result is
// ErrTotalResolutionFailure.
//
// Resolve applies no timeout of its own. A query that hangs blocks until ctx
// is cancelled.
func (r *Resolver) Resolve(ctx context.Context) (Identity, error) {
	log := slog.With("component", "fingerprint")

	for i, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Identity{}, err
		}

		sample, err := attempt(ctx, s, r.placeholders)
		if err != nil {
			log.Debug("identity tier failed", "tier", i+1, "method", s.Name(), "error", err)
			continue
		}

		log.Debug("identity resolved", "tier", i+1, "method", sample.Method)
		return Identity{
			Hash:   Hash(sample.Text),
			Method: sample.Method,
		}, nil
	}

	return Identity{}, ErrTotalResolutionFailure
}

// attempt runs one strategy and validates its sample.
func attempt(ctx context.Context, s Strategy, placeholders map[string]struct{}) (RawSample, error) {
	sample, err := s.Attempt(ctx)
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) {
			return RawSample{}, err
		}
		return RawSample{}, &QueryError{Method: s.Name(), Err: err}
	}
	if sample.Method == "" {
		sample.Method = s.Name()
	}

	text := strings.TrimSpace(sample.Text)
	if text == "" {
		return RawSample{}, &QueryError{Method: sample.Method, Err: ErrUnparsable}
	}
	if _, ok := placeholders[strings.ToLower(text)]; ok {
		return RawSample{}, &QueryError{Method: sample.Method, Err: ErrPlaceholder}
	}
	sample.Text = text
	return sample, nil
}

func placeholderSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func strategyNames(strategies []Strategy) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	return names
}
