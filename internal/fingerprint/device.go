package fingerprint

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// UnknownDevice is returned when no source yields a device name.
const UnknownDevice = "Unknown Device"

// namePlaceholders are header lines printed in place of a value.
var namePlaceholders = []string{"name"}

// NameResolver finds a human-readable device name. Unlike Resolver it never
// fails: after the query tiers it falls back to an environment variable and
// finally to UnknownDevice.
type NameResolver struct {
	strategies   []Strategy
	envVar       string
	placeholders map[string]struct{}
}

// NewNameResolver creates a NameResolver that tries strategies in order and
// then reads envVar. An empty envVar skips the environment fallback.
func NewNameResolver(envVar string, strategies ...Strategy) *NameResolver {
	return &NameResolver{
		strategies:   strategies,
		envVar:       envVar,
		placeholders: placeholderSet(namePlaceholders),
	}
}

// DefaultNameResolver returns the NameResolver for the current platform.
func DefaultNameResolver(runner Runner) *NameResolver {
	return NewNameResolver(nameEnvVar, nameStrategies(runner)...)
}

// Methods returns the tier names in evaluation order, including the
// environment and sentinel fallbacks.
func (r *NameResolver) Methods() []string {
	names := strategyNames(r.strategies)
	if r.envVar != "" {
		names = append(names, "env:"+r.envVar)
	}
	return append(names, "sentinel")
}

// Resolve returns the best available device name. The result is never empty.
func (r *NameResolver) Resolve(ctx context.Context) string {
	log := slog.With("component", "fingerprint")

	for i, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		sample, err := attempt(ctx, s, r.placeholders)
		if err != nil {
			log.Debug("device name tier failed", "tier", i+1, "method", s.Name(), "error", err)
			continue
		}
		return sample.Text
	}

	if r.envVar != "" {
		if v := strings.TrimSpace(os.Getenv(r.envVar)); v != "" {
			return v
		}
	}

	log.Debug("device name unresolved, using sentinel")
	return UnknownDevice
}
