// Package scripts loads the executable bodies behind node versions. A
// version's ScriptRef names a unit in a provider; the runner probes the
// loaded unit for an entry point and drives it.
package scripts

import (
	"context"
	"errors"
)

// ErrScriptNotFound indicates a ScriptRef that no provider entry matches.
var ErrScriptNotFound = errors.New("script not found")

// LogFunc receives one log message from a running script.
type LogFunc func(message string)

// Unit is one loaded script body. Exactly one of Entry or NewObject is
// expected to be set; a unit with neither has no entry point.
type Unit struct {
	// Entry is the function-style entry point: it receives the resolved,
	// coerced parameters and a log sink.
	Entry func(ctx context.Context, params map[string]any, logf LogFunc) error

	// NewObject builds a fresh job object. The runner binds exported fields
	// from parameter values by name and then calls its Run method.
	NewObject func() any
}

// Provider resolves a ScriptRef to a freshly built Unit. Implementations
// must not share unit state across loads: two executions of the same
// version, or of a version before and after a republish, never observe each
// other through the script body.
type Provider interface {
	Load(ctx context.Context, scriptRef string) (*Unit, error)
}
