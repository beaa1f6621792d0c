// Package resolver computes effective parameter values for a node version.
//
// Values cascade across three levels: the catalog default, the value pinned
// on the version, and the value set on a subnode instance. The most specific
// level wins. An empty string at the version or subnode level counts as
// unset and falls through to the next level down. Resolution is a pure
// computation over its input; it touches no storage and has no side effects.
package resolver

import (
	"fmt"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Source identifies which cascade level produced a resolved value.
type Source string

const (
	SourceDefault Source = "default"
	SourceVersion Source = "version"
	SourceSubNode Source = "subnode"
)

// Input carries everything resolution needs, pre-fetched by the caller.
type Input struct {
	// Parameters is the catalog, keyed by parameter ID.
	Parameters map[string]*models.Parameter

	// VersionParams are the parameter attachments of the version being
	// resolved.
	VersionParams []*models.NodeParameter

	// SubNodeValues are instance-level overrides, empty when resolving a
	// bare version.
	SubNodeValues []*models.SubNodeParameterValue
}

// Value is a resolved parameter with the level that supplied it.
type Value struct {
	Key      string               `json:"key"`
	Value    string               `json:"value"`
	Datatype models.ParameterType `json:"datatype"`
	Source   Source               `json:"source"`
}

// Resolve returns the effective value for every parameter visible to the
// version, keyed by parameter key. A catalog parameter is visible when the
// version attaches it or a subnode override targets it; unattached catalog
// entries stay out of the result.
func Resolve(input Input) map[string]string {
	resolved := make(map[string]string)

	for _, value := range Annotated(input) {
		resolved[value.Key] = value.Value
	}

	return resolved
}

// Annotated resolves like Resolve but reports the cascade level each value
// came from, sorted by key for stable output.
func Annotated(input Input) []Value {
	byID := make(map[string]*Value)

	for _, attached := range input.VersionParams {
		parameter, ok := input.Parameters[attached.ParameterID]
		if !ok {
			continue
		}

		value := &Value{
			Key:      parameter.Key,
			Datatype: parameter.Datatype,
		}

		if attached.Value != "" {
			value.Value = attached.Value
			value.Source = SourceVersion
		} else {
			value.Value = parameter.DefaultValue
			value.Source = SourceDefault
		}

		byID[attached.ParameterID] = value
	}

	for _, override := range input.SubNodeValues {
		parameter, ok := input.Parameters[override.ParameterID]
		if !ok {
			continue
		}

		value, ok := byID[override.ParameterID]
		if !ok {
			// Override without a version attachment still surfaces the
			// parameter.
			value = &Value{
				Key:      parameter.Key,
				Value:    parameter.DefaultValue,
				Datatype: parameter.Datatype,
				Source:   SourceDefault,
			}
			byID[override.ParameterID] = value
		}

		// Empty means unset at this level; the level below stands.
		if override.Value == "" {
			continue
		}

		value.Value = override.Value
		value.Source = SourceSubNode
	}

	values := make([]Value, 0, len(byID))
	for _, value := range byID {
		values = append(values, *value)
	}

	sort.Slice(values, func(i, j int) bool { return values[i].Key < values[j].Key })

	return values
}

// Coerced resolves and converts every value to its datatype's native Go
// representation. Conversion failures surface per key so callers can report
// which parameter is malformed.
func Coerced(input Input) (map[string]any, error) {
	coerced := make(map[string]any)

	for _, value := range Annotated(input) {
		native, err := value.Datatype.Coerce(value.Value)
		if err != nil {
			return nil, &CoercionError{Key: value.Key, Value: value.Value, Err: err}
		}

		coerced[value.Key] = native
	}

	return coerced, nil
}

// CoercionError reports a resolved value that does not parse as its
// parameter's datatype.
type CoercionError struct {
	Key   string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("parameter %s: value %q does not match datatype: %s", e.Key, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }
