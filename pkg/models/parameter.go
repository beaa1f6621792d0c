// Package models defines the core domain models for versioned node definitions,
// parameter resolution, and script executions.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ParameterType enumerates the datatypes a catalog parameter may carry.
type ParameterType string

const (
	ParameterTypeString   ParameterType = "string"
	ParameterTypeInteger  ParameterType = "integer"
	ParameterTypeFloat    ParameterType = "float"
	ParameterTypeBoolean  ParameterType = "boolean"
	ParameterTypeDate     ParameterType = "date"
	ParameterTypeDateTime ParameterType = "datetime"
	ParameterTypeJSON     ParameterType = "json"
	ParameterTypeFile     ParameterType = "file"
)

const dateLayout = "2006-01-02"

var (
	// ErrUnknownDatatype indicates a datatype outside the supported set.
	ErrUnknownDatatype = errors.New("unknown parameter datatype")

	// ErrTypeMismatch indicates a value that does not parse under the
	// parameter's datatype.
	ErrTypeMismatch = errors.New("value does not match parameter datatype")
)

// Valid reports whether the datatype is one of the supported set.
func (t ParameterType) Valid() bool {
	switch t {
	case ParameterTypeString, ParameterTypeInteger, ParameterTypeFloat,
		ParameterTypeBoolean, ParameterTypeDate, ParameterTypeDateTime,
		ParameterTypeJSON, ParameterTypeFile:
		return true
	default:
		return false
	}
}

// Check verifies that value parses under the datatype. Empty values are
// accepted for every datatype; absence is handled by the resolution cascade.
func (t ParameterType) Check(value string) error {
	if value == "" {
		return nil
	}

	switch t {
	case ParameterTypeString, ParameterTypeFile:
		return nil
	case ParameterTypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, value)
		}
	case ParameterTypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%w: %q is not a float", ErrTypeMismatch, value)
		}
	case ParameterTypeBoolean:
		switch value {
		case "True", "False", "true", "false", "1", "0":
		default:
			return fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, value)
		}
	case ParameterTypeDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fmt.Errorf("%w: %q is not a date (YYYY-MM-DD)", ErrTypeMismatch, value)
		}
	case ParameterTypeDateTime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("%w: %q is not an RFC 3339 datetime", ErrTypeMismatch, value)
		}
	case ParameterTypeJSON:
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("%w: %q is not valid JSON", ErrTypeMismatch, value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDatatype, t)
	}

	return nil
}

// Coerce converts a stored string value into its typed Go representation.
// Values are persisted as strings and only typed at execution time.
func (t ParameterType) Coerce(value string) (any, error) {
	if err := t.Check(value); err != nil {
		return nil, err
	}

	if value == "" {
		return "", nil
	}

	switch t {
	case ParameterTypeString, ParameterTypeFile:
		return value, nil
	case ParameterTypeInteger:
		return strconv.ParseInt(value, 10, 64)
	case ParameterTypeFloat:
		return strconv.ParseFloat(value, 64)
	case ParameterTypeBoolean:
		return value == "True" || value == "true" || value == "1", nil
	case ParameterTypeDate:
		return time.Parse(dateLayout, value)
	case ParameterTypeDateTime:
		return time.Parse(time.RFC3339, value)
	case ParameterTypeJSON:
		var decoded any

		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}

		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatatype, t)
	}
}

// Parameter is a global catalog definition shared by every node family.
// The key is unique across the catalog and frozen once versions reference it.
type Parameter struct {
	ID           string        `json:"id"`
	Key          string        `json:"key"           validate:"required,min=1,max=100"`
	Datatype     ParameterType `json:"datatype"      validate:"required"`
	DefaultValue string        `json:"default_value"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	CreatedBy    string        `json:"created_by,omitempty"`
}

// Validate checks the datatype and that the default value parses under it.
func (p *Parameter) Validate() error {
	if !p.Datatype.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDatatype, p.Datatype)
	}

	if err := p.Datatype.Check(p.DefaultValue); err != nil {
		return fmt.Errorf("default value: %w", err)
	}

	return nil
}
