// Package tools provides the tool catalog, argument sanitization and
// execution pipeline exposed to the LLM.
//
// Tools are schema-described, parameterized, read-only data-access
// operations. Instead of parsing model text output, the model fills
// structured contracts via tool calls; everything the model sends back is
// treated as untrusted input.
package tools

import (
	"encoding/json"
	"fmt"
)

// Schema defines a JSON Schema for tool parameters.
// This is sent to the model so it knows the exact structure to return.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single property in a JSON Schema.
type Property struct {
	Type        TypeSpec `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// TypeSpec holds a JSON Schema type declaration, which may be a single type
// name or a union like ["integer", "null"].
type TypeSpec []string

// UnmarshalJSON accepts both the string and array forms.
func (t *TypeSpec) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeSpec{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or array of strings: %w", err)
	}
	*t = TypeSpec(many)
	return nil
}

// MarshalJSON renders the single-type form when possible.
func (t TypeSpec) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Primary collapses a union type to its sole non-null branch. It returns ""
// when the declaration is absent or ambiguous.
func (t TypeSpec) Primary() string {
	var nonNull []string
	for _, name := range t {
		if name != "null" {
			nonNull = append(nonNull, name)
		}
	}
	if len(nonNull) == 1 {
		return nonNull[0]
	}
	return ""
}
