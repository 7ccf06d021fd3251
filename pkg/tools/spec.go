package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolSpec describes a single tool: the contract published to the model and
// the SQL template executed on the tool's behalf.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`

	// XQueryFile names the SQL template bound to this tool, relative to
	// the queries directory.
	XQueryFile string `json:"x_query_file"`

	// QueryText is filled by the catalog when the template is loaded.
	QueryText string `json:"-"`

	compiled *jsonschema.Schema
}

// compileSchema compiles the parameter schema once at load time so that a
// malformed definition fails startup instead of the first request.
func (s *ToolSpec) compileSchema() error {
	raw, err := json.Marshal(s.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters for %s: %w", s.Name, err)
	}
	compiled, err := jsonschema.CompileString(s.Name+".json", string(raw))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", s.Name, err)
	}
	s.compiled = compiled
	return nil
}

// ValidateArgs checks sanitized arguments against the compiled parameter
// schema. The map is round-tripped through JSON so the validator sees the
// same value shapes a decoder would produce.
func (s *ToolSpec) ValidateArgs(args map[string]any) error {
	if s.compiled == nil {
		return fmt.Errorf("schema for %s not compiled", s.Name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := s.compiled.Validate(instance); err != nil {
		return err
	}
	return nil
}

// HasParameter reports whether the schema declares the named parameter.
func (s *ToolSpec) HasParameter(name string) bool {
	_, ok := s.Parameters.Properties[name]
	return ok
}

// ParameterNames returns the declared parameter names in sorted order.
func (s *ToolSpec) ParameterNames() []string {
	names := make([]string, 0, len(s.Parameters.Properties))
	for name := range s.Parameters.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToOpenAIFormat converts the spec to the function-calling wire shape.
func (s *ToolSpec) ToOpenAIFormat() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.Parameters,
		},
	}
}

func (s *ToolSpec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("tool definition missing name")
	}
	if strings.TrimSpace(s.XQueryFile) == "" {
		return fmt.Errorf("tool %s missing x_query_file", s.Name)
	}
	if s.Parameters.Type != "object" {
		return fmt.Errorf("tool %s parameters must have type object", s.Name)
	}
	return nil
}
