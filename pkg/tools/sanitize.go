package tools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// placeholderValues are model-emitted strings that mean "no value". They are
// normalized to JSON null before validation so schemas with nullable
// parameters accept them.
var placeholderValues = map[string]struct{}{
	"":       {},
	"null":   {},
	"none":   {},
	"nil":    {},
	"<nil>":  {},
	"<null>": {},
	"<none>": {},
}

// Sanitize repairs model-supplied arguments against a tool's parameter
// schema. It fills declared defaults, normalizes placeholder strings to nil,
// coerces primitive types toward the declared type, clamps numeric bounds
// and drops undeclared keys. It never rejects a value; anything it cannot
// coerce is passed through for schema validation to judge.
//
// Sanitize is pure and idempotent: it does not mutate its input, and
// applying it twice yields the same result as applying it once.
func Sanitize(spec *ToolSpec, args map[string]any) map[string]any {
	out := make(map[string]any, len(spec.Parameters.Properties))

	for name, prop := range spec.Parameters.Properties {
		value, present := args[name]
		if !present {
			if prop.Default != nil {
				out[name] = normalizeDefault(prop)
			}
			continue
		}
		out[name] = sanitizeValue(prop, value)
	}

	return out
}

func sanitizeValue(prop Property, value any) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		if _, isPlaceholder := placeholderValues[strings.ToLower(strings.TrimSpace(s))]; isPlaceholder {
			return nil
		}
	}

	switch prop.Type.Primary() {
	case "integer":
		return clampNumber(prop, coerceInteger(value))
	case "number":
		return clampNumber(prop, coerceNumber(value))
	case "boolean":
		return coerceBoolean(value)
	case "string":
		return coerceString(value)
	default:
		return value
	}
}

func coerceInteger(value any) any {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v)
		}
		return v
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		return v
	default:
		return value
	}
}

func coerceNumber(value any) any {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		// Comma decimal separators show up in localized model output.
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return v
	default:
		return value
	}
}

func coerceBoolean(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n":
			return false
		}
		return v
	case float64:
		if v == 1 {
			return true
		}
		if v == 0 {
			return false
		}
		return v
	default:
		return value
	}
}

func coerceString(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return value
	}
}

// clampNumber pulls out-of-range numerics back to the declared bound rather
// than rejecting the call.
func clampNumber(prop Property, value any) any {
	f, isInt, ok := asFloat(value)
	if !ok {
		return value
	}
	if prop.Minimum != nil && f < *prop.Minimum {
		f = *prop.Minimum
	}
	if prop.Maximum != nil && f > *prop.Maximum {
		f = *prop.Maximum
	}
	if isInt {
		return int64(f)
	}
	return f
}

func asFloat(value any) (f float64, isInt bool, ok bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true, true
	case int:
		return float64(v), true, true
	case float64:
		return v, false, true
	default:
		return 0, false, false
	}
}

func normalizeDefault(prop Property) any {
	return sanitizeValue(prop, prop.Default)
}

// ArgsSummary renders a compact single-line view of arguments for logging.
func ArgsSummary(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, args[name]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
