package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"metricsqa/pkg/model"
)

// trailingComma matches a comma immediately before a closing bracket. This
// is the only malformation the inline parser repairs; anything else is
// treated as plain text.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// inlineCallID correlates a synthetic tool call with its result turn.
const inlineCallID = "inline-0"

// parseInlineToolCall recognizes a tool invocation the model emitted as text
// instead of a structured tool call. The candidate is the outermost brace
// pair in the content; it must decode (after trailing-comma repair) to an
// object naming a catalog tool with object-shaped arguments.
func (o *Orchestrator) parseInlineToolCall(content string) (model.ToolCall, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return model.ToolCall{}, false
	}
	candidate := content[start : end+1]

	payload, ok := decodeObject(candidate)
	if !ok {
		payload, ok = decodeObject(trailingComma.ReplaceAllString(candidate, "$1"))
		if !ok {
			return model.ToolCall{}, false
		}
	}

	name, ok := stringField(payload, "name", "tool")
	if !ok || !o.catalog.Has(name) {
		return model.ToolCall{}, false
	}

	args, ok := objectField(payload, "arguments", "parameters")
	if !ok {
		return model.ToolCall{}, false
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return model.ToolCall{}, false
	}

	return model.ToolCall{
		ID:   inlineCallID,
		Type: "function",
		Function: model.FunctionCall{
			Name:      name,
			Arguments: string(raw),
		},
	}, true
}

func decodeObject(s string) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil || payload == nil {
		return nil, false
	}
	return payload, true
}

func stringField(payload map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func objectField(payload map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		value, present := payload[key]
		if !present {
			continue
		}
		if obj, ok := value.(map[string]any); ok {
			return obj, true
		}
		return nil, false
	}
	// Arguments omitted entirely: treat as an empty set.
	return map[string]any{}, true
}
