package gemini

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// SchemaFromMap converts a JSON-schema style map (the format prompts declare
// their outputs in) to the subset Gemini accepts. Unsupported keywords such
// as additionalProperties are dropped.
func SchemaFromMap(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	typ, nullable := schemaType(m["type"])
	s.Type = typ
	s.Nullable = nullable
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if enum := stringList(m["enum"]); len(enum) > 0 {
		s.Enum = enum
		if s.Type == genai.TypeString {
			s.Format = "enum"
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = SchemaFromMap(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = SchemaFromMap(items)
	}
	if req := stringList(m["required"]); len(req) > 0 {
		s.Required = req
	}
	return s
}

func schemaType(v any) (genai.Type, bool) {
	switch t := v.(type) {
	case string:
		return typeByName(t), false
	case []any:
		return typeFromList(stringList(t))
	case []string:
		return typeFromList(t)
	default:
		return genai.TypeUnspecified, false
	}
}

func typeFromList(names []string) (genai.Type, bool) {
	nullable := false
	typ := genai.TypeUnspecified
	for _, name := range names {
		if strings.EqualFold(name, "null") {
			nullable = true
			continue
		}
		if typ == genai.TypeUnspecified {
			typ = typeByName(name)
		}
	}
	return typ, nullable
}

func typeByName(name string) genai.Type {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}
