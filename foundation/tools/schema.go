package tools

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// ParametersSchema renders a tool's parameters as a JSON Schema object, the shape
// provider SDKs expect for function declarations.
func ParametersSchema(info *schema.ToolInfo) (map[string]any, error) {
	if info.ParamsOneOf == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}

	js, err := info.ParamsOneOf.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build schema for tool %s: %w", info.Name, err)
	}
	raw, err := json.Marshal(js)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for tool %s: %w", info.Name, err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode schema for tool %s: %w", info.Name, err)
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out, nil
}
