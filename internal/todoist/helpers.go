package todoist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// setStringFields copies each non-empty string argument into the
// payload under the same key. Unset optional fields stay absent so the
// API doesn't interpret them as cleared.
func setStringFields(payload map[string]any, req mcp.CallToolRequest, keys ...string) {
	for _, key := range keys {
		if v := req.GetString(key, ""); v != "" {
			payload[key] = v
		}
	}
}

// setIntFields copies each present numeric argument into the payload.
// JSON numbers arrive as float64.
func setIntFields(payload map[string]any, req mcp.CallToolRequest, keys ...string) {
	for _, key := range keys {
		if v, ok := req.GetArguments()[key].(float64); ok {
			payload[key] = int(v)
		}
	}
}

// stringListArg extracts a list-of-strings argument. Clients send these
// as real arrays or as JSON-encoded strings; both are accepted.
func stringListArg(req mcp.CallToolRequest, key string) ([]string, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' must contain only strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("'%s' must be a JSON array of strings", key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be an array of strings, got %T", key, v)
	}
}
