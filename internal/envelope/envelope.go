// Package envelope builds the uniform result wrapper every tool returns.
//
// Every handler resolves to a JSON object with a "success" flag plus
// either the operation's payload fields (success) or a single "error"
// string (failure) — never both. The object is carried as the text
// content of an mcp.CallToolResult, with IsError mirroring the flag so
// MCP clients that only look at the protocol-level flag agree with
// clients that parse the envelope.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// OK returns a success envelope. The payload fields are merged next to
// "success": true at the top level; a "success" or "error" key in the
// payload is ignored so the invariant can't be violated by a caller.
func OK(fields map[string]any) *mcp.CallToolResult {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if k == "success" || k == "error" {
			continue
		}
		out[k] = v
	}
	out["success"] = true

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		// Payload contained something unmarshalable (channels, cycles).
		// Downgrade to a failure envelope rather than losing the call.
		return Errorf("encoding result: %v", err)
	}
	return mcp.NewToolResultText(string(b))
}

// Errorf returns a failure envelope with a formatted error message.
func Errorf(format string, args ...any) *mcp.CallToolResult {
	out := map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	}
	b, _ := json.Marshal(out) // two scalar fields, cannot fail
	res := mcp.NewToolResultText(string(b))
	res.IsError = true
	return res
}

// Error returns a failure envelope from an error value.
func Error(err error) *mcp.CallToolResult {
	return Errorf("%v", err)
}

// Decode unpacks a result's envelope into a map. Used by tests and by
// callers that inspect results programmatically.
func Decode(res *mcp.CallToolResult) (map[string]any, error) {
	if res == nil || len(res.Content) == 0 {
		return nil, errors.New("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		return nil, fmt.Errorf("unexpected content type %T", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return out, nil
}
