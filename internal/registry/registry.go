// Package registry assembles the server's tool set from independently
// configured tool groups.
//
// Each group is attempted in a fixed order. A group whose configuration
// is missing or invalid is skipped with a warning and its operations
// are registered as unavailable stubs, so invoking them returns an
// actionable error instead of a protocol-level "tool not found". One
// group's misconfiguration never prevents another group from loading
// and never aborts the process.
package registry

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolbridge/toolbridge/internal/envelope"
)

// Operation is one callable tool: its MCP definition plus handler.
type Operation struct {
	Definition mcp.Tool
	Handler    server.ToolHandlerFunc
}

// Group is a bundle of operations gated by a configuration probe.
type Group interface {
	// Name is the display name used in log lines and error messages.
	Name() string

	// OperationNames lists every tool the group would expose. Needed
	// even when the group fails to load, so unavailable stubs can be
	// registered under the right names.
	OperationNames() []string

	// Attempt probes the group's configuration and, on success, returns
	// the complete operation list with the resolved configuration bound
	// into each handler. On failure it returns an error whose text is
	// the skip reason shown to users. It must not perform network I/O.
	Attempt() ([]Operation, error)
}

// Report summarizes a Build: which groups loaded, which were skipped
// and why, and how many operations are live. Loaded and the keys of
// Skipped always partition the full group list.
type Report struct {
	Loaded     []string
	Skipped    map[string]string
	Operations int
}

// Build attempts every group in order, registers the resulting
// operations (or unavailable stubs) on s, and logs the startup banner.
// Order is deterministic: groups are processed and reported exactly as
// given.
func Build(s *server.MCPServer, groups []Group) Report {
	report := Report{Skipped: make(map[string]string)}

	for _, g := range groups {
		ops, err := attempt(g)
		if err != nil {
			reason := err.Error()
			log.Printf("WARNING: %s tools not loaded: %s", g.Name(), reason)
			report.Skipped[g.Name()] = reason
			for _, op := range stubOperations(g, reason) {
				s.AddTool(op.Definition, op.Handler)
			}
			continue
		}

		for _, op := range ops {
			s.AddTool(op.Definition, op.Handler)
		}
		log.Printf("%s tools loaded (%d operations)", g.Name(), len(ops))
		report.Loaded = append(report.Loaded, g.Name())
		report.Operations += len(ops)
	}

	if len(report.Loaded) == 0 {
		log.Printf("WARNING: no tools loaded - check your environment configuration")
	} else {
		log.Printf("ready with tools: %s", strings.Join(report.Loaded, ", "))
	}
	return report
}

// attempt calls g.Attempt, converting a panic into a skip reason so a
// defective group cannot take the process down at startup.
func attempt(g Group) (ops []Operation, err error) {
	defer func() {
		if r := recover(); r != nil {
			ops = nil
			err = fmt.Errorf("registration panicked: %v", r)
		}
	}()
	return g.Attempt()
}

// stubOperations builds an error-returning operation for each of the
// group's operation names. The error names the owning group and the
// configuration reason so callers can self-service the fix.
func stubOperations(g Group, reason string) []Operation {
	group := g.Name()
	ops := make([]Operation, 0, len(g.OperationNames()))
	for _, name := range g.OperationNames() {
		opName := name
		ops = append(ops, Operation{
			Definition: mcp.NewTool(opName,
				mcp.WithDescription(fmt.Sprintf("Unavailable: %s tools are not loaded.", group)),
			),
			Handler: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return envelope.Errorf("%s is not available: %s tools are not loaded (%s)", opName, group, reason), nil
			},
		})
	}
	return ops
}
