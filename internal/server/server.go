// Package server wires the MCP server together.
//
// This is the composition root: it creates the tool groups, runs the
// registry over them, and returns the configured server. No business
// logic lives here — only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolbridge/toolbridge/internal/notion"
	"github.com/toolbridge/toolbridge/internal/registry"
	"github.com/toolbridge/toolbridge/internal/todoist"
	"github.com/toolbridge/toolbridge/internal/vault"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with every configured tool group
// registered. Group order is fixed so startup output is reproducible:
// Notion, Todoist, Obsidian. A group whose configuration is missing is
// skipped with a warning; the server always starts, even with no
// groups loaded.
func New() (*server.MCPServer, registry.Report) {
	s := server.NewMCPServer(
		"toolbridge",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	report := registry.Build(s, []registry.Group{
		notion.NewGroup(),
		todoist.NewGroup(),
		vault.NewGroup(),
	})
	return s, report
}

// serverInstructions tells the AI what the server offers and how
// availability works.
func serverInstructions() string {
	return `toolbridge exposes Notion, Todoist, and Obsidian-vault tools.

Each tool group is only available when its configuration is present:
Notion needs NOTION_TOKEN, Todoist needs TODOIST_TOKEN, and the
Obsidian tools need OBSIDIAN_VAULT_PATH pointing at an existing vault
directory. Calling a tool from an unconfigured group returns an error
explaining which variable is missing.

Every tool returns a JSON envelope: {"success": true, ...} with the
operation's payload, or {"success": false, "error": "..."} describing
what went wrong. Check "success" before using the payload.`
}
