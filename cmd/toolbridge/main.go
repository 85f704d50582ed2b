// toolbridge: multi-service MCP server
//
// Exposes Notion, Todoist, and Obsidian-vault operations as MCP tools
// over stdio. Each tool group registers only when its configuration is
// present, so the available tool set depends on the environment the
// server starts in.
//
// Usage:
//
//	toolbridge serve     # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	bridge "github.com/toolbridge/toolbridge/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("toolbridge v%s\n", bridge.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	// All diagnostics go to stderr — stdout carries the MCP stdio
	// transport and must stay clean.
	log.SetOutput(os.Stderr)

	// Load .env if present; a missing file is not an error.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env file")
	}

	s, _ := bridge.New()
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `toolbridge v%s — multi-service MCP server

Usage:
  toolbridge serve     Start the MCP server (stdio transport)
  toolbridge version   Print the version

Configuration (each group loads only when its variables are set):
  NOTION_TOKEN              enables the Notion tools
  NOTION_DATABASE_ID        optional default database for Notion calls
  TODOIST_TOKEN             enables the Todoist tools
  OBSIDIAN_VAULT_PATH       enables the Obsidian tools (must exist)
  OBSIDIAN_TEMPLATES_PATH   optional templates folder (default: templates/)

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "toolbridge": {
        "command": "toolbridge",
        "args": ["serve"]
      }
    }
  }
`, bridge.Version)
}
