package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolbridge/toolbridge/internal/envelope"
	"github.com/toolbridge/toolbridge/internal/registry"
)

// Environment keys read by the group's probe.
const (
	envToken      = "NOTION_TOKEN"
	envDatabaseID = "NOTION_DATABASE_ID"
)

// Group is the Notion tool group. Its probe requires NOTION_TOKEN;
// NOTION_DATABASE_ID is an optional default for calls that omit a
// database_id (its absence only surfaces at call time).
type Group struct{}

// NewGroup returns the Notion tool group.
func NewGroup() *Group { return &Group{} }

// Name implements registry.Group.
func (g *Group) Name() string { return "Notion" }

// OperationNames implements registry.Group.
func (g *Group) OperationNames() []string {
	return []string{
		"create_database_page",
		"get_database",
		"get_page",
		"update_page",
		"create_page",
		"archive_page",
	}
}

// Attempt implements registry.Group. It validates the token, captures
// the optional default database ID, and binds both into every
// operation. No network I/O happens here.
func (g *Group) Attempt() ([]registry.Operation, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return nil, errors.New(envToken + " environment variable is not set. Get one from https://www.notion.so/my-integrations")
	}

	t := &tools{
		client:            NewClient(token),
		defaultDatabaseID: os.Getenv(envDatabaseID),
	}
	return []registry.Operation{
		{Definition: t.createDatabasePageDefinition(), Handler: t.handleCreateDatabasePage},
		{Definition: t.getDatabaseDefinition(), Handler: t.handleGetDatabase},
		{Definition: t.getPageDefinition(), Handler: t.handleGetPage},
		{Definition: t.updatePageDefinition(), Handler: t.handleUpdatePage},
		{Definition: t.createPageDefinition(), Handler: t.handleCreatePage},
		{Definition: t.archivePageDefinition(), Handler: t.handleArchivePage},
	}, nil
}

// tools holds the resolved configuration shared by all Notion handlers
// for the process lifetime.
type tools struct {
	client            *Client
	defaultDatabaseID string
}

// databaseID resolves the effective database for a call: the explicit
// argument wins, then the configured default.
func (t *tools) databaseID(req mcp.CallToolRequest) (string, error) {
	if id := req.GetString("database_id", ""); id != "" {
		return id, nil
	}
	if t.defaultDatabaseID != "" {
		return t.defaultDatabaseID, nil
	}
	return "", errors.New("no database_id provided and " + envDatabaseID + " environment variable is not set")
}

// --- create_database_page ---

func (t *tools) createDatabasePageDefinition() mcp.Tool {
	return mcp.NewTool("create_database_page",
		mcp.WithDescription(
			"Create a new page in a Notion database. "+
				"Additional properties are passed through to the Notion API unchanged.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the page"),
		),
		mcp.WithString("database_id",
			mcp.Description("The ID of the database (uses "+envDatabaseID+" from env if not provided)"),
		),
		mcp.WithString("properties",
			mcp.Description("Additional properties to set on the page, as a JSON object (Notion property-value format)"),
		),
	)
}

func (t *tools) handleCreateDatabasePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if title == "" {
		return envelope.Errorf("'title' is required"), nil
	}

	dbID, err := t.databaseID(req)
	if err != nil {
		return envelope.Error(err), nil
	}

	properties := map[string]any{
		"title": map[string]any{
			"title": []any{
				map[string]any{"text": map[string]any{"content": title}},
			},
		},
	}
	extra, err := objectArg(req, "properties")
	if err != nil {
		return envelope.Error(err), nil
	}
	for k, v := range extra {
		properties[k] = v
	}

	page, err := t.client.CreatePage(ctx, map[string]any{
		"parent":     map[string]any{"database_id": dbID},
		"properties": properties,
	})
	if err != nil {
		return envelope.Error(err), nil
	}

	return envelope.OK(map[string]any{
		"page_id":      page["id"],
		"url":          page["url"],
		"created_time": page["created_time"],
	}), nil
}

// --- get_database ---

func (t *tools) getDatabaseDefinition() mcp.Tool {
	return mcp.NewTool("get_database",
		mcp.WithDescription("Query a Notion database and return its pages."),
		mcp.WithString("database_id",
			mcp.Description("The ID of the database (uses "+envDatabaseID+" from env if not provided)"),
		),
		mcp.WithString("filter_json",
			mcp.Description("JSON string for filtering results (Notion API filter format)"),
		),
		mcp.WithString("sorts",
			mcp.Description(`JSON array of sort objects, e.g. [{"property": "Name", "direction": "ascending"}]`),
		),
	)
}

func (t *tools) handleGetDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbID, err := t.databaseID(req)
	if err != nil {
		return envelope.Error(err), nil
	}

	query := map[string]any{}
	if filterJSON := req.GetString("filter_json", ""); filterJSON != "" {
		var filter map[string]any
		if err := json.Unmarshal([]byte(filterJSON), &filter); err != nil {
			return envelope.Errorf("filter_json must be a valid JSON string"), nil
		}
		query["filter"] = filter
	}
	sorts, err := arrayArg(req, "sorts")
	if err != nil {
		return envelope.Error(err), nil
	}
	if len(sorts) > 0 {
		query["sorts"] = sorts
	}

	resp, err := t.client.QueryDatabase(ctx, dbID, query)
	if err != nil {
		return envelope.Error(err), nil
	}

	pages := []map[string]any{}
	if results, ok := resp["results"].([]any); ok {
		for _, r := range results {
			page, ok := r.(map[string]any)
			if !ok {
				continue
			}
			pages = append(pages, map[string]any{
				"id":           page["id"],
				"url":          page["url"],
				"created_time": page["created_time"],
				"properties":   page["properties"],
			})
		}
	}

	hasMore, _ := resp["has_more"].(bool)
	return envelope.OK(map[string]any{
		"pages":    pages,
		"has_more": hasMore,
	}), nil
}

// --- get_page ---

func (t *tools) getPageDefinition() mcp.Tool {
	return mcp.NewTool("get_page",
		mcp.WithDescription("Get a Notion page by ID, including its content blocks."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The ID of the page (a full notion.so URL is also accepted)"),
		),
	)
}

func (t *tools) handleGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := normalizePageID(req.GetString("page_id", ""))
	if pageID == "" {
		return envelope.Errorf("'page_id' is required"), nil
	}

	page, err := t.client.Page(ctx, pageID)
	if err != nil {
		return envelope.Error(err), nil
	}
	blocks, err := t.client.BlockChildren(ctx, pageID)
	if err != nil {
		return envelope.Error(err), nil
	}

	content, _ := blocks["results"].([]any)
	return envelope.OK(map[string]any{
		"page": map[string]any{
			"id":               page["id"],
			"url":              page["url"],
			"created_time":     page["created_time"],
			"last_edited_time": page["last_edited_time"],
			"properties":       page["properties"],
			"content_blocks":   content,
		},
	}), nil
}

// --- update_page ---

func (t *tools) updatePageDefinition() mcp.Tool {
	return mcp.NewTool("update_page",
		mcp.WithDescription("Update properties of a Notion page."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The ID of the page to update (a full notion.so URL is also accepted)"),
		),
		mcp.WithString("properties",
			mcp.Required(),
			mcp.Description("Properties to update, as a JSON object (Notion property-value format)"),
		),
	)
}

func (t *tools) handleUpdatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := normalizePageID(req.GetString("page_id", ""))
	if pageID == "" {
		return envelope.Errorf("'page_id' is required"), nil
	}

	properties, err := objectArg(req, "properties")
	if err != nil {
		return envelope.Error(err), nil
	}
	if len(properties) == 0 {
		return envelope.Errorf("'properties' is required"), nil
	}

	page, err := t.client.UpdatePage(ctx, pageID, map[string]any{"properties": properties})
	if err != nil {
		return envelope.Error(err), nil
	}

	return envelope.OK(map[string]any{
		"page_id":          page["id"],
		"url":              page["url"],
		"last_edited_time": page["last_edited_time"],
	}), nil
}

// --- create_page ---

func (t *tools) createPageDefinition() mcp.Tool {
	return mcp.NewTool("create_page",
		mcp.WithDescription("Create a standalone Notion page (not in a database)."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the page"),
		),
		mcp.WithString("parent_page_id",
			mcp.Description("Optional parent page ID (if not provided, creates in the workspace root)"),
		),
		mcp.WithString("content",
			mcp.Description("Optional text content to add to the page as a paragraph"),
		),
	)
}

func (t *tools) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if title == "" {
		return envelope.Errorf("'title' is required"), nil
	}

	payload := map[string]any{
		"properties": map[string]any{
			"title": map[string]any{
				"title": []any{
					map[string]any{"text": map[string]any{"content": title}},
				},
			},
		},
	}

	if parentID := normalizePageID(req.GetString("parent_page_id", "")); parentID != "" {
		payload["parent"] = map[string]any{"page_id": parentID}
	} else {
		payload["parent"] = map[string]any{"type": "workspace", "workspace": true}
	}

	if content := req.GetString("content", ""); content != "" {
		payload["children"] = []any{
			map[string]any{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []any{
						map[string]any{"type": "text", "text": map[string]any{"content": content}},
					},
				},
			},
		}
	}

	page, err := t.client.CreatePage(ctx, payload)
	if err != nil {
		return envelope.Error(err), nil
	}

	return envelope.OK(map[string]any{
		"page_id":      page["id"],
		"url":          page["url"],
		"created_time": page["created_time"],
	}), nil
}

// --- archive_page ---

func (t *tools) archivePageDefinition() mcp.Tool {
	return mcp.NewTool("archive_page",
		mcp.WithDescription("Archive (delete) a Notion page."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The ID of the page to archive (a full notion.so URL is also accepted)"),
		),
	)
}

func (t *tools) handleArchivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := normalizePageID(req.GetString("page_id", ""))
	if pageID == "" {
		return envelope.Errorf("'page_id' is required"), nil
	}

	page, err := t.client.UpdatePage(ctx, pageID, map[string]any{"archived": true})
	if err != nil {
		return envelope.Error(err), nil
	}

	return envelope.OK(map[string]any{
		"page_id":  page["id"],
		"archived": page["archived"],
	}), nil
}

// --- argument helpers ---

// objectArg extracts a JSON-object argument. Clients send these either
// as real objects or as JSON-encoded strings; both are accepted, as in
// the rest of the MCP ecosystem.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("'%s' must be a valid JSON object", key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be a JSON object, got %T", key, v)
	}
}

// arrayArg extracts a JSON-array argument, with the same string
// fallback as objectArg.
func arrayArg(req mcp.CallToolRequest, key string) ([]any, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out []any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("'%s' must be a valid JSON array", key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be a JSON array, got %T", key, v)
	}
}
