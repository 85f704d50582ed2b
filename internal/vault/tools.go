package vault

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
	envVaultPath     = "OBSIDIAN_VAULT_PATH"
	envTemplatesPath = "OBSIDIAN_TEMPLATES_PATH"

	defaultTemplatesPath = "templates/"
)

// Group is the Obsidian tool group. Its probe requires
// OBSIDIAN_VAULT_PATH to exist as a directory; the templates subpath
// is optional and only checked when a template operation runs.
type Group struct{}

// NewGroup returns the Obsidian tool group.
func NewGroup() *Group { return &Group{} }

// Name implements registry.Group.
func (g *Group) Name() string { return "Obsidian" }

// OperationNames implements registry.Group.
func (g *Group) OperationNames() []string {
	return []string{
		"read_note",
		"create_note",
		"update_note",
		"append_to_note",
		"list_notes",
		"search_notes",
		"delete_note",
		"get_note_metadata",
		"create_note_from_template",
	}
}

// Attempt implements registry.Group. The only I/O is the vault
// directory-existence check.
func (g *Group) Attempt() ([]registry.Operation, error) {
	root := os.Getenv(envVaultPath)
	if root == "" {
		return nil, errors.New(envVaultPath + " environment variable is not set. Set it to your vault path (e.g., /Users/username/Documents/Obsidian/Vault)")
	}

	templatesDir := os.Getenv(envTemplatesPath)
	if templatesDir == "" {
		templatesDir = defaultTemplatesPath
	}

	v, err := Open(root, templatesDir)
	if err != nil {
		return nil, err
	}

	t := &tools{vault: v}
	return []registry.Operation{
		{Definition: t.readNoteDefinition(), Handler: t.handleReadNote},
		{Definition: t.createNoteDefinition(), Handler: t.handleCreateNote},
		{Definition: t.updateNoteDefinition(), Handler: t.handleUpdateNote},
		{Definition: t.appendToNoteDefinition(), Handler: t.handleAppendToNote},
		{Definition: t.listNotesDefinition(), Handler: t.handleListNotes},
		{Definition: t.searchNotesDefinition(), Handler: t.handleSearchNotes},
		{Definition: t.deleteNoteDefinition(), Handler: t.handleDeleteNote},
		{Definition: t.getNoteMetadataDefinition(), Handler: t.handleGetNoteMetadata},
		{Definition: t.createNoteFromTemplateDefinition(), Handler: t.handleCreateNoteFromTemplate},
	}, nil
}

type tools struct {
	vault *Vault
}

// --- read_note ---

func (t *tools) readNoteDefinition() mcp.Tool {
	return mcp.NewTool("read_note",
		mcp.WithDescription("Read the content of an Obsidian note."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description(`Path to the note relative to vault root (e.g., "folder/note" or "folder/note.md")`),
		),
	)
}

func (t *tools) handleReadNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}

	content, info, err := t.vault.Read(notePath)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"note": map[string]any{
			"path":     info.Path,
			"content":  content,
			"size":     info.Size,
			"modified": info.Modified,
		},
	}), nil
}

// --- create_note ---

func (t *tools) createNoteDefinition() mcp.Tool {
	return mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Obsidian note, optionally with YAML frontmatter."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description(`Path for the new note relative to vault root (e.g., "folder/note" or "folder/note.md")`),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content of the note"),
		),
		mcp.WithBoolean("overwrite",
			mcp.Description("Whether to overwrite if the note already exists. Defaults to false."),
		),
		mcp.WithString("frontmatter",
			mcp.Description("Optional frontmatter to add, as a JSON object serialized to YAML"),
		),
	)
}

func (t *tools) handleCreateNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}
	content, ok := req.GetArguments()["content"].(string)
	if !ok {
		return envelope.Errorf("'content' is required"), nil
	}

	frontmatter, err := objectArg(req, "frontmatter")
	if err != nil {
		return envelope.Error(err), nil
	}

	info, err := t.vault.Create(notePath, content, boolArg(req, "overwrite", false), frontmatter)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"note": info}), nil
}

// --- update_note ---

func (t *tools) updateNoteDefinition() mcp.Tool {
	return mcp.NewTool("update_note",
		mcp.WithDescription("Completely replace the content of an existing Obsidian note."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description("Path to the note relative to vault root"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("New content to replace the entire note"),
		),
	)
}

func (t *tools) handleUpdateNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}
	content, ok := req.GetArguments()["content"].(string)
	if !ok {
		return envelope.Errorf("'content' is required"), nil
	}

	info, err := t.vault.Replace(notePath, content)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"note": info}), nil
}

// --- append_to_note ---

func (t *tools) appendToNoteDefinition() mcp.Tool {
	return mcp.NewTool("append_to_note",
		mcp.WithDescription("Append content to the end of an existing Obsidian note."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description("Path to the note relative to vault root"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content to append"),
		),
		mcp.WithBoolean("add_newline",
			mcp.Description("Whether to add a newline before appending. Defaults to true."),
		),
	)
}

func (t *tools) handleAppendToNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}
	content, ok := req.GetArguments()["content"].(string)
	if !ok {
		return envelope.Errorf("'content' is required"), nil
	}

	info, err := t.vault.Append(notePath, content, boolArg(req, "add_newline", true))
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"note": info}), nil
}

// --- list_notes ---

func (t *tools) listNotesDefinition() mcp.Tool {
	return mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes in a folder (or the entire vault)."),
		mcp.WithString("folder",
			mcp.Description("Folder path relative to vault root (empty string for root)"),
		),
	)
}

func (t *tools) handleListNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := t.vault.List(req.GetString("folder", ""))
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"notes": notes,
		"count": len(notes),
	}), nil
}

// --- search_notes ---

func (t *tools) searchNotesDefinition() mcp.Tool {
	return mcp.NewTool("search_notes",
		mcp.WithDescription("Search for notes containing specific text."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithBoolean("case_sensitive",
			mcp.Description("Whether the search should be case sensitive. Defaults to false."),
		),
	)
}

func (t *tools) handleSearchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return envelope.Errorf("'query' is required"), nil
	}

	results, err := t.vault.Search(query, boolArg(req, "case_sensitive", false))
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"query": query,
		"notes": results,
		"count": len(results),
	}), nil
}

// --- delete_note ---

func (t *tools) deleteNoteDefinition() mcp.Tool {
	return mcp.NewTool("delete_note",
		mcp.WithDescription("Delete an Obsidian note (moves it aside as .trash when possible, otherwise deletes permanently)."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description("Path to the note relative to vault root"),
		),
	)
}

func (t *tools) handleDeleteNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}

	deletedPath, permanent, err := t.vault.Delete(notePath)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"deleted_path": deletedPath,
		"permanent":    permanent,
	}), nil
}

// --- get_note_metadata ---

func (t *tools) getNoteMetadataDefinition() mcp.Tool {
	return mcp.NewTool("get_note_metadata",
		mcp.WithDescription("Get metadata for a note (size, word count, frontmatter) without reading its full content."),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description("Path to the note relative to vault root"),
		),
	)
}

func (t *tools) handleGetNoteMetadata(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}

	md, err := t.vault.Stat(notePath)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"metadata": md}), nil
}

// --- create_note_from_template ---

func (t *tools) createNoteFromTemplateDefinition() mcp.Tool {
	return mcp.NewTool("create_note_from_template",
		mcp.WithDescription(
			"Create a note from a template in the vault's templates folder. "+
				"{{title}} and {{date}} placeholders in the template are substituted.",
		),
		mcp.WithString("template_name",
			mcp.Required(),
			mcp.Description(`Template file name inside the templates folder (e.g., "daily" or "daily.md")`),
		),
		mcp.WithString("note_path",
			mcp.Required(),
			mcp.Description("Path for the new note relative to vault root"),
		),
		mcp.WithBoolean("overwrite",
			mcp.Description("Whether to overwrite if the note already exists. Defaults to false."),
		),
	)
}

func (t *tools) handleCreateNoteFromTemplate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateName := req.GetString("template_name", "")
	if templateName == "" {
		return envelope.Errorf("'template_name' is required"), nil
	}
	notePath := req.GetString("note_path", "")
	if notePath == "" {
		return envelope.Errorf("'note_path' is required"), nil
	}

	info, err := t.vault.CreateFromTemplate(templateName, notePath, boolArg(req, "overwrite", false))
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"note": info}), nil
}

// --- argument helpers ---

// boolArg extracts a boolean argument, returning defaultVal when the
// key is missing or not a bool.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// objectArg extracts a JSON-object argument, accepting either a real
// object or a JSON-encoded string.
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
