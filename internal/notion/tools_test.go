package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolbridge/toolbridge/internal/envelope"
)

// newRequest builds a CallToolRequest with the given arguments.
func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// newTestTools returns a tools instance pointed at a fake Notion API.
func newTestTools(t *testing.T, handler http.Handler) *tools {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("secret-token")
	client.baseURL = srv.URL
	return &tools{client: client}
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	env, err := envelope.Decode(res)
	if err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

// --- probe ---

func TestAttempt_MissingToken(t *testing.T) {
	t.Setenv(envToken, "")

	_, err := NewGroup().Attempt()
	if err == nil {
		t.Fatal("expected probe failure without NOTION_TOKEN")
	}
	if !strings.Contains(err.Error(), "NOTION_TOKEN") {
		t.Errorf("reason = %q, want it to name the variable", err)
	}
	if !strings.Contains(err.Error(), "notion.so/my-integrations") {
		t.Errorf("reason = %q, want it to include the hint URL", err)
	}
}

func TestAttempt_TokenPresent(t *testing.T) {
	t.Setenv(envToken, "secret")
	t.Setenv(envDatabaseID, "")

	ops, err := NewGroup().Attempt()
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(ops) != len(NewGroup().OperationNames()) {
		t.Errorf("got %d operations, want %d", len(ops), len(NewGroup().OperationNames()))
	}
	for i, name := range NewGroup().OperationNames() {
		if ops[i].Definition.Name != name {
			t.Errorf("operation %d = %s, want %s", i, ops[i].Definition.Name, name)
		}
	}
}

// --- create_database_page ---

func TestCreateDatabasePage_NoDatabaseID(t *testing.T) {
	tl := &tools{client: NewClient("x")} // no default configured

	res, err := tl.handleCreateDatabasePage(context.Background(), newRequest(map[string]any{
		"title": "X",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	env := decode(t, res)
	if env["success"] != false {
		t.Fatal("expected failure without database_id")
	}
	msg, _ := env["error"].(string)
	if !strings.Contains(msg, "no database_id provided") || !strings.Contains(msg, "NOTION_DATABASE_ID") {
		t.Errorf("error = %q, want the call-time resolution message", msg)
	}
}

func TestCreateDatabasePage_UsesDefaultDatabase(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret-token" {
			t.Errorf("Authorization = %q", auth)
		}
		if v := r.Header.Get("Notion-Version"); v != apiVersion {
			t.Errorf("Notion-Version = %q, want %s", v, apiVersion)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "page-1", "url": "https://notion.so/page-1", "created_time": "2026-01-01T00:00:00Z",
		})
	}))
	tl.defaultDatabaseID = "default-db"

	res, err := tl.handleCreateDatabasePage(context.Background(), newRequest(map[string]any{
		"title":      "Hello",
		"properties": map[string]any{"Status": map[string]any{"select": map[string]any{"name": "Done"}}},
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	env := decode(t, res)
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if env["page_id"] != "page-1" {
		t.Errorf("page_id = %v, want page-1", env["page_id"])
	}
	if gotPath != "/pages" {
		t.Errorf("path = %s, want /pages", gotPath)
	}

	parent, _ := gotBody["parent"].(map[string]any)
	if parent["database_id"] != "default-db" {
		t.Errorf("parent = %v, want the configured default database", parent)
	}
	props, _ := gotBody["properties"].(map[string]any)
	if _, ok := props["title"]; !ok {
		t.Error("generated title property missing")
	}
	if _, ok := props["Status"]; !ok {
		t.Error("passthrough property missing")
	}
}

func TestCreateDatabasePage_PropertiesAsJSONString(t *testing.T) {
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p"})
	}))

	res, _ := tl.handleCreateDatabasePage(context.Background(), newRequest(map[string]any{
		"title":       "T",
		"database_id": "db-9",
		"properties":  `{"Tags": {"multi_select": []}}`,
	}))

	env := decode(t, res)
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	props, _ := gotBody["properties"].(map[string]any)
	if _, ok := props["Tags"]; !ok {
		t.Error("JSON-string properties were not merged")
	}
}

func TestCreateDatabasePage_InvalidPropertiesString(t *testing.T) {
	tl := &tools{client: NewClient("x"), defaultDatabaseID: "db"}

	res, _ := tl.handleCreateDatabasePage(context.Background(), newRequest(map[string]any{
		"title":      "T",
		"properties": "{not json",
	}))

	env := decode(t, res)
	if env["success"] != false {
		t.Fatal("expected failure for malformed properties")
	}
}

// --- get_database ---

func TestGetDatabase_BuildsQuery(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{"id": "p1", "url": "u1", "created_time": "t1", "properties": map[string]any{}},
			},
			"has_more": true,
		})
	}))

	res, _ := tl.handleGetDatabase(context.Background(), newRequest(map[string]any{
		"database_id": "db-3",
		"filter_json": `{"property": "Done", "checkbox": {"equals": true}}`,
		"sorts":       []any{map[string]any{"property": "Name", "direction": "ascending"}},
	}))

	env := decode(t, res)
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if gotPath != "/databases/db-3/query" {
		t.Errorf("path = %s", gotPath)
	}
	if _, ok := gotBody["filter"]; !ok {
		t.Error("filter missing from query body")
	}
	if _, ok := gotBody["sorts"]; !ok {
		t.Error("sorts missing from query body")
	}
	pages, _ := env["pages"].([]any)
	if len(pages) != 1 {
		t.Errorf("pages = %v, want one entry", pages)
	}
	if env["has_more"] != true {
		t.Error("has_more not propagated")
	}
}

func TestGetDatabase_InvalidFilterJSON(t *testing.T) {
	tl := &tools{client: NewClient("x"), defaultDatabaseID: "db"}

	res, _ := tl.handleGetDatabase(context.Background(), newRequest(map[string]any{
		"filter_json": "nope",
	}))

	env := decode(t, res)
	if env["success"] != false {
		t.Fatal("expected failure for malformed filter_json")
	}
	if msg, _ := env["error"].(string); !strings.Contains(msg, "filter_json") {
		t.Errorf("error = %q, want it to name filter_json", msg)
	}
}

// --- get_page ---

func TestGetPage_AcceptsNotionURL(t *testing.T) {
	var paths []string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/blocks/") {
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "abc123", "url": "u"})
	}))

	res, _ := tl.handleGetPage(context.Background(), newRequest(map[string]any{
		"page_id": "https://www.notion.so/workspace/abc123?v=1",
	}))

	env := decode(t, res)
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if len(paths) != 2 || paths[0] != "/pages/abc123" || paths[1] != "/blocks/abc123/children" {
		t.Errorf("paths = %v, want page then blocks with the extracted ID", paths)
	}
}

// --- archive_page / backend errors ---

func TestArchivePage_BackendErrorPreserved(t *testing.T) {
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Could not find page with ID: bad-id",
			"code":    "object_not_found",
		})
	}))

	res, err := tl.handleArchivePage(context.Background(), newRequest(map[string]any{
		"page_id": "bad-id",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	env := decode(t, res)
	if env["success"] != false {
		t.Fatal("expected failure for backend error")
	}
	msg, _ := env["error"].(string)
	if !strings.Contains(msg, "Could not find page") {
		t.Errorf("error = %q, want the backend message preserved", msg)
	}
}

func TestArchivePage_SendsArchivedFlag(t *testing.T) {
	var gotBody map[string]any
	var gotMethod string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "archived": true})
	}))

	res, _ := tl.handleArchivePage(context.Background(), newRequest(map[string]any{
		"page_id": "p1",
	}))

	env := decode(t, res)
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotBody["archived"] != true {
		t.Errorf("body = %v, want archived: true", gotBody)
	}
	if env["archived"] != true {
		t.Error("archived flag not propagated to envelope")
	}
}

// --- helpers ---

func TestNormalizePageID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"https://www.notion.so/ws/abc123", "abc123"},
		{"https://notion.so/ws/abc123?v=4&p=2", "abc123"},
	}
	for _, tt := range tests {
		if got := normalizePageID(tt.in); got != tt.want {
			t.Errorf("normalizePageID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
