package todoist

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

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func newTestTools(t *testing.T, handler http.Handler) *tools {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("secret-token")
	client.baseURL = srv.URL
	return &tools{client: client}
}

// decoder returns a helper that unwraps a handler's result into the
// envelope map, failing the test on transport-level errors.
func decoder(t *testing.T) func(*mcp.CallToolResult, error) map[string]any {
	return func(res *mcp.CallToolResult, err error) map[string]any {
		t.Helper()
		if err != nil {
			t.Fatalf("handler returned transport error: %v", err)
		}
		env, derr := envelope.Decode(res)
		if derr != nil {
			t.Fatalf("decoding envelope: %v", derr)
		}
		return env
	}
}

const sampleTask = `{
	"id": "42",
	"content": "Buy milk",
	"description": "",
	"project_id": "p-1",
	"section_id": "",
	"parent_id": "",
	"order": 1,
	"labels": ["errand"],
	"priority": 4,
	"due": {"date": "2026-08-26", "string": "tomorrow", "lang": "en", "is_recurring": false},
	"url": "https://todoist.com/showTask?id=42",
	"comment_count": 0,
	"is_completed": false,
	"created_at": "2026-08-25T10:00:00Z"
}`

// --- probe ---

func TestAttempt_MissingToken(t *testing.T) {
	t.Setenv(envToken, "")

	_, err := NewGroup().Attempt()
	if err == nil {
		t.Fatal("expected probe failure without TODOIST_TOKEN")
	}
	if !strings.Contains(err.Error(), "TODOIST_TOKEN") {
		t.Errorf("reason = %q, want it to name the variable", err)
	}
	if !strings.Contains(err.Error(), "todoist.com/app/settings/integrations") {
		t.Errorf("reason = %q, want it to include the hint URL", err)
	}
}

func TestAttempt_TokenPresent(t *testing.T) {
	t.Setenv(envToken, "secret")

	ops, err := NewGroup().Attempt()
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	names := NewGroup().OperationNames()
	if len(ops) != len(names) {
		t.Fatalf("got %d operations, want %d", len(ops), len(names))
	}
	for i, name := range names {
		if ops[i].Definition.Name != name {
			t.Errorf("operation %d = %s, want %s", i, ops[i].Definition.Name, name)
		}
	}
}

// --- create_task ---

func TestCreateTask_SendsOnlySetFields(t *testing.T) {
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks" {
			t.Errorf("%s %s, want POST /tasks", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret-token" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(sampleTask))
	}))
	decode := decoder(t)

	env := decode(tl.handleCreateTask(context.Background(), newRequest(map[string]any{
		"content":    "Buy milk",
		"priority":   float64(4),
		"labels":     []any{"errand"},
		"due_string": "tomorrow",
	})))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}

	if gotBody["content"] != "Buy milk" || gotBody["due_string"] != "tomorrow" {
		t.Errorf("body = %v", gotBody)
	}
	if gotBody["priority"] != float64(4) {
		t.Errorf("priority = %v, want 4", gotBody["priority"])
	}
	for _, absent := range []string{"description", "project_id", "due_date", "assignee_id"} {
		if _, ok := gotBody[absent]; ok {
			t.Errorf("unset field %q should not be sent", absent)
		}
	}

	task, _ := env["task"].(map[string]any)
	if task["id"] != "42" || task["completed"] != false {
		t.Errorf("task payload = %v", task)
	}
}

func TestCreateTask_MissingContent(t *testing.T) {
	tl := &tools{client: NewClient("x")}
	decode := decoder(t)

	env := decode(tl.handleCreateTask(context.Background(), newRequest(nil)))
	if env["success"] != false {
		t.Fatal("expected failure without content")
	}
}

func TestCreateTask_LabelsAsJSONString(t *testing.T) {
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(sampleTask))
	}))
	decode := decoder(t)

	env := decode(tl.handleCreateTask(context.Background(), newRequest(map[string]any{
		"content": "x",
		"labels":  `["home", "urgent"]`,
	})))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	labels, _ := gotBody["labels"].([]any)
	if len(labels) != 2 || labels[0] != "home" {
		t.Errorf("labels = %v", gotBody["labels"])
	}
}

// --- get_tasks ---

func TestGetTasks_BuildsQueryParams(t *testing.T) {
	var gotQuery string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("[" + sampleTask + "]"))
	}))
	decode := decoder(t)

	env := decode(tl.handleGetTasks(context.Background(), newRequest(map[string]any{
		"project_id":   "p-1",
		"filter_query": "today",
		"ids":          []any{"1", "2"},
	})))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if env["count"] != float64(1) {
		t.Errorf("count = %v, want 1", env["count"])
	}
	for _, want := range []string{"project_id=p-1", "filter=today", "ids=1%2C2"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestGetTasks_EmptyList(t *testing.T) {
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	decode := decoder(t)

	env := decode(tl.handleGetTasks(context.Background(), newRequest(nil)))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if env["count"] != float64(0) {
		t.Errorf("count = %v, want 0", env["count"])
	}
	tasks, ok := env["tasks"].([]any)
	if !ok || len(tasks) != 0 {
		t.Errorf("tasks = %v, want empty list", env["tasks"])
	}
}

// --- lifecycle operations against 204 endpoints ---

func TestCompleteTask(t *testing.T) {
	var gotPath string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	decode := decoder(t)

	env := decode(tl.handleCompleteTask(context.Background(), newRequest(map[string]any{
		"task_id": "42",
	})))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if gotPath != "/tasks/42/close" {
		t.Errorf("path = %s", gotPath)
	}
	if env["completed"] != true || env["task_id"] != "42" {
		t.Errorf("envelope = %v", env)
	}
}

func TestReopenTask(t *testing.T) {
	var gotPath string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	decode := decoder(t)

	env := decode(tl.handleReopenTask(context.Background(), newRequest(map[string]any{
		"task_id": "42",
	})))
	if env["success"] != true || gotPath != "/tasks/42/reopen" {
		t.Errorf("env = %v, path = %s", env, gotPath)
	}
	if env["completed"] != false {
		t.Errorf("completed = %v, want false", env["completed"])
	}
}

func TestDeleteTask(t *testing.T) {
	var gotMethod string
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	decode := decoder(t)

	env := decode(tl.handleDeleteTask(context.Background(), newRequest(map[string]any{
		"task_id": "42",
	})))
	if env["success"] != true || gotMethod != http.MethodDelete {
		t.Errorf("env = %v, method = %s", env, gotMethod)
	}
	if env["deleted"] != true {
		t.Errorf("deleted = %v, want true", env["deleted"])
	}
}

// --- update_task ---

func TestUpdateTask_NothingToUpdate(t *testing.T) {
	tl := &tools{client: NewClient("x")}
	decode := decoder(t)

	env := decode(tl.handleUpdateTask(context.Background(), newRequest(map[string]any{
		"task_id": "42",
	})))
	if env["success"] != false {
		t.Fatal("expected failure when no fields are provided")
	}
}

func TestUpdateTask_SendsChangedFields(t *testing.T) {
	var gotBody map[string]any
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/42" || r.Method != http.MethodPost {
			t.Errorf("%s %s, want POST /tasks/42", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(sampleTask))
	}))
	decode := decoder(t)

	env := decode(tl.handleUpdateTask(context.Background(), newRequest(map[string]any{
		"task_id":  "42",
		"content":  "Buy oat milk",
		"priority": float64(2),
	})))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	if gotBody["content"] != "Buy oat milk" || gotBody["priority"] != float64(2) {
		t.Errorf("body = %v", gotBody)
	}
	if _, ok := gotBody["task_id"]; ok {
		t.Error("task_id belongs in the path, not the body")
	}
}

// --- get_projects ---

func TestGetProjects(t *testing.T) {
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects" {
			t.Errorf("path = %s, want /projects", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id": "p-1", "name": "Inbox", "color": "grey", "is_inbox_project": true}]`))
	}))
	decode := decoder(t)

	env := decode(tl.handleGetProjects(context.Background(), newRequest(nil)))
	if env["success"] != true {
		t.Fatalf("expected success, got %v", env["error"])
	}
	projects, _ := env["projects"].([]any)
	if len(projects) != 1 {
		t.Fatalf("projects = %v, want one entry", projects)
	}
	p, _ := projects[0].(map[string]any)
	if p["name"] != "Inbox" || p["is_inbox_project"] != true {
		t.Errorf("project = %v", p)
	}
}

// --- get_task / idempotent reads ---

func TestGetTask_RepeatedReadsIdentical(t *testing.T) {
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleTask))
	}))
	decode := decoder(t)

	req := newRequest(map[string]any{"task_id": "42"})
	first := decode(tl.handleGetTask(context.Background(), req))
	second := decode(tl.handleGetTask(context.Background(), req))

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("repeated reads differ:\n%s\n%s", a, b)
	}
}

func TestGetTask_BackendErrorPreserved(t *testing.T) {
	tl := newTestTools(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Task not found"))
	}))
	decode := decoder(t)

	env := decode(tl.handleGetTask(context.Background(), newRequest(map[string]any{
		"task_id": "missing",
	})))
	if env["success"] != false {
		t.Fatal("expected failure")
	}
	msg, _ := env["error"].(string)
	if !strings.Contains(msg, "Task not found") {
		t.Errorf("error = %q, want the backend message preserved", msg)
	}
}
