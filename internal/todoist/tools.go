package todoist

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolbridge/toolbridge/internal/envelope"
	"github.com/toolbridge/toolbridge/internal/registry"
)

const envToken = "TODOIST_TOKEN"

// Group is the Todoist tool group. Its probe requires TODOIST_TOKEN
// and nothing else.
type Group struct{}

// NewGroup returns the Todoist tool group.
func NewGroup() *Group { return &Group{} }

// Name implements registry.Group.
func (g *Group) Name() string { return "Todoist" }

// OperationNames implements registry.Group.
func (g *Group) OperationNames() []string {
	return []string{
		"create_task",
		"get_tasks",
		"complete_task",
		"update_task",
		"delete_task",
		"get_projects",
		"reopen_task",
		"get_task",
	}
}

// Attempt implements registry.Group.
func (g *Group) Attempt() ([]registry.Operation, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return nil, errors.New(envToken + " environment variable is not set. Get one from https://todoist.com/app/settings/integrations")
	}

	t := &tools{client: NewClient(token)}
	return []registry.Operation{
		{Definition: t.createTaskDefinition(), Handler: t.handleCreateTask},
		{Definition: t.getTasksDefinition(), Handler: t.handleGetTasks},
		{Definition: t.completeTaskDefinition(), Handler: t.handleCompleteTask},
		{Definition: t.updateTaskDefinition(), Handler: t.handleUpdateTask},
		{Definition: t.deleteTaskDefinition(), Handler: t.handleDeleteTask},
		{Definition: t.getProjectsDefinition(), Handler: t.handleGetProjects},
		{Definition: t.reopenTaskDefinition(), Handler: t.handleReopenTask},
		{Definition: t.getTaskDefinition(), Handler: t.handleGetTask},
	}, nil
}

type tools struct {
	client *Client
}

// --- create_task ---

func (t *tools) createTaskDefinition() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task in Todoist."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Task content"),
		),
		mcp.WithString("description",
			mcp.Description("Task description"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project ID (use get_projects to find available projects)"),
		),
		mcp.WithString("section_id",
			mcp.Description("Section ID"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Parent task ID (for sub-tasks)"),
		),
		mcp.WithNumber("order",
			mcp.Description("Task order"),
		),
		mcp.WithString("labels",
			mcp.Description("Label names, as a JSON array of strings"),
		),
		mcp.WithNumber("priority",
			mcp.Description("Task priority (1-4, where 4 is highest)"),
		),
		mcp.WithString("due_string",
			mcp.Description(`Human-readable due date (e.g., "tomorrow at 12:00", "every day")`),
		),
		mcp.WithString("due_date",
			mcp.Description("Specific due date in YYYY-MM-DD format"),
		),
		mcp.WithString("due_datetime",
			mcp.Description("Specific due datetime in RFC3339 format"),
		),
		mcp.WithString("due_lang",
			mcp.Description(`Language for due_string (e.g., "en", "es")`),
		),
		mcp.WithString("assignee_id",
			mcp.Description("Assignee ID (for shared projects)"),
		),
	)
}

func (t *tools) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return envelope.Errorf("'content' is required"), nil
	}

	payload := map[string]any{"content": content}
	setStringFields(payload, req,
		"description", "project_id", "section_id", "parent_id",
		"due_string", "due_date", "due_datetime", "due_lang", "assignee_id",
	)
	setIntFields(payload, req, "order", "priority")
	labels, err := stringListArg(req, "labels")
	if err != nil {
		return envelope.Error(err), nil
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}

	task, err := t.client.CreateTask(ctx, payload)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"task": task.payload()}), nil
}

// --- get_tasks ---

func (t *tools) getTasksDefinition() mcp.Tool {
	return mcp.NewTool("get_tasks",
		mcp.WithDescription("Get tasks from Todoist, optionally filtered."),
		mcp.WithString("project_id",
			mcp.Description("Filter by project ID"),
		),
		mcp.WithString("section_id",
			mcp.Description("Filter by section ID"),
		),
		mcp.WithString("label",
			mcp.Description("Filter by label"),
		),
		mcp.WithString("filter_query",
			mcp.Description(`Filter using Todoist's natural language (e.g., "today", "p1", "@home")`),
		),
		mcp.WithString("lang",
			mcp.Description("Language for filter_query"),
		),
		mcp.WithString("ids",
			mcp.Description("Specific task IDs to retrieve, as a JSON array of strings"),
		),
	)
}

func (t *tools) handleGetTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := url.Values{}
	for arg, param := range map[string]string{
		"project_id":   "project_id",
		"section_id":   "section_id",
		"label":        "label",
		"filter_query": "filter",
		"lang":         "lang",
	} {
		if v := req.GetString(arg, ""); v != "" {
			query.Set(param, v)
		}
	}
	ids, err := stringListArg(req, "ids")
	if err != nil {
		return envelope.Error(err), nil
	}
	if len(ids) > 0 {
		query.Set("ids", strings.Join(ids, ","))
	}

	tasks, err := t.client.Tasks(ctx, query)
	if err != nil {
		return envelope.Error(err), nil
	}

	list := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		list = append(list, tasks[i].payload())
	}
	return envelope.OK(map[string]any{
		"tasks": list,
		"count": len(list),
	}), nil
}

// --- complete_task ---

func (t *tools) completeTaskDefinition() mcp.Tool {
	return mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The ID of the task to complete"),
		),
	)
}

func (t *tools) handleCompleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return envelope.Errorf("'task_id' is required"), nil
	}
	if err := t.client.CloseTask(ctx, taskID); err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"task_id":   taskID,
		"completed": true,
	}), nil
}

// --- update_task ---

func (t *tools) updateTaskDefinition() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription("Update an existing task in Todoist."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The ID of the task to update"),
		),
		mcp.WithString("content",
			mcp.Description("New task content"),
		),
		mcp.WithString("description",
			mcp.Description("New task description"),
		),
		mcp.WithString("labels",
			mcp.Description("New label names, as a JSON array of strings"),
		),
		mcp.WithNumber("priority",
			mcp.Description("New priority (1-4, where 4 is highest)"),
		),
		mcp.WithString("due_string",
			mcp.Description("New human-readable due date"),
		),
		mcp.WithString("due_date",
			mcp.Description("New specific due date in YYYY-MM-DD format"),
		),
		mcp.WithString("due_datetime",
			mcp.Description("New specific due datetime in RFC3339 format"),
		),
		mcp.WithString("due_lang",
			mcp.Description("Language for due_string"),
		),
		mcp.WithString("assignee_id",
			mcp.Description("New assignee ID"),
		),
	)
}

func (t *tools) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return envelope.Errorf("'task_id' is required"), nil
	}

	payload := map[string]any{}
	setStringFields(payload, req,
		"content", "description",
		"due_string", "due_date", "due_datetime", "due_lang", "assignee_id",
	)
	setIntFields(payload, req, "priority")
	labels, err := stringListArg(req, "labels")
	if err != nil {
		return envelope.Error(err), nil
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	if len(payload) == 0 {
		return envelope.Errorf("nothing to update: provide at least one field"), nil
	}

	task, err := t.client.UpdateTask(ctx, taskID, payload)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"task": task.payload()}), nil
}

// --- delete_task ---

func (t *tools) deleteTaskDefinition() mcp.Tool {
	return mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task from Todoist."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The ID of the task to delete"),
		),
	)
}

func (t *tools) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return envelope.Errorf("'task_id' is required"), nil
	}
	if err := t.client.DeleteTask(ctx, taskID); err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"task_id": taskID,
		"deleted": true,
	}), nil
}

// --- get_projects ---

func (t *tools) getProjectsDefinition() mcp.Tool {
	return mcp.NewTool("get_projects",
		mcp.WithDescription("Get all projects from Todoist."),
	)
}

func (t *tools) handleGetProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.client.Projects(ctx)
	if err != nil {
		return envelope.Error(err), nil
	}

	list := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		list = append(list, map[string]any{
			"id":               p.ID,
			"name":             p.Name,
			"color":            p.Color,
			"parent_id":        p.ParentID,
			"order":            p.Order,
			"comment_count":    p.CommentCount,
			"is_shared":        p.IsShared,
			"is_favorite":      p.IsFavorite,
			"url":              p.URL,
			"is_inbox_project": p.IsInboxProject,
			"is_team_inbox":    p.IsTeamInbox,
		})
	}
	return envelope.OK(map[string]any{
		"projects": list,
		"count":    len(list),
	}), nil
}

// --- reopen_task ---

func (t *tools) reopenTaskDefinition() mcp.Tool {
	return mcp.NewTool("reopen_task",
		mcp.WithDescription("Reopen a completed task."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The ID of the task to reopen"),
		),
	)
}

func (t *tools) handleReopenTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return envelope.Errorf("'task_id' is required"), nil
	}
	if err := t.client.ReopenTask(ctx, taskID); err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{
		"task_id":   taskID,
		"completed": false,
	}), nil
}

// --- get_task ---

func (t *tools) getTaskDefinition() mcp.Tool {
	return mcp.NewTool("get_task",
		mcp.WithDescription("Get a specific task by ID."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The ID of the task to retrieve"),
		),
	)
}

func (t *tools) handleGetTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return envelope.Errorf("'task_id' is required"), nil
	}
	task, err := t.client.Task(ctx, taskID)
	if err != nil {
		return envelope.Error(err), nil
	}
	return envelope.OK(map[string]any{"task": task.payload()}), nil
}
