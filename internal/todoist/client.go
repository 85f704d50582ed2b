// Package todoist exposes Todoist task and project operations as MCP
// tools, backed by a thin client over the Todoist REST v2 API.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiBase = "https://api.todoist.com/rest/v2"

// Task is a Todoist task as returned by the REST API.
type Task struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Description  string   `json:"description"`
	ProjectID    string   `json:"project_id"`
	SectionID    string   `json:"section_id"`
	ParentID     string   `json:"parent_id"`
	Order        int      `json:"order"`
	Labels       []string `json:"labels"`
	Priority     int      `json:"priority"`
	Due          *Due     `json:"due"`
	URL          string   `json:"url"`
	CommentCount int      `json:"comment_count"`
	IsCompleted  bool     `json:"is_completed"`
	CreatedAt    string   `json:"created_at"`
}

// Due is a task's due-date object.
type Due struct {
	Date        string `json:"date"`
	String      string `json:"string"`
	Lang        string `json:"lang"`
	IsRecurring bool   `json:"is_recurring"`
	Datetime    string `json:"datetime,omitempty"`
}

// Project is a Todoist project.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	ParentID       string `json:"parent_id"`
	Order          int    `json:"order"`
	CommentCount   int    `json:"comment_count"`
	IsShared       bool   `json:"is_shared"`
	IsFavorite     bool   `json:"is_favorite"`
	URL            string `json:"url"`
	IsInboxProject bool   `json:"is_inbox_project"`
	IsTeamInbox    bool   `json:"is_team_inbox"`
}

// Client is a minimal Todoist REST v2 client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client authenticated with the given API token.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateTask creates a task. The payload uses the REST API's field
// names; only set fields should be present.
func (c *Client) CreateTask(ctx context.Context, payload map[string]any) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", payload, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Tasks lists active tasks matching the given query parameters.
func (c *Client) Tasks(ctx context.Context, query url.Values) ([]Task, error) {
	path := "/tasks"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Task retrieves a single active task.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask updates a task and returns the updated object.
func (c *Client) UpdateTask(ctx context.Context, id string, payload map[string]any) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+id, payload, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CloseTask marks a task completed.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+id+"/close", nil, nil)
}

// ReopenTask reopens a completed task.
func (c *Client) ReopenTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+id+"/reopen", nil, nil)
}

// DeleteTask permanently deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// do runs one API request. out may be nil for endpoints that return no
// body (close, reopen, delete).
func (c *Client) do(ctx context.Context, method, path string, payload map[string]any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Todoist error bodies are plain text or a JSON error object;
		// pass them along as-is so the caller sees the backend's words.
		msg := string(bytes.TrimSpace(raw))
		if msg == "" {
			return fmt.Errorf("todoist API: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("todoist API: HTTP %d: %s", resp.StatusCode, msg)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// payload returns the task reshaped to the envelope's documented keys.
func (t *Task) payload() map[string]any {
	var due any
	if t.Due != nil {
		due = map[string]any{
			"date":         t.Due.Date,
			"string":       t.Due.String,
			"lang":         t.Due.Lang,
			"is_recurring": t.Due.IsRecurring,
			"datetime":     t.Due.Datetime,
		}
	}
	return map[string]any{
		"id":            t.ID,
		"content":       t.Content,
		"description":   t.Description,
		"project_id":    t.ProjectID,
		"section_id":    t.SectionID,
		"parent_id":     t.ParentID,
		"order":         t.Order,
		"labels":        t.Labels,
		"priority":      t.Priority,
		"due":           due,
		"url":           t.URL,
		"comment_count": t.CommentCount,
		"completed":     t.IsCompleted,
		"created_at":    t.CreatedAt,
	}
}
