// Package notion exposes Notion page and database operations as MCP
// tools, backed by a thin client over the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiBase    = "https://api.notion.com/v1"
	apiVersion = "2022-06-28"
)

// Client is a minimal Notion API client covering the endpoints the
// tool group needs. Responses stay loosely typed: Notion page objects
// carry caller-defined property schemas that are passed through to the
// MCP caller untouched.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client authenticated with the given integration
// token.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreatePage creates a page (in a database or standalone, depending on
// the parent in the payload).
func (c *Client) CreatePage(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/pages", payload)
}

// QueryDatabase runs a database query with optional filter and sorts.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, query map[string]any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", query)
}

// Page retrieves a page's metadata.
func (c *Client) Page(ctx context.Context, pageID string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/pages/"+pageID, nil)
}

// BlockChildren lists a block's (or page's) child blocks.
func (c *Client) BlockChildren(ctx context.Context, blockID string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/blocks/"+blockID+"/children", nil)
}

// UpdatePage patches a page's properties or archived flag.
func (c *Client) UpdatePage(ctx context.Context, pageID string, payload map[string]any) (map[string]any, error) {
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, raw)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// apiError extracts Notion's error message from an error response so
// the backend's own description reaches the caller.
func apiError(status int, raw []byte) error {
	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return fmt.Errorf("notion API: %s (HTTP %d)", body.Message, status)
	}
	return fmt.Errorf("notion API: HTTP %d", status)
}

// normalizePageID accepts either a bare page ID or a full notion.so
// URL and returns the ID portion.
func normalizePageID(id string) string {
	if !strings.Contains(id, "notion.so") {
		return id
	}
	parts := strings.Split(id, "/")
	last := parts[len(parts)-1]
	if i := strings.IndexByte(last, '?'); i >= 0 {
		last = last[:i]
	}
	return last
}
