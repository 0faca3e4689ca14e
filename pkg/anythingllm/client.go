// Package anythingllm talks to the AnythingLLM developer API.
package anythingllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ghl-backend/pkg/apperrors"

	"golang.org/x/oauth2"
)

// Workspace defaults applied to every provisioned workspace.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultTemperature         = 0.7
	DefaultHistory             = 20
	DefaultTopN                = 4
	DefaultChatMode            = "chat"
)

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Workspace struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// WorkspaceSettings are the per-workspace prompt fields.
type WorkspaceSettings struct {
	Name                 string
	Prompt               string
	QueryRefusalResponse string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Error is a non-2xx response from the provider.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("anythingllm %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return apperrors.ErrUpstream }

// NewClient authenticates every request with the static API key.
func NewClient(baseURL, apiKey string) *Client {
	base := &http.Client{Timeout: 30 * time.Second}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: apiKey,
			TokenType:   "Bearer",
		})),
	}
}

func (c *Client) CreateUser(ctx context.Context, username, password string) (*User, error) {
	body := map[string]string{
		"username": username,
		"password": password,
		"role":     "default",
	}
	var out struct {
		User  *User  `json:"user"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, "create user", http.MethodPost, "/v1/admin/users/new", body, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("anythingllm create user %s: %s: %w", username, out.Error, apperrors.ErrUpstream)
	}
	return out.User, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, "list users", http.MethodGet, "/v1/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// FindUserByUsername matches case-insensitively. It returns nil, nil when absent.
func (c *Client) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, "delete user", http.MethodDelete, "/v1/admin/users/"+strconv.Itoa(id), nil, nil)
}

func (c *Client) CreateWorkspace(ctx context.Context, s WorkspaceSettings) (*Workspace, error) {
	body := map[string]interface{}{
		"name":                 s.Name,
		"similarityThreshold":  DefaultSimilarityThreshold,
		"openAiTemp":           DefaultTemperature,
		"openAiHistory":        DefaultHistory,
		"openAiPrompt":         s.Prompt,
		"queryRefusalResponse": s.QueryRefusalResponse,
		"chatMode":             DefaultChatMode,
		"topN":                 DefaultTopN,
	}
	var out struct {
		Workspace *Workspace `json:"workspace"`
		Message   string     `json:"message"`
	}
	if err := c.do(ctx, "create workspace", http.MethodPost, "/v1/workspace/new", body, &out); err != nil {
		return nil, err
	}
	if out.Workspace == nil {
		return nil, fmt.Errorf("anythingllm create workspace %s: %s: %w", s.Name, out.Message, apperrors.ErrUpstream)
	}
	return out.Workspace, nil
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out struct {
		Workspaces []Workspace `json:"workspaces"`
	}
	if err := c.do(ctx, "list workspaces", http.MethodGet, "/v1/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out.Workspaces, nil
}

// AssignUsers adds users to a workspace without removing existing members.
func (c *Client) AssignUsers(ctx context.Context, slug string, userIDs []int) error {
	body := map[string]interface{}{
		"userIds": userIDs,
		"reset":   false,
	}
	return c.do(ctx, "assign workspace", http.MethodPost, "/v1/admin/workspaces/"+url.PathEscape(slug)+"/manage-users", body, nil)
}

func (c *Client) DeleteWorkspace(ctx context.Context, slug string) error {
	return c.do(ctx, "delete workspace", http.MethodDelete, "/v1/workspace/"+url.PathEscape(strings.ToLower(slug)), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("anythingllm %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("anythingllm %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anythingllm %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anythingllm %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("anythingllm %s: decode: %w", op, err)
	}
	return nil
}
