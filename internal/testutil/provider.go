package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"ghl-backend/pkg/anythingllm"
)

// Provider is a fake AnythingLLM admin API.
type Provider struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextID      int
	users       map[int]anythingllm.User
	workspaces  map[string]anythingllm.Workspace
	assignments map[string][]int
	// FailAll makes every request return 500.
	FailAll bool
}

func NewProvider(t *testing.T) *Provider {
	t.Helper()
	p := &Provider{
		nextID:      1,
		users:       map[int]anythingllm.User{},
		workspaces:  map[string]anythingllm.Workspace{},
		assignments: map[string][]int{},
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Provider) Client() *anythingllm.Client {
	return anythingllm.NewClient(p.Server.URL, "provider-key")
}

func (p *Provider) SetFailAll(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FailAll = v
}

// Usernames lists provider users.
func (p *Provider) Usernames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, u := range p.users {
		out = append(out, u.Username)
	}
	return out
}

// WorkspaceSlugs lists provider workspaces.
func (p *Provider) WorkspaceSlugs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for slug := range p.workspaces {
		out = append(out, slug)
	}
	return out
}

// Members returns user ids assigned to a workspace.
func (p *Provider) Members(slug string) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.assignments[slug]...)
}

func (p *Provider) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailAll {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "provider down"})
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/v1/admin/users/new":
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, u := range p.users {
			if u.Username == body.Username {
				writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil, "error": "username taken"})
				return
			}
		}
		u := anythingllm.User{ID: p.nextID, Username: body.Username, Role: "default"}
		p.nextID++
		p.users[u.ID] = u
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": u, "error": nil})

	case r.Method == http.MethodGet && path == "/v1/admin/users":
		users := []anythingllm.User{}
		for _, u := range p.users {
			users = append(users, u)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})

	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/v1/admin/users/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(path, "/v1/admin/users/"))
		delete(p.users, id)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	case r.Method == http.MethodPost && path == "/v1/workspace/new":
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		slug := strings.ToLower(body.Name)
		ws := anythingllm.Workspace{ID: p.nextID, Name: body.Name, Slug: slug}
		p.nextID++
		p.workspaces[slug] = ws
		writeJSON(w, http.StatusOK, map[string]interface{}{"workspace": ws, "message": "created"})

	case r.Method == http.MethodGet && path == "/v1/workspaces":
		list := []anythingllm.Workspace{}
		for _, ws := range p.workspaces {
			list = append(list, ws)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"workspaces": list})

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/v1/admin/workspaces/") && strings.HasSuffix(path, "/manage-users"):
		slug := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/admin/workspaces/"), "/manage-users")
		var body struct {
			UserIDs []int `json:"userIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.UserIDs {
			if !containsInt(p.assignments[slug], id) {
				p.assignments[slug] = append(p.assignments[slug], id)
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/v1/workspace/"):
		slug := strings.TrimPrefix(path, "/v1/workspace/")
		delete(p.workspaces, slug)
		delete(p.assignments, slug)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	default:
		http.NotFound(w, r)
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
