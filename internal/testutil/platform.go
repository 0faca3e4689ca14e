// Package testutil provides in-process fakes of the CRM platform and the
// AnythingLLM provider for package tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ghl-backend/pkg/ghl"
)

// Platform is a fake of the platform OAuth and resource APIs.
type Platform struct {
	Server *httptest.Server

	mu sync.Mutex
	// CompanyToken is returned by /oauth/token.
	CompanyToken map[string]interface{}
	Locations    []ghl.InstalledLocation
	Users        map[string][]ghl.User
	Contacts     map[string][]ghl.Contact
	// LocationTokenFailures is the number of remaining failures per location; -1 fails forever.
	LocationTokenFailures map[string]int
	// UserFailures makes /users/ fail for the listed locations.
	UserFailures map[string]bool

	calls map[string]int
	forms []map[string]string
}

// NewPlatform starts a fake platform that is shut down with the test.
func NewPlatform(t *testing.T) *Platform {
	t.Helper()
	p := &Platform{
		CompanyToken: map[string]interface{}{
			"access_token":  "AT1",
			"refresh_token": "RT1",
			"token_type":    "Bearer",
			"expires_in":    86399,
			"userType":      "Company",
			"companyId":     "C1",
		},
		Users:                 map[string][]ghl.User{},
		Contacts:              map[string][]ghl.Contact{},
		LocationTokenFailures: map[string]int{},
		UserFailures:          map[string]bool{},
		calls:                 map[string]int{},
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

// Client returns a platform client pointed at the fake.
func (p *Platform) Client() *ghl.Client {
	return ghl.NewClient(ghl.Config{
		BaseURL:          p.Server.URL,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		RedirectURI:      "https://app.example.com/api/oauth/callback",
		ContactRetryBase: time.Millisecond,
	})
}

// Calls returns how many requests hit path.
func (p *Platform) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// TokenForms returns every form posted to /oauth/token.
func (p *Platform) TokenForms() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.forms...)
}

// SetLocationTokenFailures sets how many times minting fails for a location.
func (p *Platform) SetLocationTokenFailures(locationID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LocationTokenFailures[locationID] = n
}

func (p *Platform) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.calls[r.URL.Path]++
	p.mu.Unlock()

	switch r.URL.Path {
	case "/oauth/token":
		p.serveCompanyToken(w, r)
	case "/oauth/locationToken":
		p.serveLocationToken(w, r)
	case "/oauth/installedLocations":
		p.serveInstalledLocations(w, r)
	case "/users/":
		p.serveUsers(w, r)
	case "/contacts/search":
		p.serveContacts(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *Platform) serveCompanyToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	p.mu.Lock()
	p.forms = append(p.forms, form)
	resp := make(map[string]interface{}, len(p.CompanyToken))
	for k, v := range p.CompanyToken {
		resp[k] = v
	}
	p.mu.Unlock()

	if form["grant_type"] == "refresh_token" {
		resp["access_token"] = "AT-refreshed"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Platform) serveLocationToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	companyID := r.PostForm.Get("companyId")
	locationID := r.PostForm.Get("locationId")
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p.mu.Lock()
	failures := p.LocationTokenFailures[locationID]
	if failures > 0 {
		p.LocationTokenFailures[locationID] = failures - 1
	}
	p.mu.Unlock()

	if failures != 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "location not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  "AT-" + locationID,
		"refresh_token": "RT-" + locationID,
		"expires_in":    86399,
		"userType":      "Location",
		"companyId":     companyID,
		"locationId":    locationID,
		"scope":         "from:" + bearer,
	})
}

func (p *Platform) serveInstalledLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, _ := strconv.Atoi(q.Get("skip"))

	p.mu.Lock()
	all := append([]ghl.InstalledLocation(nil), p.Locations...)
	p.mu.Unlock()

	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	page := []ghl.InstalledLocation{}
	if skip < len(all) {
		page = all[skip:end]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": page, "count": len(all)})
}

func (p *Platform) serveUsers(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("locationId")

	p.mu.Lock()
	fail := p.UserFailures[locationID]
	users := p.Users[locationID]
	p.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return
	}
	if users == nil {
		users = []ghl.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (p *Platform) serveContacts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LocationID  string        `json:"locationId"`
		PageLimit   int           `json:"pageLimit"`
		SearchAfter []interface{} `json:"searchAfter"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	all := p.Contacts[body.LocationID]
	p.mu.Unlock()

	start := 0
	if len(body.SearchAfter) > 0 {
		if f, ok := body.SearchAfter[0].(float64); ok {
			start = int(f) + 1
		}
	}
	page := []ghl.Contact{}
	for i := start; i < len(all) && len(page) < body.PageLimit; i++ {
		c := all[i]
		c.SearchAfter = []interface{}{i}
		page = append(page, c)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": page})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Installed builds installed location entries.
func Installed(ids ...string) []ghl.InstalledLocation {
	out := make([]ghl.InstalledLocation, 0, len(ids))
	for _, id := range ids {
		out = append(out, ghl.InstalledLocation{ID: id, Name: "Location " + id, IsInstalled: true})
	}
	return out
}
