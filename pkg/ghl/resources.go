package ghl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	LocationPageSize = 100
	ContactPageSize  = 100
	contactAttempts  = 3
)

// InstalledLocation is one entry from /oauth/installedLocations.
type InstalledLocation struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	IsInstalled bool   `json:"isInstalled"`
	Trial       *struct {
		OnTrial bool   `json:"onTrial"`
		EndDate string `json:"trialEndDate"`
	} `json:"trial,omitempty"`
}

type installedLocationsResponse struct {
	Locations []InstalledLocation `json:"locations"`
	Count     int                 `json:"count"`
}

// InstalledLocationsPage fetches one page of locations the app is installed on.
func (c *Client) InstalledLocationsPage(ctx context.Context, companyAccessToken, companyID, appID string, skip int) ([]InstalledLocation, error) {
	q := url.Values{}
	q.Set("companyId", companyID)
	q.Set("appId", appID)
	q.Set("isInstalled", "true")
	q.Set("limit", strconv.Itoa(LocationPageSize))
	q.Set("skip", strconv.Itoa(skip))

	var out installedLocationsResponse
	err := c.doJSON(ctx, c.bearerClient(ctx, companyAccessToken), "installed locations", http.MethodGet, "/oauth/installedLocations?"+q.Encode(), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Locations, nil
}

type UserRole struct {
	Type        string   `json:"type"`
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

type User struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	Email       string                 `json:"email"`
	Phone       string                 `json:"phone"`
	Extension   string                 `json:"extension"`
	Roles       UserRole               `json:"roles"`
	Permissions map[string]interface{} `json:"permissions"`
	Deleted     bool                   `json:"deleted"`
}

// ListUsers returns every user of a location.
func (c *Client) ListUsers(ctx context.Context, locationAccessToken, locationID string) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	path := "/users/?locationId=" + url.QueryEscape(locationID)
	if err := c.doJSON(ctx, c.bearerClient(ctx, locationAccessToken), "list users", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

type Contact struct {
	ID           string                   `json:"id"`
	LocationID   string                   `json:"locationId"`
	FirstName    string                   `json:"firstName"`
	LastName     string                   `json:"lastName"`
	Email        string                   `json:"email"`
	Phone        string                   `json:"phone"`
	Tags         []string                 `json:"tags"`
	DND          bool                     `json:"dnd"`
	Source       string                   `json:"source"`
	DateAdded    string                   `json:"dateAdded"`
	CustomFields []map[string]interface{} `json:"customFields"`
	SearchAfter  []interface{}            `json:"searchAfter"`
}

type contactSearchRequest struct {
	LocationID  string        `json:"locationId"`
	PageLimit   int           `json:"pageLimit"`
	SearchAfter []interface{} `json:"searchAfter,omitempty"`
}

// SearchContacts pages through every contact of a location using the
// searchAfter cursor. Each page is attempted up to three times with
// exponential backoff on transient failures.
func (c *Client) SearchContacts(ctx context.Context, locationAccessToken, locationID string) ([]Contact, error) {
	hc := c.bearerClient(ctx, locationAccessToken)

	var all []Contact
	var cursor []interface{}
	for {
		page, err := c.searchContactsPage(ctx, hc, contactSearchRequest{
			LocationID:  locationID,
			PageLimit:   ContactPageSize,
			SearchAfter: cursor,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < ContactPageSize {
			return all, nil
		}
		cursor = page[len(page)-1].SearchAfter
		if len(cursor) == 0 {
			return all, nil
		}
	}
}

func (c *Client) searchContactsPage(ctx context.Context, hc *http.Client, body contactSearchRequest) ([]Contact, error) {
	var out struct {
		Contacts []Contact `json:"contacts"`
	}

	var err error
	for attempt := 1; attempt <= contactAttempts; attempt++ {
		err = c.doJSON(ctx, hc, "search contacts", http.MethodPost, "/contacts/search", body, &out)
		if err == nil {
			return out.Contacts, nil
		}
		if !IsTransient(err) || attempt == contactAttempts {
			break
		}

		delay := c.contactRetryBase * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("search contacts for %s: %w", body.LocationID, err)
}
