package domain

import (
	"time"

	"ghl-backend/pkg/ghl"
)

type Roles struct {
	Type        string   `json:"type"`
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

// User is a platform user synchronised for one or more locations.
type User struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	Email       string                 `json:"email"`
	Phone       string                 `json:"phone,omitempty"`
	Extension   string                 `json:"extension,omitempty"`
	Role        string                 `json:"role,omitempty"`
	Roles       Roles                  `json:"roles"`
	Permissions map[string]interface{} `json:"permissions,omitempty"`
	LocationID  string                 `json:"locationId"`
	CompanyID   string                 `json:"companyId"`
	// LocationIDs is every location the user is stored under.
	LocationIDs []string  `json:"locationIds"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FromPlatform maps a platform user fetched for a location.
func FromPlatform(u ghl.User, locationID, companyID string) User {
	return User{
		ID:          u.ID,
		Name:        u.Name,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Extension:   u.Extension,
		Role:        u.Roles.Role,
		Roles:       Roles{Type: u.Roles.Type, Role: u.Roles.Role, LocationIDs: u.Roles.LocationIDs},
		Permissions: u.Permissions,
		LocationID:  locationID,
		CompanyID:   companyID,
		Deleted:     u.Deleted,
	}
}

// WithLocation returns ids with locationID appended if missing.
func WithLocation(ids []string, locationID string) []string {
	for _, id := range ids {
		if id == locationID {
			return ids
		}
	}
	return append(append([]string(nil), ids...), locationID)
}

// WithoutLocation returns ids minus locationID.
func WithoutLocation(ids []string, locationID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != locationID {
			out = append(out, id)
		}
	}
	return out
}
