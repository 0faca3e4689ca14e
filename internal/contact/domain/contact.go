package domain

import (
	"time"

	"ghl-backend/pkg/ghl"
)

// Contact is a platform contact of a location.
type Contact struct {
	ID           string                   `json:"id"`
	LocationID   string                   `json:"locationId"`
	CompanyID    string                   `json:"companyId,omitempty"`
	FirstName    string                   `json:"firstName"`
	LastName     string                   `json:"lastName"`
	Email        string                   `json:"email"`
	Phone        string                   `json:"phone"`
	Tags         []string                 `json:"tags"`
	DND          bool                     `json:"dnd"`
	Source       string                   `json:"source,omitempty"`
	DateAdded    string                   `json:"dateAdded,omitempty"`
	CustomFields []map[string]interface{} `json:"customFields,omitempty"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

func FromPlatform(c ghl.Contact, locationID, companyID string) Contact {
	if c.LocationID != "" {
		locationID = c.LocationID
	}
	return Contact{
		ID:           c.ID,
		LocationID:   locationID,
		CompanyID:    companyID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Email:        c.Email,
		Phone:        c.Phone,
		Tags:         c.Tags,
		DND:          c.DND,
		Source:       c.Source,
		DateAdded:    c.DateAdded,
		CustomFields: c.CustomFields,
	}
}
