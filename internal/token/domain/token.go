package domain

import "time"

// Kind distinguishes agency tokens from sub-account tokens.
type Kind string

const (
	KindCompany  Kind = "Company"
	KindLocation Kind = "Location"
)

// NoLocationID is stored as locationId on Company tokens so every record has
// a (companyId, locationId) key.
const NoLocationID = "none"

func (k Kind) Valid() bool {
	return k == KindCompany || k == KindLocation
}

// Token is a decrypted OAuth credential.
type Token struct {
	AccessToken       string    `json:"-"`
	RefreshToken      string    `json:"-"`
	TokenType         string    `json:"token_type"`
	ExpiresIn         int64     `json:"expires_in"`
	Scope             string    `json:"scope"`
	Kind              Kind      `json:"userType"`
	CompanyID         string    `json:"companyId"`
	LocationID        string    `json:"locationId,omitempty"`
	UserID            string    `json:"userId,omitempty"`
	PlanID            string    `json:"planId,omitempty"`
	ApprovedLocations []string  `json:"approvedLocations,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ExpiresAt is updatedAt + expires_in.
func (t *Token) ExpiresAt() time.Time {
	return t.UpdatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// NeedsRefresh reports whether the token expires before now+window.
func (t *Token) NeedsRefresh(now time.Time, window time.Duration) bool {
	return t.ExpiresAt().Before(now.Add(window))
}

// StoredLocationID returns the locationId key used in the store.
func StoredLocationID(kind Kind, locationID string) string {
	if kind == KindCompany || locationID == "" {
		return NoLocationID
	}
	return locationID
}

// Patch is a partial update keyed on (CompanyID, Kind, LocationID).
// Nil fields are left untouched on an existing record.
type Patch struct {
	CompanyID  string
	Kind       Kind
	LocationID string

	AccessToken       *string
	RefreshToken      *string
	TokenType         *string
	ExpiresIn         *int64
	Scope             *string
	UserID            *string
	PlanID            *string
	ApprovedLocations []string
}

// PatchFromToken builds a patch that sets every field of t.
func PatchFromToken(t *Token) Patch {
	p := Patch{
		CompanyID:    t.CompanyID,
		Kind:         t.Kind,
		LocationID:   t.LocationID,
		AccessToken:  &t.AccessToken,
		RefreshToken: &t.RefreshToken,
		TokenType:    &t.TokenType,
		ExpiresIn:    &t.ExpiresIn,
		Scope:        &t.Scope,
	}
	if t.UserID != "" {
		p.UserID = &t.UserID
	}
	if t.PlanID != "" {
		p.PlanID = &t.PlanID
	}
	if t.ApprovedLocations != nil {
		p.ApprovedLocations = t.ApprovedLocations
	}
	return p
}
