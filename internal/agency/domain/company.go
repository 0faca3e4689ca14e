package domain

import (
	"time"

	tokendomain "ghl-backend/internal/token/domain"
)

const (
	InstallTypeOAuth   = "OAuth"
	InstallTypeWebhook = "Webhook"
)

// Trial is the platform trial state reported at install time.
type Trial struct {
	OnTrial       bool   `json:"onTrial"`
	TrialDuration int64  `json:"trialDuration,omitempty"`
	TrialStart    string `json:"trialStartDate,omitempty"`
}

// Company is the agency that installed the app. It carries token metadata
// for lookups but never the token secrets.
type Company struct {
	CompanyID           string    `json:"companyId"`
	AppID               string    `json:"appId"`
	UserID              string    `json:"userId,omitempty"`
	PlanID              string    `json:"planId,omitempty"`
	CompanyName         string    `json:"companyName"`
	InstallType         string    `json:"installType"`
	IsWhitelabelCompany bool      `json:"isWhitelabelCompany"`
	Trial               *Trial    `json:"trial,omitempty"`
	TokenType           string    `json:"token_type,omitempty"`
	ExpiresIn           int64     `json:"expires_in,omitempty"`
	Scope               string    `json:"scope,omitempty"`
	UserType            string    `json:"userType,omitempty"`
	ApprovedLocations   []string  `json:"approvedLocations,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// FromToken builds the company record for an OAuth install.
func FromToken(t *tokendomain.Token, appID, companyName string) Company {
	return Company{
		CompanyID:         t.CompanyID,
		AppID:             appID,
		UserID:            t.UserID,
		PlanID:            t.PlanID,
		CompanyName:       companyName,
		InstallType:       InstallTypeOAuth,
		TokenType:         t.TokenType,
		ExpiresIn:         t.ExpiresIn,
		Scope:             t.Scope,
		UserType:          string(t.Kind),
		ApprovedLocations: t.ApprovedLocations,
	}
}
