package domain

import "encoding/json"

// Event types sent by the platform.
const (
	TypeInstall         = "INSTALL"
	TypeUninstall       = "UNINSTALL"
	TypeUserCreate      = "UserCreate"
	TypeUserUpdate      = "UserUpdate"
	TypeLocationCreate  = "LocationCreate"
	TypeLocationUpdate  = "LocationUpdate"
	TypeContactCreate   = "ContactCreate"
	TypeContactUpdate   = "ContactUpdate"
	TypeContactDelete   = "ContactDelete"
	TypeInboundMessage  = "InboundMessage"
	TypeOutboundMessage = "OutboundMessage"
)

type Trial struct {
	OnTrial       bool   `json:"onTrial"`
	TrialDuration int64  `json:"trialDuration"`
	TrialStart    string `json:"trialStartDate"`
}

type Roles struct {
	Type        string   `json:"type"`
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

// Event is the union of every webhook payload. Only the fields relevant to
// Type are populated.
type Event struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	AppID      string `json:"appId"`
	CompanyID  string `json:"companyId"`
	LocationID string `json:"locationId"`

	// INSTALL
	InstallType         string `json:"installType"`
	UserID              string `json:"userId"`
	PlanID              string `json:"planId"`
	CompanyName         string `json:"companyName"`
	IsWhitelabelCompany bool   `json:"isWhitelabelCompany"`
	Trial               *Trial `json:"trial"`

	// User and contact
	Name        string                 `json:"name"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	Email       string                 `json:"email"`
	Phone       string                 `json:"phone"`
	Extension   string                 `json:"extension"`
	Role        string                 `json:"role"`
	Roles       *Roles                 `json:"roles"`
	Permissions map[string]interface{} `json:"permissions"`
	Locations   []string               `json:"locations"`

	Tags         []string                 `json:"tags"`
	DND          bool                     `json:"dnd"`
	Source       string                   `json:"source"`
	DateAdded    string                   `json:"dateAdded"`
	CustomFields []map[string]interface{} `json:"customFields"`

	// Location
	Address *string `json:"address"`

	MessageType string `json:"messageType"`
}

// Parse decodes a raw webhook body.
func Parse(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Outcome reports what the dispatcher did with an event.
type Outcome struct {
	Type    string `json:"type"`
	Handled bool   `json:"handled"`
	// Detail is a short note such as the install run id or why it was ignored.
	Detail string `json:"detail,omitempty"`
}
