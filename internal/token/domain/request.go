package domain

// GrantType selects the agency OAuth grant.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// Request is either a CompanyGrant or a LocationGrant.
type Request interface {
	isTokenRequest()
}

// CompanyGrant exchanges a code or refresh token for an agency token.
type CompanyGrant struct {
	GrantType GrantType
	// Code for authorization_code, refresh token for refresh_token.
	Value string
}

// LocationGrant mints a sub-account token with the agency token as bearer.
type LocationGrant struct {
	CompanyID  string
	LocationID string
	Bearer     string
}

func (CompanyGrant) isTokenRequest()  {}
func (LocationGrant) isTokenRequest() {}
