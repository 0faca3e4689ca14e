package ghl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// TokenResponse is the body returned by both OAuth endpoints.
type TokenResponse struct {
	AccessToken        string   `json:"access_token"`
	RefreshToken       string   `json:"refresh_token"`
	TokenType          string   `json:"token_type"`
	ExpiresIn          int64    `json:"expires_in"`
	Scope              string   `json:"scope"`
	UserType           string   `json:"userType"`
	CompanyID          string   `json:"companyId"`
	LocationID         string   `json:"locationId"`
	UserID             string   `json:"userId"`
	PlanID             string   `json:"planId"`
	ApprovedLocations  []string `json:"approvedLocations"`
	IsBulkInstallation bool     `json:"isBulkInstallation"`
}

// ExchangeCompanyToken runs an authorization_code or refresh_token grant
// against /oauth/token for an agency (Company) token.
func (c *Client) ExchangeCompanyToken(ctx context.Context, grantType, value string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", grantType)
	form.Set("user_type", "Company")
	form.Set("redirect_uri", c.redirectURI)

	switch grantType {
	case GrantAuthorizationCode:
		form.Set("code", value)
	case GrantRefreshToken:
		form.Set("refresh_token", value)
	default:
		return nil, fmt.Errorf("unsupported grant type %q", grantType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("company token: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out TokenResponse
	if err := c.send(c.httpClient, "company token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeLocationToken mints a sub-account token using the agency token as bearer.
func (c *Client) ExchangeLocationToken(ctx context.Context, companyID, locationID, companyAccessToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("companyId", companyID)
	form.Set("locationId", locationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/locationToken", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("location token: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Version", APIVersion)

	var out TokenResponse
	if err := c.send(c.bearerClient(ctx, companyAccessToken), "location token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
