// Package ghl is a client for the CRM platform's OAuth and resource APIs.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ghl-backend/pkg/apperrors"

	"golang.org/x/oauth2"
)

// APIVersion is sent as the Version header on every call.
const APIVersion = "2021-07-28"

const (
	DefaultBaseURL        = "https://services.leadconnectorhq.com"
	DefaultMarketplaceURL = "https://marketplace.gohighlevel.com"
)

type Config struct {
	BaseURL        string
	MarketplaceURL string
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Scopes         []string
	HTTPClient     *http.Client
	// Base delay for the contacts search backoff (delay = base * 2^attempt).
	ContactRetryBase time.Duration
}

type Client struct {
	baseURL          string
	clientID         string
	clientSecret     string
	redirectURI      string
	httpClient       *http.Client
	oauthConfig      *oauth2.Config
	contactRetryBase time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MarketplaceURL == "" {
		cfg.MarketplaceURL = DefaultMarketplaceURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.ContactRetryBase == 0 {
		cfg.ContactRetryBase = time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		httpClient:   cfg.HTTPClient,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   strings.TrimRight(cfg.MarketplaceURL, "/") + "/oauth/chooselocation",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		contactRetryBase: cfg.ContactRetryBase,
	}
}

// AuthorizeURL is the marketplace link that starts an agency install.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state)
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return apperrors.ErrUpstream }

// Transient reports whether retrying the same request may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient classifies rate limits, 5xx responses and network failures as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// bearerClient returns an HTTP client that attaches the given access token.
func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(hc, op, req, out)
}

func (c *Client) send(hc *http.Client, op string, req *http.Request, out interface{}) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
