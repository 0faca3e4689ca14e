package domain

import (
	"time"

	tokendomain "ghl-backend/internal/token/domain"
)

// Location is a platform sub-account installed under a company.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	CompanyID   string    `json:"companyId"`
	AppID       string    `json:"appId,omitempty"`
	IsInstalled bool      `json:"isInstalled"`
	OnTrial     bool      `json:"onTrial"`
	TrialEndsAt string    `json:"trialEndDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch is a partial location update from a webhook. Nil fields are untouched.
type Patch struct {
	ID          string
	CompanyID   *string
	Name        *string
	Address     *string
	AppID       *string
	IsInstalled *bool
}

// Enumeration is the result of paging the installed-locations endpoint.
type Enumeration struct {
	Installed []Location
	// New lists installed locations that were not known locally before this call.
	New []Location
}

// MintResult is the per-location outcome of a token mint. Exactly one of
// Token and Err is set.
type MintResult struct {
	LocationID string
	Token      *tokendomain.Token
	Err        error
}

func (r MintResult) OK() bool {
	return r.Err == nil && r.Token != nil
}

// BatchResult splits a fan-out into tokened and failed locations.
type BatchResult struct {
	Enumeration *Enumeration
	Tokened     []MintResult
	Failed      []MintResult
	// RetryTaskID is set when failed mints were queued for retry.
	RetryTaskID string
}

// Split partitions results by outcome, preserving order.
func Split(results []MintResult) (ok, failed []MintResult) {
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}
	return ok, failed
}
