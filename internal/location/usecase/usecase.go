package usecase

import (
	"context"

	"ghl-backend/internal/location/domain"
	tokendomain "ghl-backend/internal/token/domain"
	"ghl-backend/pkg/ghl"
)

// LocationUsecase enumerates installed locations and mints their tokens.
type LocationUsecase interface {
	// EnumerateLocations pages the installed-locations endpoint, stores the
	// installed ones and reports which were new.
	EnumerateLocations(ctx context.Context, accessToken, companyID, appID string) (*domain.Enumeration, error)

	// MintLocationToken never returns an error; failure is carried in the result.
	MintLocationToken(ctx context.Context, companyID, companyAccessToken, locationID string) domain.MintResult

	// BatchInstall enumerates, persists and mints tokens for every installed location.
	// Failed locations are excluded from Tokened and retried in the background.
	BatchInstall(ctx context.Context, company *tokendomain.Token, appID string) (*domain.BatchResult, error)

	// FetchLocationTokens mints tokens for every locally installed location of a company.
	FetchLocationTokens(ctx context.Context, companyID, companyAccessToken string) ([]domain.MintResult, error)

	// FetchLocationTokensWithRetry runs FetchLocationTokens once inline and retries
	// the failed locations in the background. It returns the retry task id, if any.
	FetchLocationTokensWithRetry(ctx context.Context, companyID, companyAccessToken string) (string, error)

	// Create stores a location reported by a LocationCreate webhook and
	// returns the stored record. It never clears isInstalled on a location
	// that is already installed.
	Create(ctx context.Context, location domain.Location) (*domain.Location, error)

	// Update applies a LocationUpdate webhook.
	Update(ctx context.Context, patch domain.Patch) error

	// Uninstall deletes the location and its token.
	Uninstall(ctx context.Context, locationID string) error
}

// LocationsClient pages installed locations on the platform.
type LocationsClient interface {
	InstalledLocationsPage(ctx context.Context, companyAccessToken, companyID, appID string, skip int) ([]ghl.InstalledLocation, error)
}

// TokenAcquirer mints tokens.
type TokenAcquirer interface {
	Acquire(ctx context.Context, req tokendomain.Request) (*tokendomain.Token, error)
}

// TokenStore is the token persistence used for retries and uninstall.
type TokenStore interface {
	Get(ctx context.Context, companyID string, kind tokendomain.Kind, locationID string) (*tokendomain.Token, error)
	Remove(ctx context.Context, companyID string, kind tokendomain.Kind, locationID string) error
}
