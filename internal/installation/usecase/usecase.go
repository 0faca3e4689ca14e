package usecase

import (
	"context"

	"ghl-backend/internal/installation/domain"
	locationdomain "ghl-backend/internal/location/domain"
	tokendomain "ghl-backend/internal/token/domain"
	userdomain "ghl-backend/internal/user/domain"
	workspaceusecase "ghl-backend/internal/workspace/usecase"
)

// InstallationUsecase drives install and uninstall across every service.
type InstallationUsecase interface {
	// ProcessInstallation succeeds with the companyId even when some
	// locations fail. Per-location failures are in Result.Locations.
	ProcessInstallation(ctx context.Context, req domain.InstallRequest) (*domain.Result, error)

	// ProcessUninstallation removes a location or a company with its users
	// and contacts, then cleans up the provider best-effort.
	ProcessUninstallation(ctx context.Context, payload domain.UninstallPayload) (*domain.UninstallResult, error)
}

type TokenService interface {
	Acquire(ctx context.Context, req tokendomain.Request) (*tokendomain.Token, error)
}

type TokenStore interface {
	Get(ctx context.Context, companyID string, kind tokendomain.Kind, locationID string) (*tokendomain.Token, error)
}

type LocationService interface {
	BatchInstall(ctx context.Context, company *tokendomain.Token, appID string) (*locationdomain.BatchResult, error)
	Uninstall(ctx context.Context, locationID string) error
}

type AgencyService interface {
	HandleInstallation(ctx context.Context, token *tokendomain.Token) error
	Uninstall(ctx context.Context, companyID string) ([]string, error)
}

type UserService interface {
	FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) ([]userdomain.User, error)
	ListIDsForLocation(ctx context.Context, locationID string) ([]string, error)
	DeleteForLocation(ctx context.Context, locationID string) error
	DeleteForCompany(ctx context.Context, companyID string) error
}

type ContactService interface {
	FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) (int, error)
	DeleteForLocation(ctx context.Context, locationID string) error
	DeleteForCompany(ctx context.Context, companyID string) error
}

type WorkspaceService interface {
	Provision(ctx context.Context, locationID string, userIDs []string) (*workspaceusecase.Provisioned, error)
	Cleanup(ctx context.Context, locationID string, userIDs []string) error
}
