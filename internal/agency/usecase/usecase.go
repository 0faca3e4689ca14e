package usecase

import (
	"context"

	"ghl-backend/internal/agency/domain"
	tokendomain "ghl-backend/internal/token/domain"
)

// AgencyUsecase manages the company record of an installing agency.
type AgencyUsecase interface {
	// HandleInstallation records a company after its OAuth token was obtained.
	HandleInstallation(ctx context.Context, token *tokendomain.Token) error

	// Upsert creates or updates a company from webhook data.
	Upsert(ctx context.Context, company domain.Company) error

	Get(ctx context.Context, companyID string) (*domain.Company, error)

	// Uninstall deletes the company, its locations and all of its tokens.
	// It returns the ids of the deleted locations.
	Uninstall(ctx context.Context, companyID string) ([]string, error)
}

// LocationRemover deletes every location of a company.
type LocationRemover interface {
	DeleteByCompany(ctx context.Context, companyID string) ([]string, error)
}

// TokenRemover deletes every token of a company.
type TokenRemover interface {
	RemoveByCompany(ctx context.Context, companyID string) error
}
