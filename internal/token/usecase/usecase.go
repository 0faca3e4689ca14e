package usecase

import (
	"context"

	"ghl-backend/internal/token/domain"
	"ghl-backend/pkg/ghl"
)

// TokenUsecase is the single entry point for minting and refreshing tokens.
type TokenUsecase interface {
	// Acquire issues the OAuth request described by req, validates and persists
	// the result. A Company token also triggers the company-token callback.
	Acquire(ctx context.Context, req domain.Request) (*domain.Token, error)

	// InstallURL is the marketplace link that starts an agency install.
	InstallURL(state string) string

	// SetCompanyTokenCallback sets the hook run after a Company token is stored
	SetCompanyTokenCallback(cb CompanyTokenCallback)
}

// CompanyTokenCallback runs after a Company token has been persisted.
type CompanyTokenCallback func(ctx context.Context, token *domain.Token) error

// OAuthClient is the subset of the platform client used for token exchange.
type OAuthClient interface {
	ExchangeCompanyToken(ctx context.Context, grantType, value string) (*ghl.TokenResponse, error)
	ExchangeLocationToken(ctx context.Context, companyID, locationID, companyAccessToken string) (*ghl.TokenResponse, error)
	AuthorizeURL(state string) string
}
