package usecase

import (
	"context"
	"fmt"

	"ghl-backend/internal/token/domain"
	"ghl-backend/internal/token/repository"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/ghl"

	"github.com/rs/zerolog"
)

type tokenUsecase struct {
	client          OAuthClient
	tokenRepo       repository.TokenRepository
	companyCallback CompanyTokenCallback
	logger          zerolog.Logger
}

func NewTokenUsecase(client OAuthClient, tokenRepo repository.TokenRepository, logger zerolog.Logger) TokenUsecase {
	return &tokenUsecase{
		client:    client,
		tokenRepo: tokenRepo,
		logger:    logger,
	}
}

func (u *tokenUsecase) SetCompanyTokenCallback(cb CompanyTokenCallback) {
	u.companyCallback = cb
}

func (u *tokenUsecase) InstallURL(state string) string {
	return u.client.AuthorizeURL(state)
}

func (u *tokenUsecase) Acquire(ctx context.Context, req domain.Request) (*domain.Token, error) {
	resp, implied, err := u.exchange(ctx, req)
	if err != nil {
		u.logger.Error().
			Err(err).
			Bool("transient", ghl.IsTransient(err)).
			Str("request", fmt.Sprintf("%T", req)).
			Msg("token request failed")
		return nil, err
	}

	if resp.AccessToken == "" || resp.CompanyID == "" {
		return nil, fmt.Errorf("%s token response missing access_token or companyId: %w", implied, apperrors.ErrInvalidTokenResponse)
	}

	token := fromResponse(resp, implied)
	if lg, ok := req.(domain.LocationGrant); ok && token.LocationID == "" {
		token.LocationID = lg.LocationID
	}
	if token.Kind == domain.KindLocation && token.LocationID == "" {
		return nil, fmt.Errorf("location token response missing locationId: %w", apperrors.ErrInvalidTokenResponse)
	}

	if err := u.tokenRepo.Upsert(ctx, domain.PatchFromToken(token)); err != nil {
		return nil, fmt.Errorf("persist %s token for %s: %w", token.Kind, token.CompanyID, err)
	}

	u.logger.Info().
		Str("company_id", token.CompanyID).
		Str("location_id", token.LocationID).
		Str("user_type", string(token.Kind)).
		Msg("token stored")

	if token.Kind == domain.KindCompany && u.companyCallback != nil {
		if err := u.companyCallback(ctx, token); err != nil {
			// the token is already stored; the next refresh pass re-runs the callback
			u.logger.Warn().Err(err).Str("company_id", token.CompanyID).Msg("company token callback failed")
		}
	}
	return token, nil
}

// exchange builds and sends the platform request for req.
func (u *tokenUsecase) exchange(ctx context.Context, req domain.Request) (*ghl.TokenResponse, domain.Kind, error) {
	switch r := req.(type) {
	case domain.CompanyGrant:
		switch r.GrantType {
		case domain.GrantAuthorizationCode, domain.GrantRefreshToken:
		default:
			return nil, domain.KindCompany, fmt.Errorf("grant type %q: %w", r.GrantType, apperrors.ErrInvalidArgument)
		}
		if r.Value == "" {
			return nil, domain.KindCompany, fmt.Errorf("%s grant without value: %w", r.GrantType, apperrors.ErrInvalidArgument)
		}
		resp, err := u.client.ExchangeCompanyToken(ctx, string(r.GrantType), r.Value)
		return resp, domain.KindCompany, err

	case domain.LocationGrant:
		if r.CompanyID == "" || r.LocationID == "" || r.Bearer == "" {
			return nil, domain.KindLocation, fmt.Errorf("location grant requires companyId, locationId and bearer: %w", apperrors.ErrInvalidArgument)
		}
		resp, err := u.client.ExchangeLocationToken(ctx, r.CompanyID, r.LocationID, r.Bearer)
		return resp, domain.KindLocation, err

	default:
		return nil, "", fmt.Errorf("unsupported token request %T: %w", req, apperrors.ErrInvalidArgument)
	}
}

func fromResponse(resp *ghl.TokenResponse, implied domain.Kind) *domain.Token {
	kind := domain.Kind(resp.UserType)
	if !kind.Valid() {
		kind = implied
	}
	t := &domain.Token{
		AccessToken:       resp.AccessToken,
		RefreshToken:      resp.RefreshToken,
		TokenType:         resp.TokenType,
		ExpiresIn:         resp.ExpiresIn,
		Scope:             resp.Scope,
		Kind:              kind,
		CompanyID:         resp.CompanyID,
		UserID:            resp.UserID,
		PlanID:            resp.PlanID,
		ApprovedLocations: resp.ApprovedLocations,
	}
	if kind == domain.KindLocation {
		t.LocationID = resp.LocationID
	}
	return t
}
