package usecase

import (
	"context"
	"fmt"

	"ghl-backend/internal/agency/domain"
	"ghl-backend/internal/agency/repository"
	tokendomain "ghl-backend/internal/token/domain"
	"ghl-backend/pkg/apperrors"

	"github.com/rs/zerolog"
)

type agencyUsecase struct {
	companyRepo repository.CompanyRepository
	locations   LocationRemover
	tokens      TokenRemover
	appID       string
	companyName string
	logger      zerolog.Logger
}

func NewAgencyUsecase(
	companyRepo repository.CompanyRepository,
	locations LocationRemover,
	tokens TokenRemover,
	appID, companyName string,
	logger zerolog.Logger,
) AgencyUsecase {
	if companyName == "" {
		companyName = "Default Company"
	}
	return &agencyUsecase{
		companyRepo: companyRepo,
		locations:   locations,
		tokens:      tokens,
		appID:       appID,
		companyName: companyName,
		logger:      logger,
	}
}

func (u *agencyUsecase) HandleInstallation(ctx context.Context, token *tokendomain.Token) error {
	if token == nil || token.CompanyID == "" {
		return fmt.Errorf("company installation: %w", apperrors.ErrInvalidArgument)
	}
	return u.Upsert(ctx, domain.FromToken(token, u.appID, u.companyName))
}

func (u *agencyUsecase) Upsert(ctx context.Context, company domain.Company) error {
	if company.CompanyID == "" {
		return fmt.Errorf("upsert company: companyId is required: %w", apperrors.ErrInvalidArgument)
	}

	created, err := u.companyRepo.Upsert(ctx, company)
	if err != nil {
		return err
	}
	if created {
		u.logger.Info().Str("company_id", company.CompanyID).Str("install_type", company.InstallType).Msg("company installed")
	} else {
		u.logger.Info().Str("company_id", company.CompanyID).Msg("company updated")
	}
	return nil
}

func (u *agencyUsecase) Get(ctx context.Context, companyID string) (*domain.Company, error) {
	c, err := u.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company %s: %w", companyID, apperrors.ErrNotFound)
	}
	return c, nil
}

func (u *agencyUsecase) Uninstall(ctx context.Context, companyID string) ([]string, error) {
	if companyID == "" {
		return nil, fmt.Errorf("uninstall company: companyId is required: %w", apperrors.ErrInvalidArgument)
	}

	locationIDs, err := u.locations.DeleteByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("delete locations of %s: %w", companyID, err)
	}
	if err := u.companyRepo.Delete(ctx, companyID); err != nil {
		return nil, fmt.Errorf("delete company %s: %w", companyID, err)
	}
	if err := u.tokens.RemoveByCompany(ctx, companyID); err != nil {
		return nil, fmt.Errorf("remove tokens of %s: %w", companyID, err)
	}

	u.logger.Info().Str("company_id", companyID).Int("locations", len(locationIDs)).Msg("company uninstalled")
	return locationIDs, nil
}
