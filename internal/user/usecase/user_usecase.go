package usecase

import (
	"context"
	"fmt"

	"ghl-backend/internal/user/domain"
	"ghl-backend/internal/user/repository"
	"ghl-backend/pkg/apperrors"

	"github.com/rs/zerolog"
)

type userUsecase struct {
	client   UsersClient
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserUsecase(client UsersClient, userRepo repository.UserRepository, logger zerolog.Logger) UserUsecase {
	return &userUsecase{client: client, userRepo: userRepo, logger: logger}
}

func (u *userUsecase) FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) ([]domain.User, error) {
	if locationID == "" || companyID == "" {
		return nil, fmt.Errorf("fetch users: locationId and companyId are required: %w", apperrors.ErrInvalidArgument)
	}

	fetched, err := u.client.ListUsers(ctx, accessToken, locationID)
	if err != nil {
		return nil, fmt.Errorf("fetch users for %s: %w", locationID, err)
	}

	users := make([]domain.User, 0, len(fetched))
	for _, f := range fetched {
		if f.ID == "" {
			continue
		}
		users = append(users, domain.FromPlatform(f, locationID, companyID))
	}

	if err := u.userRepo.SaveAll(ctx, locationID, users); err != nil {
		return nil, err
	}

	u.logger.Info().Str("location_id", locationID).Int("users", len(users)).Msg("users synced")
	return users, nil
}

func (u *userUsecase) Upsert(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return fmt.Errorf("upsert user: id is required: %w", apperrors.ErrInvalidArgument)
	}
	return u.userRepo.Upsert(ctx, user)
}

func (u *userUsecase) ListIDsForLocation(ctx context.Context, locationID string) ([]string, error) {
	return u.userRepo.ListIDsByLocation(ctx, locationID)
}

func (u *userUsecase) DeleteForLocation(ctx context.Context, locationID string) error {
	if locationID == "" {
		return fmt.Errorf("delete users: %w", apperrors.ErrInvalidArgument)
	}
	if err := u.userRepo.DeleteByLocation(ctx, locationID); err != nil {
		return err
	}
	u.logger.Info().Str("location_id", locationID).Msg("location users deleted")
	return nil
}

func (u *userUsecase) DeleteForCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return fmt.Errorf("delete users: %w", apperrors.ErrInvalidArgument)
	}
	if err := u.userRepo.DeleteByCompany(ctx, companyID); err != nil {
		return err
	}
	u.logger.Info().Str("company_id", companyID).Msg("company users deleted")
	return nil
}
