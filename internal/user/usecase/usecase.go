package usecase

import (
	"context"

	"ghl-backend/internal/user/domain"
	"ghl-backend/pkg/ghl"
)

type UserUsecase interface {
	// FetchAndSave pulls the users of a location from the platform and stores them.
	FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) ([]domain.User, error)

	// Upsert stores a user from a UserCreate or UserUpdate webhook.
	Upsert(ctx context.Context, user domain.User) error

	ListIDsForLocation(ctx context.Context, locationID string) ([]string, error)
	DeleteForLocation(ctx context.Context, locationID string) error
	DeleteForCompany(ctx context.Context, companyID string) error
}

// UsersClient lists users on the platform.
type UsersClient interface {
	ListUsers(ctx context.Context, locationAccessToken, locationID string) ([]ghl.User, error)
}
