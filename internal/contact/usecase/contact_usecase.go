package usecase

import (
	"context"
	"fmt"

	"ghl-backend/internal/contact/domain"
	"ghl-backend/internal/contact/repository"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/ghl"

	"github.com/rs/zerolog"
)

type ContactUsecase interface {
	// FetchAndSave pulls every contact of a location and stores them. It returns the count.
	FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) (int, error)
	Upsert(ctx context.Context, contact domain.Contact) (string, error)
	Delete(ctx context.Context, id, locationID string) error
	DeleteForLocation(ctx context.Context, locationID string) error
	DeleteForCompany(ctx context.Context, companyID string) error
}

// ContactsClient searches contacts on the platform.
type ContactsClient interface {
	SearchContacts(ctx context.Context, locationAccessToken, locationID string) ([]ghl.Contact, error)
}

type contactUsecase struct {
	client      ContactsClient
	contactRepo repository.ContactRepository
	logger      zerolog.Logger
}

func NewContactUsecase(client ContactsClient, contactRepo repository.ContactRepository, logger zerolog.Logger) ContactUsecase {
	return &contactUsecase{client: client, contactRepo: contactRepo, logger: logger}
}

func (u *contactUsecase) FetchAndSave(ctx context.Context, accessToken, locationID, companyID string) (int, error) {
	if locationID == "" {
		return 0, fmt.Errorf("fetch contacts: locationId is required: %w", apperrors.ErrInvalidArgument)
	}

	fetched, err := u.client.SearchContacts(ctx, accessToken, locationID)
	if err != nil {
		return 0, fmt.Errorf("fetch contacts for %s: %w", locationID, err)
	}

	contacts := make([]domain.Contact, 0, len(fetched))
	for _, c := range fetched {
		if c.ID == "" {
			continue
		}
		contacts = append(contacts, domain.FromPlatform(c, locationID, companyID))
	}
	if err := u.contactRepo.SaveAll(ctx, contacts); err != nil {
		return 0, err
	}

	u.logger.Info().Str("location_id", locationID).Int("contacts", len(contacts)).Msg("contacts synced")
	return len(contacts), nil
}

func (u *contactUsecase) Upsert(ctx context.Context, contact domain.Contact) (string, error) {
	return u.contactRepo.Upsert(ctx, contact)
}

func (u *contactUsecase) Delete(ctx context.Context, id, locationID string) error {
	if id == "" {
		return fmt.Errorf("delete contact: id is required: %w", apperrors.ErrInvalidArgument)
	}
	return u.contactRepo.Delete(ctx, id, locationID)
}

func (u *contactUsecase) DeleteForLocation(ctx context.Context, locationID string) error {
	if locationID == "" {
		return fmt.Errorf("delete contacts: %w", apperrors.ErrInvalidArgument)
	}
	if err := u.contactRepo.DeleteByLocation(ctx, locationID); err != nil {
		return err
	}
	u.logger.Info().Str("location_id", locationID).Msg("location contacts deleted")
	return nil
}

func (u *contactUsecase) DeleteForCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return fmt.Errorf("delete contacts: %w", apperrors.ErrInvalidArgument)
	}
	if err := u.contactRepo.DeleteByCompany(ctx, companyID); err != nil {
		return err
	}
	u.logger.Info().Str("company_id", companyID).Msg("company contacts deleted")
	return nil
}
