package usecase

import (
	"context"
	"errors"
	"fmt"

	agencydomain "ghl-backend/internal/agency/domain"
	contactdomain "ghl-backend/internal/contact/domain"
	installdomain "ghl-backend/internal/installation/domain"
	locationdomain "ghl-backend/internal/location/domain"
	tokendomain "ghl-backend/internal/token/domain"
	userdomain "ghl-backend/internal/user/domain"
	"ghl-backend/internal/webhook/domain"
	"ghl-backend/pkg/apperrors"

	"github.com/rs/zerolog"
)

// Dispatcher routes a platform webhook to the service that owns it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.Event) (*domain.Outcome, error)
}

type Installer interface {
	ProcessInstallation(ctx context.Context, req installdomain.InstallRequest) (*installdomain.Result, error)
	ProcessUninstallation(ctx context.Context, payload installdomain.UninstallPayload) (*installdomain.UninstallResult, error)
}

type CompanyService interface {
	Upsert(ctx context.Context, company agencydomain.Company) error
}

type UserService interface {
	Upsert(ctx context.Context, user userdomain.User) error
}

type LocationService interface {
	Create(ctx context.Context, location locationdomain.Location) (*locationdomain.Location, error)
	Update(ctx context.Context, patch locationdomain.Patch) error
	MintLocationToken(ctx context.Context, companyID, companyAccessToken, locationID string) locationdomain.MintResult
}

type ContactService interface {
	Upsert(ctx context.Context, contact contactdomain.Contact) (string, error)
	Delete(ctx context.Context, id, locationID string) error
}

type TokenStore interface {
	Get(ctx context.Context, companyID string, kind tokendomain.Kind, locationID string) (*tokendomain.Token, error)
}

type dispatcher struct {
	installer Installer
	companies CompanyService
	users     UserService
	locations LocationService
	contacts  ContactService
	tokens    TokenStore
	logger    zerolog.Logger
}

func NewDispatcher(
	installer Installer,
	companies CompanyService,
	users UserService,
	locations LocationService,
	contacts ContactService,
	tokens TokenStore,
	logger zerolog.Logger,
) Dispatcher {
	return &dispatcher{
		installer: installer,
		companies: companies,
		users:     users,
		locations: locations,
		contacts:  contacts,
		tokens:    tokens,
		logger:    logger,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, e domain.Event) (*domain.Outcome, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("webhook without type: %w", apperrors.ErrInvalidPayload)
	}
	log := d.logger.With().Str("event", e.Type).Str("company_id", e.CompanyID).Str("location_id", e.LocationID).Logger()
	log.Debug().Str("id", e.ID).Msg("webhook received")

	out := &domain.Outcome{Type: e.Type, Handled: true}
	var err error

	switch e.Type {
	case domain.TypeInstall:
		out.Detail, err = d.install(ctx, e)
	case domain.TypeUninstall:
		out.Detail, err = d.uninstall(ctx, e)
	case domain.TypeUserCreate, domain.TypeUserUpdate:
		err = d.users.Upsert(ctx, userFromEvent(e))
	case domain.TypeLocationCreate:
		out.Detail, err = d.createLocation(ctx, e)
	case domain.TypeLocationUpdate:
		err = d.locations.Update(ctx, patchFromEvent(e))
	case domain.TypeContactCreate, domain.TypeContactUpdate:
		out.Detail, err = d.contacts.Upsert(ctx, contactFromEvent(e))
	case domain.TypeContactDelete:
		err = d.contacts.Delete(ctx, e.ID, e.LocationID)
	case domain.TypeInboundMessage, domain.TypeOutboundMessage:
		out.Handled = false
		out.Detail = "messages are not processed"
	default:
		log.Warn().Msg("unhandled webhook type")
		out.Handled = false
		out.Detail = "unknown event type"
	}

	if err != nil {
		log.Error().Err(err).Msg("webhook handling failed")
		return nil, fmt.Errorf("handle %s: %w", e.Type, err)
	}
	return out, nil
}

// install handles INSTALL. A location install reuses the reinstall path of
// the installation orchestrator; an agency-level install only records the company.
func (d *dispatcher) install(ctx context.Context, e domain.Event) (string, error) {
	if e.CompanyID == "" {
		return "", fmt.Errorf("install without companyId: %w", apperrors.ErrInvalidPayload)
	}

	if e.LocationID == "" {
		return "", d.companies.Upsert(ctx, companyFromEvent(e))
	}

	res, err := d.installer.ProcessInstallation(ctx, installdomain.InstallRequest{
		Reinstall: &installdomain.InstallData{LocationID: e.LocationID, CompanyID: e.CompanyID, AppID: e.AppID},
	})
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

func (d *dispatcher) uninstall(ctx context.Context, e domain.Event) (string, error) {
	res, err := d.installer.ProcessUninstallation(ctx, installdomain.UninstallPayload{
		Type:       e.Type,
		AppID:      e.AppID,
		CompanyID:  e.CompanyID,
		LocationID: e.LocationID,
	})
	if err != nil {
		return "", err
	}
	return string(res.Scope) + ":" + res.EntityID, nil
}

// createLocation stores the location and, when the company is connected,
// tries to mint its token right away. A mint failure does not fail the event.
func (d *dispatcher) createLocation(ctx context.Context, e domain.Event) (string, error) {
	loc := locationdomain.Location{
		ID:        e.ID,
		Name:      e.Name,
		CompanyID: e.CompanyID,
		AppID:     e.AppID,
	}
	if e.Address != nil {
		loc.Address = *e.Address
	}
	stored, err := d.locations.Create(ctx, loc)
	if err != nil {
		return "", err
	}
	if e.CompanyID == "" {
		return "", nil
	}
	if !stored.IsInstalled {
		return "location not installed", nil
	}

	company, err := d.tokens.Get(ctx, e.CompanyID, tokendomain.KindCompany, "")
	if errors.Is(err, apperrors.ErrNotFound) {
		return "company not connected", nil
	}
	if err != nil {
		return "", err
	}

	mint := d.locations.MintLocationToken(ctx, e.CompanyID, company.AccessToken, e.ID)
	if !mint.OK() {
		d.logger.Warn().Err(mint.Err).Str("location_id", e.ID).Msg("location token not minted for new location")
		return "token not minted", nil
	}
	return "token minted", nil
}

func companyFromEvent(e domain.Event) agencydomain.Company {
	c := agencydomain.Company{
		CompanyID:           e.CompanyID,
		AppID:               e.AppID,
		UserID:              e.UserID,
		PlanID:              e.PlanID,
		CompanyName:         e.CompanyName,
		InstallType:         agencydomain.InstallTypeWebhook,
		IsWhitelabelCompany: e.IsWhitelabelCompany,
	}
	if e.Trial != nil {
		c.Trial = &agencydomain.Trial{OnTrial: e.Trial.OnTrial, TrialDuration: e.Trial.TrialDuration, TrialStart: e.Trial.TrialStart}
	}
	return c
}

func userFromEvent(e domain.Event) userdomain.User {
	u := userdomain.User{
		ID:          e.ID,
		Name:        e.Name,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		Phone:       e.Phone,
		Extension:   e.Extension,
		Role:        e.Role,
		Permissions: e.Permissions,
		LocationID:  e.LocationID,
		CompanyID:   e.CompanyID,
		LocationIDs: e.Locations,
	}
	if u.Name == "" && (u.FirstName != "" || u.LastName != "") {
		u.Name = joinName(u.FirstName, u.LastName)
	}
	if e.Roles != nil {
		u.Roles = userdomain.Roles{Type: e.Roles.Type, Role: e.Roles.Role, LocationIDs: e.Roles.LocationIDs}
		if u.Role == "" {
			u.Role = e.Roles.Role
		}
	}
	return u
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func patchFromEvent(e domain.Event) locationdomain.Patch {
	p := locationdomain.Patch{ID: e.ID, Address: e.Address}
	if e.Name != "" {
		p.Name = &e.Name
	}
	if e.CompanyID != "" {
		p.CompanyID = &e.CompanyID
	}
	return p
}

func contactFromEvent(e domain.Event) contactdomain.Contact {
	return contactdomain.Contact{
		ID:           e.ID,
		LocationID:   e.LocationID,
		CompanyID:    e.CompanyID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		Phone:        e.Phone,
		Tags:         e.Tags,
		DND:          e.DND,
		Source:       e.Source,
		DateAdded:    e.DateAdded,
		CustomFields: e.CustomFields,
	}
}
