package usecase

import (
	"context"
	"errors"
	"fmt"

	"ghl-backend/internal/installation/domain"
	locationdomain "ghl-backend/internal/location/domain"
	tokendomain "ghl-backend/internal/token/domain"
	"ghl-backend/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	AppID string
	// Concurrency caps how many locations are synced at once.
	Concurrency int
}

type installationUsecase struct {
	tokens     TokenService
	tokenStore TokenStore
	locations  LocationService
	agency     AgencyService
	users      UserService
	contacts   ContactService
	workspaces WorkspaceService
	opts       Options
	logger     zerolog.Logger
}

func NewInstallationUsecase(
	tokens TokenService,
	tokenStore TokenStore,
	locations LocationService,
	agency AgencyService,
	users UserService,
	contacts ContactService,
	workspaces WorkspaceService,
	opts Options,
	logger zerolog.Logger,
) InstallationUsecase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	return &installationUsecase{
		tokens:     tokens,
		tokenStore: tokenStore,
		locations:  locations,
		agency:     agency,
		users:      users,
		contacts:   contacts,
		workspaces: workspaces,
		opts:       opts,
		logger:     logger,
	}
}

func (u *installationUsecase) ProcessInstallation(ctx context.Context, req domain.InstallRequest) (*domain.Result, error) {
	hasCode := req.Code != ""
	hasReinstall := req.Reinstall != nil
	if hasCode == hasReinstall {
		return nil, fmt.Errorf("exactly one of code or install data is required: %w", apperrors.ErrInvalidInstallRequest)
	}
	if hasReinstall && req.Reinstall.CompanyID == "" {
		return nil, fmt.Errorf("install data without companyId: %w", apperrors.ErrInvalidInstallRequest)
	}

	// installs run to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	result := &domain.Result{RunID: uuid.New().String(), State: domain.StateCodeReceived}
	log := u.logger.With().Str("run_id", result.RunID).Logger()

	company, appID, err := u.companyToken(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("installation aborted before company token")
		return nil, err
	}
	result.CompanyID = company.CompanyID
	result.State = domain.StateCompanyTokenObtained
	log = log.With().Str("company_id", company.CompanyID).Logger()

	batch, err := u.locations.BatchInstall(ctx, company, appID)
	if err != nil {
		log.Error().Err(err).Msg("location enumeration failed")
		return nil, fmt.Errorf("batch install for %s: %w", company.CompanyID, err)
	}
	result.State = domain.StateLocationsEnumerated
	result.RetryTaskID = batch.RetryTaskID

	tokened := batch.Tokened
	failed := batch.Failed
	if hasReinstall && req.Reinstall.LocationID != "" {
		tokened = only(tokened, req.Reinstall.LocationID)
		failed = only(failed, req.Reinstall.LocationID)
		if len(tokened) == 0 && len(failed) == 0 {
			log.Warn().Str("location_id", req.Reinstall.LocationID).Msg("reinstalled location is not reported as installed")
		}
	}

	for _, f := range failed {
		outcome := domain.LocationOutcome{LocationID: f.LocationID}
		outcome.Advance(domain.StateLocationsEnumerated)
		outcome.Fail(f.Err)
		result.Locations = append(result.Locations, outcome)
	}

	synced := make([]domain.LocationOutcome, len(tokened))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)
	for i, mint := range tokened {
		g.Go(func() error {
			synced[i] = u.syncLocation(gctx, company.CompanyID, mint)
			return nil
		})
	}
	_ = g.Wait()
	result.Locations = append(result.Locations, synced...)
	result.State = domain.StateComplete

	log.Info().
		Int("locations", len(result.Locations)).
		Int("failed", result.Failed()).
		Msg("installation complete")
	return result, nil
}

// companyToken resolves the company token from a fresh code exchange or from the store.
func (u *installationUsecase) companyToken(ctx context.Context, req domain.InstallRequest) (*tokendomain.Token, string, error) {
	if req.Code != "" {
		tok, err := u.tokens.Acquire(ctx, tokendomain.CompanyGrant{GrantType: tokendomain.GrantAuthorizationCode, Value: req.Code})
		if err != nil {
			return nil, "", fmt.Errorf("exchange authorization code: %w", err)
		}
		if tok.Kind == tokendomain.KindCompany {
			if err := u.agency.HandleInstallation(ctx, tok); err != nil {
				return nil, "", fmt.Errorf("record company %s: %w", tok.CompanyID, err)
			}
		}
		return tok, u.opts.AppID, nil
	}

	data := req.Reinstall
	tok, err := u.tokenStore.Get(ctx, data.CompanyID, tokendomain.KindCompany, "")
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", fmt.Errorf("reinstall of %s: %w", data.CompanyID, apperrors.ErrCompanyTokenNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	appID := data.AppID
	if appID == "" {
		appID = u.opts.AppID
	}
	return tok, appID, nil
}

// syncLocation runs users, contacts and workspaces for one tokened location and
// stops at the first failure.
func (u *installationUsecase) syncLocation(ctx context.Context, companyID string, mint locationdomain.MintResult) domain.LocationOutcome {
	out := domain.LocationOutcome{LocationID: mint.LocationID}
	out.Advance(domain.StateLocationTokensObtained)
	log := u.logger.With().Str("company_id", companyID).Str("location_id", mint.LocationID).Logger()
	accessToken := mint.Token.AccessToken

	users, err := u.users.FetchAndSave(ctx, accessToken, mint.LocationID, companyID)
	if err != nil {
		log.Warn().Err(err).Msg("user sync failed")
		out.Fail(err)
		return out
	}
	out.Users = len(users)
	out.Advance(domain.StateUsersSynced)

	contacts, err := u.contacts.FetchAndSave(ctx, accessToken, mint.LocationID, companyID)
	if err != nil {
		log.Warn().Err(err).Msg("contact sync failed")
		out.Fail(err)
		return out
	}
	out.Contacts = contacts
	out.Advance(domain.StateContactsSynced)

	userIDs := make([]string, 0, len(users))
	for _, usr := range users {
		userIDs = append(userIDs, usr.ID)
	}
	provisioned, err := u.workspaces.Provision(ctx, mint.LocationID, userIDs)
	if provisioned != nil {
		out.Workspaces = len(provisioned.Workspaces)
	}
	if err != nil {
		log.Warn().Err(err).Msg("workspace provisioning failed")
		out.Fail(err)
		return out
	}
	out.Advance(domain.StateWorkspacesProvisioned)
	out.Advance(domain.StateComplete)
	return out
}

func only(results []locationdomain.MintResult, locationID string) []locationdomain.MintResult {
	var out []locationdomain.MintResult
	for _, r := range results {
		if r.LocationID == locationID {
			out = append(out, r)
		}
	}
	return out
}

func (u *installationUsecase) ProcessUninstallation(ctx context.Context, p domain.UninstallPayload) (*domain.UninstallResult, error) {
	if p.Type != domain.EventUninstall {
		return nil, fmt.Errorf("uninstall payload type %q: %w", p.Type, apperrors.ErrInvalidPayload)
	}

	ctx = context.WithoutCancel(ctx)
	switch {
	case p.LocationID != "":
		return u.uninstallLocation(ctx, p.LocationID, p.CompanyID)
	case p.CompanyID != "":
		return u.uninstallCompany(ctx, p.CompanyID)
	default:
		return nil, fmt.Errorf("uninstall needs a locationId or companyId: %w", apperrors.ErrInvalidArgument)
	}
}

func (u *installationUsecase) uninstallLocation(ctx context.Context, locationID, companyID string) (*domain.UninstallResult, error) {
	res := &domain.UninstallResult{
		Scope:     domain.ScopeLocation,
		EntityID:  locationID,
		Locations: []string{locationID},
	}
	res.Advance(domain.StateUninstallRequested)
	log := u.logger.With().Str("location_id", locationID).Str("company_id", companyID).Logger()

	userIDs, err := u.users.ListIDsForLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("collect users of %s: %w", locationID, err)
	}

	if err := u.locations.Uninstall(ctx, locationID); err != nil {
		return nil, err
	}
	res.Advance(domain.StateEntityUninstalled)

	if err := u.users.DeleteForLocation(ctx, locationID); err != nil {
		return nil, err
	}
	if err := u.contacts.DeleteForLocation(ctx, locationID); err != nil {
		return nil, err
	}
	res.Advance(domain.StateDependentDataPurged)

	if err := u.workspaces.Cleanup(ctx, locationID, userIDs); err != nil {
		log.Warn().Err(err).Msg("provider cleanup failed, uninstall kept")
		res.CleanupErr = err
	} else {
		res.Advance(domain.StateRemoteWorkspacesPurged)
	}
	res.Advance(domain.StateComplete)

	log.Info().Int("users", len(userIDs)).Msg("location uninstall complete")
	return res, nil
}

func (u *installationUsecase) uninstallCompany(ctx context.Context, companyID string) (*domain.UninstallResult, error) {
	res := &domain.UninstallResult{Scope: domain.ScopeCompany, EntityID: companyID}
	res.Advance(domain.StateUninstallRequested)
	log := u.logger.With().Str("company_id", companyID).Logger()

	locationIDs, err := u.agency.Uninstall(ctx, companyID)
	if err != nil {
		return nil, err
	}
	res.Advance(domain.StateEntityUninstalled)
	res.Locations = locationIDs

	usersByLocation := make(map[string][]string, len(locationIDs))
	for _, lid := range locationIDs {
		ids, err := u.users.ListIDsForLocation(ctx, lid)
		if err != nil {
			log.Warn().Err(err).Str("location_id", lid).Msg("could not collect users for provider cleanup")
			continue
		}
		usersByLocation[lid] = ids
	}

	if err := u.users.DeleteForCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if err := u.contacts.DeleteForCompany(ctx, companyID); err != nil {
		return nil, err
	}
	res.Advance(domain.StateDependentDataPurged)

	var errs []error
	for _, lid := range locationIDs {
		if err := u.workspaces.Cleanup(ctx, lid, usersByLocation[lid]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		res.CleanupErr = errors.Join(errs...)
		log.Warn().Err(res.CleanupErr).Msg("provider cleanup failed, uninstall kept")
	} else {
		res.Advance(domain.StateRemoteWorkspacesPurged)
	}
	res.Advance(domain.StateComplete)

	log.Info().Int("locations", len(locationIDs)).Msg("company uninstall complete")
	return res, nil
}
