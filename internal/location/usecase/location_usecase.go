package usecase

import (
	"context"
	"fmt"

	"ghl-backend/internal/location/domain"
	"ghl-backend/internal/location/repository"
	tokendomain "ghl-backend/internal/token/domain"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/ghl"
	"ghl-backend/pkg/retry"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Concurrency caps simultaneous token mints.
	Concurrency int
	RetryPolicy retry.Policy
}

type locationUsecase struct {
	client       LocationsClient
	tokens       TokenAcquirer
	tokenStore   TokenStore
	locationRepo repository.LocationRepository
	queue        *retry.Queue
	opts         Options
	logger       zerolog.Logger
}

func NewLocationUsecase(
	client LocationsClient,
	tokens TokenAcquirer,
	tokenStore TokenStore,
	locationRepo repository.LocationRepository,
	queue *retry.Queue,
	opts Options,
	logger zerolog.Logger,
) LocationUsecase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	return &locationUsecase{
		client:       client,
		tokens:       tokens,
		tokenStore:   tokenStore,
		locationRepo: locationRepo,
		queue:        queue,
		opts:         opts,
		logger:       logger,
	}
}

func (u *locationUsecase) EnumerateLocations(ctx context.Context, accessToken, companyID, appID string) (*domain.Enumeration, error) {
	if companyID == "" || accessToken == "" {
		return nil, fmt.Errorf("enumerate locations: companyId and access token are required: %w", apperrors.ErrInvalidArgument)
	}

	var installed []domain.Location
	for skip := 0; ; skip += ghl.LocationPageSize {
		page, err := u.client.InstalledLocationsPage(ctx, accessToken, companyID, appID, skip)
		if err != nil {
			return nil, fmt.Errorf("enumerate locations for %s (skip %d): %w", companyID, skip, err)
		}
		for _, l := range page {
			if !l.IsInstalled {
				continue
			}
			loc := domain.Location{
				ID:          l.ID,
				Name:        l.Name,
				Address:     l.Address,
				CompanyID:   companyID,
				AppID:       appID,
				IsInstalled: true,
			}
			if l.Trial != nil {
				loc.OnTrial = l.Trial.OnTrial
				loc.TrialEndsAt = l.Trial.EndDate
			}
			installed = append(installed, loc)
		}
		if len(page) < ghl.LocationPageSize {
			break
		}
	}

	known, err := u.locationRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load known locations for %s: %w", companyID, err)
	}
	knownIDs := make(map[string]bool, len(known))
	for _, l := range known {
		knownIDs[l.ID] = true
	}

	result := &domain.Enumeration{Installed: installed}
	for _, l := range installed {
		if !knownIDs[l.ID] {
			result.New = append(result.New, l)
		}
	}

	if len(installed) > 0 {
		if err := u.locationRepo.SaveAll(ctx, installed); err != nil {
			return nil, fmt.Errorf("persist locations for %s: %w", companyID, err)
		}
	}

	u.logger.Info().
		Str("company_id", companyID).
		Int("installed", len(result.Installed)).
		Int("new", len(result.New)).
		Msg("locations enumerated")
	return result, nil
}

func (u *locationUsecase) MintLocationToken(ctx context.Context, companyID, companyAccessToken, locationID string) domain.MintResult {
	tok, err := u.tokens.Acquire(ctx, tokendomain.LocationGrant{
		CompanyID:  companyID,
		LocationID: locationID,
		Bearer:     companyAccessToken,
	})
	if err != nil {
		u.logger.Warn().Err(err).Str("company_id", companyID).Str("location_id", locationID).Msg("location token mint failed")
		return domain.MintResult{LocationID: locationID, Err: err}
	}
	return domain.MintResult{LocationID: locationID, Token: tok}
}

func (u *locationUsecase) BatchInstall(ctx context.Context, company *tokendomain.Token, appID string) (*domain.BatchResult, error) {
	enum, err := u.EnumerateLocations(ctx, company.AccessToken, company.CompanyID, appID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(enum.Installed))
	for _, l := range enum.Installed {
		ids = append(ids, l.ID)
	}

	results, taskID := u.mintWithRetry(ctx, company.CompanyID, company.AccessToken, ids)
	ok, failed := domain.Split(results)

	u.logger.Info().
		Str("company_id", company.CompanyID).
		Int("tokened", len(ok)).
		Int("failed", len(failed)).
		Msg("batch install minted location tokens")

	return &domain.BatchResult{
		Enumeration: enum,
		Tokened:     ok,
		Failed:      failed,
		RetryTaskID: taskID,
	}, nil
}

func (u *locationUsecase) FetchLocationTokens(ctx context.Context, companyID, companyAccessToken string) ([]domain.MintResult, error) {
	ids, err := u.installedIDs(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return u.mintAll(ctx, companyID, companyAccessToken, ids), nil
}

func (u *locationUsecase) FetchLocationTokensWithRetry(ctx context.Context, companyID, companyAccessToken string) (string, error) {
	ids, err := u.installedIDs(ctx, companyID)
	if err != nil {
		return "", err
	}
	_, taskID := u.mintWithRetry(ctx, companyID, companyAccessToken, ids)
	return taskID, nil
}

func (u *locationUsecase) installedIDs(ctx context.Context, companyID string) ([]string, error) {
	locations, err := u.locationRepo.ListInstalledByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list installed locations for %s: %w", companyID, err)
	}
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// mintWithRetry mints ids once inline, then retries only the failed locations
// through the retry queue. Later attempts re-read the company token so a
// refresh in between is picked up.
func (u *locationUsecase) mintWithRetry(ctx context.Context, companyID, companyAccessToken string, ids []string) ([]domain.MintResult, string) {
	if u.queue == nil {
		return u.mintAll(ctx, companyID, companyAccessToken, ids), ""
	}

	pending := ids
	var first []domain.MintResult
	taskID, _ := u.queue.Run(ctx, "location-tokens:"+companyID, u.opts.RetryPolicy, func(ctx context.Context, attempt int) error {
		bearer := companyAccessToken
		if attempt > 1 {
			company, err := u.tokenStore.Get(ctx, companyID, tokendomain.KindCompany, "")
			if err != nil {
				return err
			}
			bearer = company.AccessToken
		}

		results := u.mintAll(ctx, companyID, bearer, pending)
		if attempt == 1 {
			first = results
		}

		_, failed := domain.Split(results)
		pending = pending[:0:0]
		for _, r := range failed {
			pending = append(pending, r.LocationID)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d location token(s) failed for company %s", len(failed), companyID)
		}
		return nil
	})
	return first, taskID
}

// mintAll mints tokens with at most opts.Concurrency requests in flight.
// Results are returned in the order of ids.
func (u *locationUsecase) mintAll(ctx context.Context, companyID, companyAccessToken string, ids []string) []domain.MintResult {
	results := make([]domain.MintResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = u.MintLocationToken(gctx, companyID, companyAccessToken, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (u *locationUsecase) Create(ctx context.Context, location domain.Location) (*domain.Location, error) {
	if location.ID == "" {
		return nil, fmt.Errorf("create location: id is required: %w", apperrors.ErrInvalidArgument)
	}

	patch := domain.Patch{ID: location.ID, Name: &location.Name}
	if location.CompanyID != "" {
		patch.CompanyID = &location.CompanyID
	}
	if location.Address != "" {
		patch.Address = &location.Address
	}
	if location.AppID != "" {
		patch.AppID = &location.AppID
	}
	// isInstalled is only ever raised here; a missing field reads as false.
	if location.IsInstalled {
		patch.IsInstalled = &location.IsInstalled
	}
	if err := u.locationRepo.Apply(ctx, patch); err != nil {
		return nil, err
	}

	stored, err := u.locationRepo.FindByID(ctx, location.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("create location %s: %w", location.ID, apperrors.ErrNotFound)
	}
	return stored, nil
}

func (u *locationUsecase) Update(ctx context.Context, patch domain.Patch) error {
	if patch.ID == "" {
		return fmt.Errorf("update location: id is required: %w", apperrors.ErrInvalidArgument)
	}
	return u.locationRepo.Apply(ctx, patch)
}

func (u *locationUsecase) Uninstall(ctx context.Context, locationID string) error {
	if locationID == "" {
		return fmt.Errorf("uninstall location: %w", apperrors.ErrInvalidArgument)
	}

	var companyID string
	existing, err := u.locationRepo.FindByID(ctx, locationID)
	if err != nil {
		return fmt.Errorf("find location %s: %w", locationID, err)
	}
	if existing != nil {
		companyID = existing.CompanyID
	}

	if err := u.locationRepo.Delete(ctx, locationID); err != nil {
		return fmt.Errorf("delete location %s: %w", locationID, err)
	}
	if err := u.tokenStore.Remove(ctx, companyID, tokendomain.KindLocation, locationID); err != nil {
		return fmt.Errorf("remove token for location %s: %w", locationID, err)
	}

	u.logger.Info().Str("location_id", locationID).Str("company_id", companyID).Msg("location uninstalled")
	return nil
}
