package scheduler

import (
	"context"
	"sync"
	"time"

	"ghl-backend/internal/token/domain"

	"github.com/rs/zerolog"
)

const leaseName = "token-refresh"

// TokenStore lists and reads stored tokens.
type TokenStore interface {
	ListByKind(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Token, error)
	Get(ctx context.Context, companyID string, kind domain.Kind, locationID string) (*domain.Token, error)
}

// Refresher mints tokens.
type Refresher interface {
	Acquire(ctx context.Context, req domain.Request) (*domain.Token, error)
}

// LocationTokenFetcher re-mints location tokens after a company refresh.
type LocationTokenFetcher interface {
	FetchLocationTokensWithRetry(ctx context.Context, companyID, companyAccessToken string) (string, error)
}

// Leaser guards a pass so only one replica refreshes at a time.
type Leaser interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Summary counts what one pass did.
type Summary struct {
	CompaniesChecked   int  `json:"companiesChecked"`
	CompaniesRefreshed int  `json:"companiesRefreshed"`
	LocationsChecked   int  `json:"locationsChecked"`
	LocationsRefreshed int  `json:"locationsRefreshed"`
	Skipped            int  `json:"skipped"`
	Failed             int  `json:"failed"`
	LeaseHeldElsewhere bool `json:"leaseHeldElsewhere,omitempty"`
}

// RefreshScheduler refreshes tokens that are about to expire.
type RefreshScheduler struct {
	tokens    TokenStore
	refresher Refresher
	locations LocationTokenFetcher
	lease     Leaser
	interval  time.Duration
	window    time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

func NewRefreshScheduler(
	tokens TokenStore,
	refresher Refresher,
	locations LocationTokenFetcher,
	interval, window time.Duration,
	logger zerolog.Logger,
) *RefreshScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &RefreshScheduler{
		tokens:    tokens,
		refresher: refresher,
		locations: locations,
		interval:  interval,
		window:    window,
		now:       time.Now,
		logger:    logger,
	}
}

// SetLease makes every pass take a distributed lease first.
func (s *RefreshScheduler) SetLease(l Leaser) {
	s.lease = l
}

// Start runs a pass immediately and then every interval until Stop. A
// stopped scheduler can be started again.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Dur("window", s.window).Msg("starting token refresh scheduler")

	go func() {
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-stop:
				s.logger.Info().Msg("token refresh scheduler stopped")
				return
			}
		}
	}()
}

func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
}

func (s *RefreshScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single refresh pass. Company tokens are handled before
// location tokens since location refreshes use the company bearer.
func (s *RefreshScheduler) RunOnce(ctx context.Context) Summary {
	var sum Summary

	if s.lease != nil {
		ok, err := s.lease.TryAcquire(ctx, leaseName, s.interval)
		if err != nil {
			s.logger.Error().Err(err).Msg("refresh lease unavailable, skipping pass")
			sum.LeaseHeldElsewhere = true
			return sum
		}
		if !ok {
			s.logger.Debug().Msg("refresh lease held by another instance")
			sum.LeaseHeldElsewhere = true
			return sum
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx), leaseName); err != nil {
				s.logger.Warn().Err(err).Msg("release refresh lease")
			}
		}()
	}

	now := s.now()
	s.refreshCompanies(ctx, now, &sum)
	s.refreshLocations(ctx, now, &sum)

	if sum.CompaniesRefreshed+sum.LocationsRefreshed+sum.Failed > 0 {
		s.logger.Info().
			Int("companies_refreshed", sum.CompaniesRefreshed).
			Int("locations_refreshed", sum.LocationsRefreshed).
			Int("skipped", sum.Skipped).
			Int("failed", sum.Failed).
			Msg("token refresh pass finished")
	}
	return sum
}

func (s *RefreshScheduler) refreshCompanies(ctx context.Context, now time.Time, sum *Summary) {
	companies, err := s.tokens.ListByKind(ctx, domain.KindCompany, 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("list company tokens")
		return
	}

	for _, t := range companies {
		sum.CompaniesChecked++
		if !t.NeedsRefresh(now, s.window) {
			continue
		}
		log := s.logger.With().Str("company_id", t.CompanyID).Logger()

		if t.RefreshToken == "" {
			log.Warn().Msg("company token has no refresh token")
			sum.Failed++
			continue
		}

		fresh, err := s.refresher.Acquire(ctx, domain.CompanyGrant{GrantType: domain.GrantRefreshToken, Value: t.RefreshToken})
		if err != nil {
			log.Error().Err(err).Msg("company token refresh failed")
			sum.Failed++
			continue
		}
		sum.CompaniesRefreshed++

		if s.locations == nil {
			continue
		}
		if taskID, err := s.locations.FetchLocationTokensWithRetry(ctx, fresh.CompanyID, fresh.AccessToken); err != nil {
			log.Error().Err(err).Msg("location token re-fetch failed")
		} else if taskID != "" {
			log.Warn().Str("retry_task_id", taskID).Msg("some location tokens queued for retry")
		}
	}
}

func (s *RefreshScheduler) refreshLocations(ctx context.Context, now time.Time, sum *Summary) {
	locations, err := s.tokens.ListByKind(ctx, domain.KindLocation, 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("list location tokens")
		return
	}

	for _, t := range locations {
		sum.LocationsChecked++
		if !t.NeedsRefresh(now, s.window) {
			continue
		}
		log := s.logger.With().Str("company_id", t.CompanyID).Str("location_id", t.LocationID).Logger()

		company, err := s.tokens.Get(ctx, t.CompanyID, domain.KindCompany, "")
		if err != nil {
			log.Warn().Err(err).Msg("no company token for location, skipping refresh")
			sum.Skipped++
			continue
		}

		_, err = s.refresher.Acquire(ctx, domain.LocationGrant{
			CompanyID:  t.CompanyID,
			LocationID: t.LocationID,
			Bearer:     company.AccessToken,
		})
		if err != nil {
			log.Error().Err(err).Msg("location token refresh failed")
			sum.Failed++
			continue
		}
		sum.LocationsRefreshed++
	}
}
