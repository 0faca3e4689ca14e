package usecase

import (
	"context"
	"errors"
	"testing"

	"ghl-backend/internal/agency/domain"
	"ghl-backend/internal/agency/repository"
	locationdomain "ghl-backend/internal/location/domain"
	locationrepo "ghl-backend/internal/location/repository"
	tokendomain "ghl-backend/internal/token/domain"
	tokenrepo "ghl-backend/internal/token/repository"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/docstore"
	"ghl-backend/pkg/tokencrypt"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *docstore.Memory
	tokens    tokenrepo.TokenRepository
	locations locationrepo.LocationRepository
	uc        AgencyUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := tokencrypt.New("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	store := docstore.NewMemory()
	f := &fixture{
		store:     store,
		tokens:    tokenrepo.NewTokenRepository(store, c, zerolog.Nop()),
		locations: locationrepo.NewLocationRepository(store),
	}
	f.uc = NewAgencyUsecase(repository.NewCompanyRepository(store), f.locations, f.tokens, "app-1", "Acme Agency", zerolog.Nop())
	return f
}

func companyToken() *tokendomain.Token {
	return &tokendomain.Token{
		AccessToken:       "AT1",
		RefreshToken:      "RT1",
		TokenType:         "Bearer",
		ExpiresIn:         86399,
		Scope:             "locations.readonly",
		Kind:              tokendomain.KindCompany,
		CompanyID:         "C1",
		UserID:            "U1",
		ApprovedLocations: []string{"L1", "L2"},
	}
}

func TestHandleInstallation_StoresMetadataWithoutSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleInstallation(ctx, companyToken()))

	c, err := f.uc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", c.AppID)
	assert.Equal(t, "Acme Agency", c.CompanyName)
	assert.Equal(t, domain.InstallTypeOAuth, c.InstallType)
	assert.Equal(t, "Company", c.UserType)
	assert.Equal(t, []string{"L1", "L2"}, c.ApprovedLocations)
	assert.False(t, c.CreatedAt.IsZero())

	raw, err := f.store.Get(ctx, "companies", "C1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "access_token")
	assert.NotContains(t, raw, "refresh_token")
}

func TestUpsert_MergeKeepsExistingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.Upsert(ctx, domain.Company{
		CompanyID:           "C1",
		CompanyName:         "Whitelabel Co",
		InstallType:         domain.InstallTypeWebhook,
		IsWhitelabelCompany: true,
		Trial:               &domain.Trial{OnTrial: true, TrialDuration: 14},
	}))
	require.NoError(t, f.uc.HandleInstallation(ctx, companyToken()))

	c, err := f.uc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, c.IsWhitelabelCompany)
	require.NotNil(t, c.Trial)
	assert.True(t, c.Trial.OnTrial)
	assert.Equal(t, int64(14), c.Trial.TrialDuration)
	assert.Equal(t, "Acme Agency", c.CompanyName)
	assert.Equal(t, "Bearer", c.TokenType)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUninstall_CascadesLocationsAndTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleInstallation(ctx, companyToken()))
	require.NoError(t, f.locations.SaveAll(ctx, []locationdomain.Location{
		{ID: "L1", CompanyID: "C1", IsInstalled: true},
		{ID: "L2", CompanyID: "C1", IsInstalled: true},
		{ID: "L9", CompanyID: "C2", IsInstalled: true},
	}))
	require.NoError(t, f.tokens.Upsert(ctx, tokendomain.PatchFromToken(companyToken())))
	require.NoError(t, f.tokens.Upsert(ctx, tokendomain.PatchFromToken(&tokendomain.Token{
		AccessToken: "AT-L1", Kind: tokendomain.KindLocation, CompanyID: "C1", LocationID: "L1",
	})))
	require.NoError(t, f.tokens.Upsert(ctx, tokendomain.PatchFromToken(&tokendomain.Token{
		AccessToken: "AT-L9", Kind: tokendomain.KindLocation, CompanyID: "C2", LocationID: "L9",
	})))

	ids, err := f.uc.Uninstall(ctx, "C1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"L1", "L2"}, ids)

	assert.Equal(t, 0, f.store.Count("companies"))
	assert.Equal(t, 1, f.store.Count("locations"))
	assert.Equal(t, 1, f.store.Count("tokens"))
	_, err = f.tokens.Get(ctx, "C2", tokendomain.KindLocation, "L9")
	assert.NoError(t, err)
}

func TestUninstall_RequiresCompanyID(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.Uninstall(context.Background(), "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}
