package usecase

import (
	"context"
	"errors"
	"testing"

	"ghl-backend/internal/token/domain"
	"ghl-backend/internal/token/repository"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/docstore"
	"ghl-backend/pkg/ghl"
	"ghl-backend/pkg/tokencrypt"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOAuth struct {
	company  func(grantType, value string) (*ghl.TokenResponse, error)
	location func(companyID, locationID, bearer string) (*ghl.TokenResponse, error)
}

func (f *fakeOAuth) ExchangeCompanyToken(_ context.Context, grantType, value string) (*ghl.TokenResponse, error) {
	return f.company(grantType, value)
}

func (f *fakeOAuth) ExchangeLocationToken(_ context.Context, companyID, locationID, bearer string) (*ghl.TokenResponse, error) {
	return f.location(companyID, locationID, bearer)
}

func (f *fakeOAuth) AuthorizeURL(state string) string { return "https://auth/" + state }

func newUsecase(t *testing.T, client OAuthClient) (TokenUsecase, repository.TokenRepository) {
	t.Helper()
	c, err := tokencrypt.New("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	repo := repository.NewTokenRepository(docstore.NewMemory(), c, zerolog.Nop())
	return NewTokenUsecase(client, repo, zerolog.Nop()), repo
}

func TestAcquire_CompanyGrantPersistsAndTriggersCallback(t *testing.T) {
	client := &fakeOAuth{company: func(grantType, value string) (*ghl.TokenResponse, error) {
		assert.Equal(t, "authorization_code", grantType)
		assert.Equal(t, "code-abc", value)
		return &ghl.TokenResponse{AccessToken: "AT1", RefreshToken: "RT1", ExpiresIn: 86399, UserType: "Company", CompanyID: "C1"}, nil
	}}
	uc, repo := newUsecase(t, client)

	var enumerated []string
	uc.SetCompanyTokenCallback(func(ctx context.Context, tok *domain.Token) error {
		enumerated = append(enumerated, tok.CompanyID)
		return nil
	})

	tok, err := uc.Acquire(context.Background(), domain.CompanyGrant{GrantType: domain.GrantAuthorizationCode, Value: "code-abc"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindCompany, tok.Kind)
	assert.Equal(t, []string{"C1"}, enumerated)

	stored, err := repo.Get(context.Background(), "C1", domain.KindCompany, "")
	require.NoError(t, err)
	assert.Equal(t, "AT1", stored.AccessToken)
}

func TestAcquire_CallbackFailureDoesNotFailAcquire(t *testing.T) {
	client := &fakeOAuth{company: func(string, string) (*ghl.TokenResponse, error) {
		return &ghl.TokenResponse{AccessToken: "AT1", CompanyID: "C1"}, nil
	}}
	uc, _ := newUsecase(t, client)
	uc.SetCompanyTokenCallback(func(context.Context, *domain.Token) error { return errors.New("platform down") })

	_, err := uc.Acquire(context.Background(), domain.CompanyGrant{GrantType: domain.GrantRefreshToken, Value: "RT"})
	assert.NoError(t, err)
}

func TestAcquire_LocationGrantDoesNotTriggerCallback(t *testing.T) {
	client := &fakeOAuth{location: func(companyID, locationID, bearer string) (*ghl.TokenResponse, error) {
		assert.Equal(t, "AT-company", bearer)
		return &ghl.TokenResponse{AccessToken: "AT-L1", CompanyID: companyID, UserType: "Location"}, nil
	}}
	uc, repo := newUsecase(t, client)
	uc.SetCompanyTokenCallback(func(context.Context, *domain.Token) error {
		t.Fatal("callback must not run for location tokens")
		return nil
	})

	tok, err := uc.Acquire(context.Background(), domain.LocationGrant{CompanyID: "C1", LocationID: "L1", Bearer: "AT-company"})
	require.NoError(t, err)
	assert.Equal(t, "L1", tok.LocationID)

	stored, err := repo.Get(context.Background(), "C1", domain.KindLocation, "L1")
	require.NoError(t, err)
	assert.Equal(t, "AT-L1", stored.AccessToken)
}

func TestAcquire_InvalidTokenResponse(t *testing.T) {
	for name, resp := range map[string]*ghl.TokenResponse{
		"no access token": {CompanyID: "C1"},
		"no company id":   {AccessToken: "AT"},
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeOAuth{company: func(string, string) (*ghl.TokenResponse, error) { return resp, nil }}
			uc, _ := newUsecase(t, client)

			_, err := uc.Acquire(context.Background(), domain.CompanyGrant{GrantType: domain.GrantAuthorizationCode, Value: "c"})
			assert.ErrorIs(t, err, apperrors.ErrInvalidTokenResponse)
		})
	}
}

func TestAcquire_InvalidRequests(t *testing.T) {
	uc, _ := newUsecase(t, &fakeOAuth{})
	ctx := context.Background()

	_, err := uc.Acquire(ctx, domain.CompanyGrant{GrantType: "password", Value: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = uc.Acquire(ctx, domain.CompanyGrant{GrantType: domain.GrantAuthorizationCode})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = uc.Acquire(ctx, domain.LocationGrant{CompanyID: "C1", Bearer: "AT"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = uc.Acquire(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestAcquire_UpstreamErrorPropagates(t *testing.T) {
	client := &fakeOAuth{company: func(string, string) (*ghl.TokenResponse, error) {
		return nil, &ghl.APIError{Op: "company token", StatusCode: 400, Body: "invalid_grant"}
	}}
	uc, _ := newUsecase(t, client)

	_, err := uc.Acquire(context.Background(), domain.CompanyGrant{GrantType: domain.GrantRefreshToken, Value: "RT"})
	var apiErr *ghl.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestInstallURL(t *testing.T) {
	uc, _ := newUsecase(t, &fakeOAuth{})
	assert.Equal(t, "https://auth/s1", uc.InstallURL("s1"))
}
