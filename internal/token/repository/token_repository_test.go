package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ghl-backend/internal/token/domain"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/docstore"
	"ghl-backend/pkg/tokencrypt"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setup(t *testing.T) (*tokenRepository, *docstore.Memory) {
	t.Helper()
	c, err := tokencrypt.New(testKey)
	require.NoError(t, err)
	store := docstore.NewMemory()
	return NewTokenRepository(store, c, zerolog.Nop()).(*tokenRepository), store
}

func str(s string) *string { return &s }
func i64(n int64) *int64   { return &n }

func companyPatch(access string) domain.Patch {
	return domain.Patch{
		CompanyID:    "C1",
		Kind:         domain.KindCompany,
		AccessToken:  str(access),
		RefreshToken: str("RT-" + access),
		ExpiresIn:    i64(86399),
		Scope:        str("locations.readonly"),
	}
}

func TestUpsert_IdempotentKeepsLatest(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	require.NoError(t, repo.Upsert(ctx, companyPatch("AT1")))
	require.NoError(t, repo.Upsert(ctx, companyPatch("AT2")))

	assert.Equal(t, 1, store.Count(tokensCollection))

	tok, err := repo.Get(ctx, "C1", domain.KindCompany, "")
	require.NoError(t, err)
	assert.Equal(t, "AT2", tok.AccessToken)
	assert.Equal(t, "RT-AT2", tok.RefreshToken)
	assert.Equal(t, "", tok.LocationID)
}

func TestUpsert_MergeDoesNotClearUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t)

	first := companyPatch("AT1")
	first.UserID = str("U1")
	first.ApprovedLocations = []string{"L1", "L2"}
	require.NoError(t, repo.Upsert(ctx, first))

	created, err := repo.Get(ctx, "C1", domain.KindCompany, "")
	require.NoError(t, err)

	repo.now = func() time.Time { return created.UpdatedAt.Add(time.Hour) }
	require.NoError(t, repo.Upsert(ctx, domain.Patch{
		CompanyID:   "C1",
		Kind:        domain.KindCompany,
		AccessToken: str("AT9"),
	}))

	tok, err := repo.Get(ctx, "C1", domain.KindCompany, "")
	require.NoError(t, err)
	assert.Equal(t, "AT9", tok.AccessToken)
	assert.Equal(t, "RT-AT1", tok.RefreshToken)
	assert.Equal(t, "U1", tok.UserID)
	assert.Equal(t, []string{"L1", "L2"}, tok.ApprovedLocations)
	assert.Equal(t, int64(86399), tok.ExpiresIn)
	assert.True(t, tok.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, tok.UpdatedAt.After(created.UpdatedAt))
}

func TestUpsert_StoresCiphertextOnly(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	require.NoError(t, repo.Upsert(ctx, companyPatch("plain-access")))

	doc, err := store.Get(ctx, tokensCollection, "C1_none")
	require.NoError(t, err)
	require.NotNil(t, doc)

	for k, v := range doc {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "plain-access", "field %s", k)
		}
	}
	assert.Len(t, strings.Split(doc["access_token"].(string), ":"), 2)
	assert.Equal(t, true, doc["encrypted"])
	assert.Equal(t, domain.NoLocationID, doc["locationId"])
	assert.NotContains(t, doc, "traceId")
}

func TestUpsert_Validation(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	err := repo.Upsert(ctx, domain.Patch{Kind: domain.KindCompany})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	err = repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: domain.KindLocation})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	err = repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: "Agency"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestGet_Errors(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "C1", domain.KindLocation, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = repo.Get(ctx, "", domain.KindCompany, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = repo.Get(ctx, "C1", domain.KindCompany, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCompanyAndLocationTokensAreDistinct(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	require.NoError(t, repo.Upsert(ctx, companyPatch("AT-company")))
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: domain.KindLocation, LocationID: "L1", AccessToken: str("AT-L1")}))

	assert.Equal(t, 2, store.Count(tokensCollection))

	loc, err := repo.Get(ctx, "C1", domain.KindLocation, "L1")
	require.NoError(t, err)
	assert.Equal(t, "AT-L1", loc.AccessToken)
	assert.Equal(t, "L1", loc.LocationID)
	assert.Equal(t, domain.KindLocation, loc.Kind)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	require.NoError(t, repo.Upsert(ctx, companyPatch("AT")))
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: domain.KindLocation, LocationID: "L1", AccessToken: str("a")}))
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: domain.KindLocation, LocationID: "L2", AccessToken: str("b")}))

	// no match is a no-op
	require.NoError(t, repo.Remove(ctx, "C1", domain.KindLocation, "L404"))
	assert.Equal(t, 3, store.Count(tokensCollection))

	// location scope without companyId
	require.NoError(t, repo.Remove(ctx, "", domain.KindLocation, "L1"))
	_, err := repo.Get(ctx, "C1", domain.KindLocation, "L1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.Remove(ctx, "", domain.KindCompany, ""), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, repo.Remove(ctx, "C1", domain.KindLocation, ""), apperrors.ErrInvalidArgument)

	require.NoError(t, repo.RemoveByCompany(ctx, "C1"))
	assert.Equal(t, 0, store.Count(tokensCollection))
}

func TestRemove_ToleratesDuplicates(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	dup := docstore.Doc{"companyId": "C1", "locationId": "L1", "userType": "Location"}
	require.NoError(t, store.Set(ctx, tokensCollection, "legacy-1", dup))
	require.NoError(t, store.Set(ctx, tokensCollection, "legacy-2", dup))

	require.NoError(t, repo.Remove(ctx, "C1", domain.KindLocation, "L1"))
	assert.Equal(t, 0, store.Count(tokensCollection))
}

func TestListByKind_SkipsUndecryptable(t *testing.T) {
	ctx := context.Background()
	repo, store := setup(t)

	require.NoError(t, repo.Upsert(ctx, companyPatch("AT")))
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C2", Kind: domain.KindCompany, AccessToken: str("AT2")}))
	require.NoError(t, store.Merge(ctx, tokensCollection, "C2_none", docstore.Doc{"access_token": "nothexnocollon"}))
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C1", Kind: domain.KindLocation, LocationID: "L1", AccessToken: str("x")}))

	companies, err := repo.ListByKind(ctx, domain.KindCompany, 0)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "C1", companies[0].CompanyID)

	locations, err := repo.ListByKind(ctx, domain.KindLocation, 0)
	require.NoError(t, err)
	assert.Len(t, locations, 1)
}

func TestListByKind_PagesPastOnePage(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t)
	repo.pageSize = 2

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: fmt.Sprintf("C%d", i), Kind: domain.KindCompany, AccessToken: str("AT")}))
	}
	require.NoError(t, repo.Upsert(ctx, domain.Patch{CompanyID: "C0", Kind: domain.KindLocation, LocationID: "L1", AccessToken: str("x")}))

	all, err := repo.ListByKind(ctx, domain.KindCompany, 0)
	require.NoError(t, err)
	require.Len(t, all, 7)
	seen := map[string]bool{}
	for _, tok := range all {
		seen[tok.CompanyID] = true
	}
	assert.Len(t, seen, 7)

	some, err := repo.ListByKind(ctx, domain.KindCompany, 3)
	require.NoError(t, err)
	assert.Len(t, some, 3)
}
