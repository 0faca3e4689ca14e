package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ghl-backend/internal/location/domain"
	"ghl-backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*locationRepository, *docstore.Memory) {
	store := docstore.NewMemory()
	repo := NewLocationRepository(store).(*locationRepository)
	return repo, store
}

func TestSaveAll_KeepsCreatedAtOnResave(t *testing.T) {
	repo, _ := setup()
	ctx := context.Background()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }
	require.NoError(t, repo.SaveAll(ctx, []domain.Location{{ID: "L1", CompanyID: "C1", Name: "A", IsInstalled: true}}))

	repo.now = func() time.Time { return t0.Add(time.Hour) }
	require.NoError(t, repo.SaveAll(ctx, []domain.Location{{ID: "L1", CompanyID: "C1", Name: "B", IsInstalled: true}}))

	loc, err := repo.FindByID(ctx, "L1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "B", loc.Name)
	assert.True(t, loc.CreatedAt.Equal(t0))
	assert.True(t, loc.UpdatedAt.Equal(t0.Add(time.Hour)))
}

func TestSaveAll_BatchesLargeSets(t *testing.T) {
	repo, store := setup()

	locations := make([]domain.Location, 0, 250)
	for i := 0; i < 250; i++ {
		locations = append(locations, domain.Location{ID: fmt.Sprintf("L%d", i), CompanyID: "C1", IsInstalled: true})
	}
	require.NoError(t, repo.SaveAll(context.Background(), locations))

	// 500 writes: top level plus company mirror
	assert.Equal(t, 2, store.Commits())
	assert.Equal(t, 250, store.Count("locations"))
	assert.Equal(t, 250, store.Count("companies/C1/locations"))
}

func TestApply_PatchesMirror(t *testing.T) {
	repo, store := setup()
	ctx := context.Background()
	require.NoError(t, repo.SaveAll(ctx, []domain.Location{{ID: "L1", CompanyID: "C1", Name: "A", IsInstalled: true}}))

	installed := false
	require.NoError(t, repo.Apply(ctx, domain.Patch{ID: "L1", IsInstalled: &installed}))

	mirror, err := store.Get(ctx, "companies/C1/locations", "L1")
	require.NoError(t, err)
	assert.Equal(t, false, mirror["isInstalled"])
	assert.Equal(t, "A", mirror["name"])

	installedOnly, err := repo.ListInstalledByCompany(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, installedOnly)
}

func TestFindByID_Missing(t *testing.T) {
	repo, _ := setup()
	loc, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestDeleteByCompany(t *testing.T) {
	repo, store := setup()
	ctx := context.Background()
	require.NoError(t, repo.SaveAll(ctx, []domain.Location{
		{ID: "L1", CompanyID: "C1"},
		{ID: "L2", CompanyID: "C1"},
		{ID: "L3", CompanyID: "C2"},
	}))

	ids, err := repo.DeleteByCompany(ctx, "C1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"L1", "L2"}, ids)
	assert.Equal(t, 1, store.Count("locations"))
	assert.Equal(t, 0, store.Count("companies/C1/locations"))
	assert.Equal(t, 1, store.Count("companies/C2/locations"))
}

func TestDelete_RemovesMirror(t *testing.T) {
	repo, store := setup()
	ctx := context.Background()
	require.NoError(t, repo.SaveAll(ctx, []domain.Location{{ID: "L1", CompanyID: "C1"}}))

	require.NoError(t, repo.Delete(ctx, "L1"))
	require.NoError(t, repo.Delete(ctx, "L1"))
	assert.Equal(t, 0, store.Count("locations"))
	assert.Equal(t, 0, store.Count("companies/C1/locations"))
}
