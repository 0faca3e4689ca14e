package repository

import (
	"context"
	"fmt"
	"time"

	"ghl-backend/internal/location/domain"
	"ghl-backend/pkg/docstore"
)

const locationsCollection = "locations"

func companyLocations(companyID string) string {
	return "companies/" + companyID + "/locations"
}

// LocationRepository stores locations at the top level and mirrored under their company.
type LocationRepository interface {
	// SaveAll merges every location in batches.
	SaveAll(ctx context.Context, locations []domain.Location) error

	// Apply merges a partial update.
	Apply(ctx context.Context, p domain.Patch) error

	// FindByID returns nil, nil if the location does not exist.
	FindByID(ctx context.Context, id string) (*domain.Location, error)

	// ListByCompany returns every stored location of a company.
	ListByCompany(ctx context.Context, companyID string) ([]domain.Location, error)

	// ListInstalledByCompany returns the company's locations with isInstalled=true.
	ListInstalledByCompany(ctx context.Context, companyID string) ([]domain.Location, error)

	// Delete removes a location and its company mirror.
	Delete(ctx context.Context, id string) error

	// DeleteByCompany removes all locations of a company and returns their ids.
	DeleteByCompany(ctx context.Context, companyID string) ([]string, error)
}

type locationRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewLocationRepository(store docstore.Store) LocationRepository {
	return &locationRepository{store: store, now: time.Now}
}

func (r *locationRepository) SaveAll(ctx context.Context, locations []domain.Location) error {
	now := r.now()
	w := docstore.NewBatchWriter(r.store)
	for _, l := range locations {
		existing, err := r.store.Get(ctx, locationsCollection, l.ID)
		if err != nil {
			return err
		}
		doc := encode(l)
		doc["updatedAt"] = now
		if existing == nil {
			doc["createdAt"] = now
		}

		if err := w.Merge(ctx, locationsCollection, l.ID, doc); err != nil {
			return err
		}
		if l.CompanyID != "" {
			if err := w.Merge(ctx, companyLocations(l.CompanyID), l.ID, doc); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("save %d locations: %w", len(locations), err)
	}
	return nil
}

func (r *locationRepository) Apply(ctx context.Context, p domain.Patch) error {
	existing, err := r.store.Get(ctx, locationsCollection, p.ID)
	if err != nil {
		return err
	}

	doc := docstore.Doc{"id": p.ID, "updatedAt": r.now()}
	if existing == nil {
		doc["createdAt"] = doc["updatedAt"]
	}
	if p.CompanyID != nil {
		doc["companyId"] = *p.CompanyID
	}
	if p.Name != nil {
		doc["name"] = *p.Name
	}
	if p.Address != nil {
		doc["address"] = *p.Address
	}
	if p.AppID != nil {
		doc["appId"] = *p.AppID
	}
	if p.IsInstalled != nil {
		doc["isInstalled"] = *p.IsInstalled
	}

	if err := r.store.Merge(ctx, locationsCollection, p.ID, doc); err != nil {
		return fmt.Errorf("update location %s: %w", p.ID, err)
	}

	companyID := docstore.String(existing, "companyId")
	if p.CompanyID != nil {
		companyID = *p.CompanyID
	}
	if companyID != "" {
		if err := r.store.Merge(ctx, companyLocations(companyID), p.ID, doc); err != nil {
			return fmt.Errorf("update company location %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r *locationRepository) FindByID(ctx context.Context, id string) (*domain.Location, error) {
	doc, err := r.store.Get(ctx, locationsCollection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	l := decode(id, doc)
	return &l, nil
}

func (r *locationRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Location, error) {
	return r.query(ctx, []docstore.Filter{docstore.Eq("companyId", companyID)})
}

func (r *locationRepository) ListInstalledByCompany(ctx context.Context, companyID string) ([]domain.Location, error) {
	return r.query(ctx, []docstore.Filter{docstore.Eq("companyId", companyID), docstore.Eq("isInstalled", true)})
}

func (r *locationRepository) query(ctx context.Context, filters []docstore.Filter) ([]domain.Location, error) {
	snaps, err := r.store.Query(ctx, locationsCollection, filters, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, decode(s.ID, s.Data))
	}
	return out, nil
}

func (r *locationRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.store.Get(ctx, locationsCollection, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if companyID := docstore.String(doc, "companyId"); companyID != "" {
		if err := r.store.Delete(ctx, companyLocations(companyID), id); err != nil {
			return err
		}
	}
	return r.store.Delete(ctx, locationsCollection, id)
}

func (r *locationRepository) DeleteByCompany(ctx context.Context, companyID string) ([]string, error) {
	locations, err := r.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	w := docstore.NewBatchWriter(r.store)
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		if err := w.Delete(ctx, locationsCollection, l.ID); err != nil {
			return nil, err
		}
		if err := w.Delete(ctx, companyLocations(companyID), l.ID); err != nil {
			return nil, err
		}
		ids = append(ids, l.ID)
	}
	if err := w.Flush(ctx); err != nil {
		return nil, fmt.Errorf("delete locations of %s: %w", companyID, err)
	}
	return ids, nil
}

func encode(l domain.Location) docstore.Doc {
	doc := docstore.Doc{
		"id":          l.ID,
		"name":        l.Name,
		"companyId":   l.CompanyID,
		"isInstalled": l.IsInstalled,
		"onTrial":     l.OnTrial,
	}
	if l.Address != "" {
		doc["address"] = l.Address
	}
	if l.AppID != "" {
		doc["appId"] = l.AppID
	}
	if l.TrialEndsAt != "" {
		doc["trialEndDate"] = l.TrialEndsAt
	}
	return doc
}

func decode(id string, d docstore.Doc) domain.Location {
	return domain.Location{
		ID:          id,
		Name:        docstore.String(d, "name"),
		Address:     docstore.String(d, "address"),
		CompanyID:   docstore.String(d, "companyId"),
		AppID:       docstore.String(d, "appId"),
		IsInstalled: docstore.Bool(d, "isInstalled"),
		OnTrial:     docstore.Bool(d, "onTrial"),
		TrialEndsAt: docstore.String(d, "trialEndDate"),
		CreatedAt:   docstore.Time(d, "createdAt"),
		UpdatedAt:   docstore.Time(d, "updatedAt"),
	}
}
