package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ghl-backend/internal/user/domain"
	"ghl-backend/pkg/docstore"
)

const (
	usersCollection     = "users"
	locationsCollection = "locations"
)

func locationUsers(locationID string) string {
	return "locations/" + locationID + "/users"
}

// UserRepository stores users at the top level and mirrored under each of
// their locations.
type UserRepository interface {
	// SaveAll merges users fetched for one location.
	SaveAll(ctx context.Context, locationID string, users []domain.User) error

	// Upsert merges a single user. LocationID selects the mirror, if set.
	Upsert(ctx context.Context, u domain.User) error

	FindByID(ctx context.Context, id string) (*domain.User, error)

	// ListIDsByLocation returns the ids of users stored under a location.
	ListIDsByLocation(ctx context.Context, locationID string) ([]string, error)

	// DeleteByLocation drops the location from every user. Users left with
	// no existing location are deleted.
	DeleteByLocation(ctx context.Context, locationID string) error

	// DeleteByCompany deletes every user of a company.
	DeleteByCompany(ctx context.Context, companyID string) error
}

type userRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store, now: time.Now}
}

func (r *userRepository) SaveAll(ctx context.Context, locationID string, users []domain.User) error {
	w := docstore.NewBatchWriter(r.store)
	for _, u := range users {
		if u.LocationID == "" {
			u.LocationID = locationID
		}
		if err := r.write(ctx, w, u); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("save %d users for %s: %w", len(users), locationID, err)
	}
	return nil
}

func (r *userRepository) Upsert(ctx context.Context, u domain.User) error {
	w := docstore.NewBatchWriter(r.store)
	if err := r.write(ctx, w, u); err != nil {
		return err
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// write queues the top-level and mirrored merges. locationIds is written as
// an array union so concurrent syncs of the same user for different
// locations all land.
func (r *userRepository) write(ctx context.Context, w *docstore.BatchWriter, u domain.User) error {
	existing, err := r.store.Get(ctx, usersCollection, u.ID)
	if err != nil {
		return err
	}

	ids := append([]string(nil), u.LocationIDs...)
	if u.LocationID != "" {
		ids = domain.WithLocation(ids, u.LocationID)
	}

	doc := encode(u)
	if len(ids) > 0 {
		doc["locationIds"] = docstore.ArrayUnion(ids...)
	}
	doc["updatedAt"] = r.now()
	if existing == nil {
		doc["createdAt"] = doc["updatedAt"]
	}

	if err := w.Merge(ctx, usersCollection, u.ID, doc); err != nil {
		return err
	}
	if u.LocationID != "" {
		if err := w.Merge(ctx, locationUsers(u.LocationID), u.ID, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.store.Get(ctx, usersCollection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	u := decode(id, doc)
	return &u, nil
}

func (r *userRepository) ListIDsByLocation(ctx context.Context, locationID string) ([]string, error) {
	snaps, err := r.store.Query(ctx, locationUsers(locationID), nil, 0)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		snaps, err = r.store.Query(ctx, usersCollection, []docstore.Filter{docstore.Contains("locationIds", locationID)}, 0)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *userRepository) DeleteByLocation(ctx context.Context, locationID string) error {
	nested, err := r.store.Query(ctx, locationUsers(locationID), nil, 0)
	if err != nil {
		return err
	}
	members, err := r.store.Query(ctx, usersCollection, []docstore.Filter{docstore.Contains("locationIds", locationID)}, 0)
	if err != nil {
		return err
	}

	w := docstore.NewBatchWriter(r.store)
	for _, s := range nested {
		if err := w.Delete(ctx, locationUsers(locationID), s.ID); err != nil {
			return err
		}
	}

	for _, s := range members {
		remaining, err := r.existingLocations(ctx, domain.WithoutLocation(docstore.Strings(s.Data, "locationIds"), locationID))
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			err = w.Delete(ctx, usersCollection, s.ID)
		} else {
			roles := docstore.Map(s.Data, "roles")
			patch := docstore.Doc{"locationIds": remaining, "updatedAt": r.now()}
			if roles != nil {
				patch["roles"] = map[string]interface{}{
					"type":        docstore.String(roles, "type"),
					"role":        docstore.String(roles, "role"),
					"locationIds": domain.WithoutLocation(docstore.Strings(roles, "locationIds"), locationID),
				}
			}
			if docstore.String(s.Data, "locationId") == locationID {
				patch["locationId"] = remaining[0]
			}
			err = w.Merge(ctx, usersCollection, s.ID, patch)
		}
		if err != nil {
			return err
		}
	}

	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("delete users of location %s: %w", locationID, err)
	}
	return nil
}

// existingLocations keeps only ids that still have a location record.
func (r *userRepository) existingLocations(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		doc, err := r.store.Get(ctx, locationsCollection, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *userRepository) DeleteByCompany(ctx context.Context, companyID string) error {
	snaps, err := r.store.Query(ctx, usersCollection, []docstore.Filter{docstore.Eq("companyId", companyID)}, 0)
	if err != nil {
		return err
	}

	w := docstore.NewBatchWriter(r.store)
	for _, s := range snaps {
		for _, lid := range docstore.Strings(s.Data, "locationIds") {
			if err := w.Delete(ctx, locationUsers(lid), s.ID); err != nil {
				return err
			}
		}
		if err := w.Delete(ctx, usersCollection, s.ID); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("delete users of company %s: %w", companyID, err)
	}
	return nil
}

func encode(u domain.User) docstore.Doc {
	doc := docstore.Doc{
		"id":        u.ID,
		"name":      u.Name,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"email":     u.Email,
		"deleted":   u.Deleted,
	}
	optional := map[string]string{
		"phone":      u.Phone,
		"extension":  u.Extension,
		"role":       u.Role,
		"locationId": u.LocationID,
		"companyId":  u.CompanyID,
	}
	for k, v := range optional {
		if v != "" {
			doc[k] = v
		}
	}
	if u.Roles.Type != "" || u.Roles.Role != "" || len(u.Roles.LocationIDs) > 0 {
		doc["roles"] = map[string]interface{}{
			"type":        u.Roles.Type,
			"role":        u.Roles.Role,
			"locationIds": u.Roles.LocationIDs,
		}
	}
	if u.Permissions != nil {
		doc["permissions"] = u.Permissions
	}
	return doc
}

func decode(id string, d docstore.Doc) domain.User {
	u := domain.User{
		ID:          id,
		Name:        docstore.String(d, "name"),
		FirstName:   docstore.String(d, "firstName"),
		LastName:    docstore.String(d, "lastName"),
		Email:       docstore.String(d, "email"),
		Phone:       docstore.String(d, "phone"),
		Extension:   docstore.String(d, "extension"),
		Role:        docstore.String(d, "role"),
		Permissions: docstore.Map(d, "permissions"),
		LocationID:  docstore.String(d, "locationId"),
		CompanyID:   docstore.String(d, "companyId"),
		LocationIDs: docstore.Strings(d, "locationIds"),
		Deleted:     docstore.Bool(d, "deleted"),
		CreatedAt:   docstore.Time(d, "createdAt"),
		UpdatedAt:   docstore.Time(d, "updatedAt"),
	}
	if roles := docstore.Map(d, "roles"); roles != nil {
		u.Roles = domain.Roles{
			Type:        docstore.String(roles, "type"),
			Role:        docstore.String(roles, "role"),
			LocationIDs: docstore.Strings(roles, "locationIds"),
		}
	}
	return u
}
