package repository

import (
	"context"
	"fmt"
	"time"

	"ghl-backend/internal/contact/domain"
	"ghl-backend/pkg/docstore"
)

const contactsCollection = "contacts"

func locationContacts(locationID string) string {
	return "locations/" + locationID + "/contacts"
}

type ContactRepository interface {
	SaveAll(ctx context.Context, contacts []domain.Contact) error
	// Upsert merges a contact and returns its id, generating one if empty.
	Upsert(ctx context.Context, c domain.Contact) (string, error)
	FindByID(ctx context.Context, id string) (*domain.Contact, error)
	Delete(ctx context.Context, id, locationID string) error
	DeleteByLocation(ctx context.Context, locationID string) error
	DeleteByCompany(ctx context.Context, companyID string) error
}

type contactRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewContactRepository(store docstore.Store) ContactRepository {
	return &contactRepository{store: store, now: time.Now}
}

func (r *contactRepository) SaveAll(ctx context.Context, contacts []domain.Contact) error {
	now := r.now()
	w := docstore.NewBatchWriter(r.store)
	for _, c := range contacts {
		doc := encode(c)
		doc["updatedAt"] = now
		if err := w.Merge(ctx, contactsCollection, c.ID, doc); err != nil {
			return err
		}
		if c.LocationID != "" {
			if err := w.Merge(ctx, locationContacts(c.LocationID), c.ID, doc); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("save %d contacts: %w", len(contacts), err)
	}
	return nil
}

func (r *contactRepository) Upsert(ctx context.Context, c domain.Contact) (string, error) {
	doc := encode(c)
	doc["updatedAt"] = r.now()

	if c.ID == "" {
		id, err := r.store.Add(ctx, contactsCollection, doc)
		if err != nil {
			return "", fmt.Errorf("add contact: %w", err)
		}
		c.ID = id
		doc["id"] = id
		if err := r.store.Merge(ctx, contactsCollection, id, docstore.Doc{"id": id}); err != nil {
			return "", err
		}
		if c.LocationID != "" {
			if err := r.store.Set(ctx, locationContacts(c.LocationID), id, doc); err != nil {
				return "", err
			}
		}
		return id, nil
	}

	if err := r.SaveAll(ctx, []domain.Contact{c}); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (r *contactRepository) FindByID(ctx context.Context, id string) (*domain.Contact, error) {
	doc, err := r.store.Get(ctx, contactsCollection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	c := decode(id, doc)
	return &c, nil
}

func (r *contactRepository) Delete(ctx context.Context, id, locationID string) error {
	if locationID == "" {
		existing, err := r.store.Get(ctx, contactsCollection, id)
		if err != nil {
			return err
		}
		locationID = docstore.String(existing, "locationId")
	}

	b := r.store.Batch()
	b.Delete(contactsCollection, id)
	if locationID != "" {
		b.Delete(locationContacts(locationID), id)
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("delete contact %s: %w", id, err)
	}
	return nil
}

func (r *contactRepository) DeleteByLocation(ctx context.Context, locationID string) error {
	top, err := r.store.Query(ctx, contactsCollection, []docstore.Filter{docstore.Eq("locationId", locationID)}, 0)
	if err != nil {
		return err
	}
	nested, err := r.store.Query(ctx, locationContacts(locationID), nil, 0)
	if err != nil {
		return err
	}

	w := docstore.NewBatchWriter(r.store)
	for _, s := range top {
		if err := w.Delete(ctx, contactsCollection, s.ID); err != nil {
			return err
		}
	}
	for _, s := range nested {
		if err := w.Delete(ctx, locationContacts(locationID), s.ID); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("delete contacts of location %s: %w", locationID, err)
	}
	return nil
}

func (r *contactRepository) DeleteByCompany(ctx context.Context, companyID string) error {
	snaps, err := r.store.Query(ctx, contactsCollection, []docstore.Filter{docstore.Eq("companyId", companyID)}, 0)
	if err != nil {
		return err
	}

	w := docstore.NewBatchWriter(r.store)
	for _, s := range snaps {
		if lid := docstore.String(s.Data, "locationId"); lid != "" {
			if err := w.Delete(ctx, locationContacts(lid), s.ID); err != nil {
				return err
			}
		}
		if err := w.Delete(ctx, contactsCollection, s.ID); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("delete contacts of company %s: %w", companyID, err)
	}
	return nil
}

func encode(c domain.Contact) docstore.Doc {
	doc := docstore.Doc{
		"id":  c.ID,
		"dnd": c.DND,
	}
	for k, v := range map[string]string{
		"locationId": c.LocationID,
		"companyId":  c.CompanyID,
		"firstName":  c.FirstName,
		"lastName":   c.LastName,
		"email":      c.Email,
		"phone":      c.Phone,
		"source":     c.Source,
		"dateAdded":  c.DateAdded,
	} {
		if v != "" {
			doc[k] = v
		}
	}
	if c.Tags != nil {
		doc["tags"] = c.Tags
	}
	if c.CustomFields != nil {
		fields := make([]interface{}, 0, len(c.CustomFields))
		for _, f := range c.CustomFields {
			fields = append(fields, f)
		}
		doc["customFields"] = fields
	}
	return doc
}

func decode(id string, d docstore.Doc) domain.Contact {
	c := domain.Contact{
		ID:         id,
		LocationID: docstore.String(d, "locationId"),
		CompanyID:  docstore.String(d, "companyId"),
		FirstName:  docstore.String(d, "firstName"),
		LastName:   docstore.String(d, "lastName"),
		Email:      docstore.String(d, "email"),
		Phone:      docstore.String(d, "phone"),
		Tags:       docstore.Strings(d, "tags"),
		DND:        docstore.Bool(d, "dnd"),
		Source:     docstore.String(d, "source"),
		DateAdded:  docstore.String(d, "dateAdded"),
		UpdatedAt:  docstore.Time(d, "updatedAt"),
	}
	if fields, ok := d["customFields"].([]interface{}); ok {
		for _, f := range fields {
			if m, ok := f.(map[string]interface{}); ok {
				c.CustomFields = append(c.CustomFields, m)
			}
		}
	}
	return c
}
