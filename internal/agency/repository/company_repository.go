package repository

import (
	"context"
	"fmt"
	"time"

	"ghl-backend/internal/agency/domain"
	"ghl-backend/pkg/docstore"
)

const companiesCollection = "companies"

type CompanyRepository interface {
	// Upsert creates the company or merges the non-empty fields into the existing record.
	Upsert(ctx context.Context, c domain.Company) (created bool, err error)
	FindByID(ctx context.Context, companyID string) (*domain.Company, error)
	Delete(ctx context.Context, companyID string) error
}

type companyRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewCompanyRepository(store docstore.Store) CompanyRepository {
	return &companyRepository{store: store, now: time.Now}
}

func (r *companyRepository) Upsert(ctx context.Context, c domain.Company) (bool, error) {
	existing, err := r.store.Get(ctx, companiesCollection, c.CompanyID)
	if err != nil {
		return false, err
	}

	now := r.now()
	doc := encode(c)
	doc["updatedAt"] = now

	if existing == nil {
		doc["createdAt"] = now
		if _, ok := doc["companyName"]; !ok {
			doc["companyName"] = "Unknown Company"
		}
		if _, ok := doc["isWhitelabelCompany"]; !ok {
			doc["isWhitelabelCompany"] = false
		}
		if err := r.store.Set(ctx, companiesCollection, c.CompanyID, doc); err != nil {
			return false, fmt.Errorf("create company %s: %w", c.CompanyID, err)
		}
		return true, nil
	}

	if err := r.store.Merge(ctx, companiesCollection, c.CompanyID, doc); err != nil {
		return false, fmt.Errorf("update company %s: %w", c.CompanyID, err)
	}
	return false, nil
}

func (r *companyRepository) FindByID(ctx context.Context, companyID string) (*domain.Company, error) {
	doc, err := r.store.Get(ctx, companiesCollection, companyID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	c := decode(companyID, doc)
	return &c, nil
}

func (r *companyRepository) Delete(ctx context.Context, companyID string) error {
	return r.store.Delete(ctx, companiesCollection, companyID)
}

// encode only writes fields that carry a value so a merge never blanks them.
func encode(c domain.Company) docstore.Doc {
	doc := docstore.Doc{"companyId": c.CompanyID}
	if c.IsWhitelabelCompany {
		doc["isWhitelabelCompany"] = true
	}
	set := func(k, v string) {
		if v != "" {
			doc[k] = v
		}
	}
	set("appId", c.AppID)
	set("userId", c.UserID)
	set("planId", c.PlanID)
	set("companyName", c.CompanyName)
	set("installType", c.InstallType)
	set("token_type", c.TokenType)
	set("scope", c.Scope)
	set("userType", c.UserType)
	if c.ExpiresIn > 0 {
		doc["expires_in"] = c.ExpiresIn
	}
	if c.ApprovedLocations != nil {
		doc["approvedLocations"] = c.ApprovedLocations
	}
	if c.Trial != nil {
		doc["trial"] = map[string]interface{}{
			"onTrial":        c.Trial.OnTrial,
			"trialDuration":  c.Trial.TrialDuration,
			"trialStartDate": c.Trial.TrialStart,
		}
	}
	return doc
}

func decode(id string, d docstore.Doc) domain.Company {
	c := domain.Company{
		CompanyID:           id,
		AppID:               docstore.String(d, "appId"),
		UserID:              docstore.String(d, "userId"),
		PlanID:              docstore.String(d, "planId"),
		CompanyName:         docstore.String(d, "companyName"),
		InstallType:         docstore.String(d, "installType"),
		IsWhitelabelCompany: docstore.Bool(d, "isWhitelabelCompany"),
		TokenType:           docstore.String(d, "token_type"),
		ExpiresIn:           docstore.Int64(d, "expires_in"),
		Scope:               docstore.String(d, "scope"),
		UserType:            docstore.String(d, "userType"),
		ApprovedLocations:   docstore.Strings(d, "approvedLocations"),
		CreatedAt:           docstore.Time(d, "createdAt"),
		UpdatedAt:           docstore.Time(d, "updatedAt"),
	}
	if trial := docstore.Map(d, "trial"); trial != nil {
		c.Trial = &domain.Trial{
			OnTrial:       docstore.Bool(trial, "onTrial"),
			TrialDuration: docstore.Int64(trial, "trialDuration"),
			TrialStart:    docstore.String(trial, "trialStartDate"),
		}
	}
	return c
}
