package repository

import (
	"context"
	"fmt"
	"time"

	"ghl-backend/internal/token/domain"
	"ghl-backend/pkg/apperrors"
	"ghl-backend/pkg/docstore"

	"github.com/rs/zerolog"
)

const tokensCollection = "tokens"

// ListPageSize is how many tokens ListByKind reads per query.
const ListPageSize = 1000

// TokenRepository persists tokens with secrets encrypted at rest.
type TokenRepository interface {
	// Upsert creates the record for (companyId, locationId) or merges p into it.
	Upsert(ctx context.Context, p domain.Patch) error

	// Get returns the decrypted token or apperrors.ErrNotFound.
	Get(ctx context.Context, companyID string, kind domain.Kind, locationID string) (*domain.Token, error)

	// Remove deletes every matching record. companyID may be empty for Location tokens.
	Remove(ctx context.Context, companyID string, kind domain.Kind, locationID string) error

	// RemoveByCompany deletes the Company token and every Location token of a company.
	RemoveByCompany(ctx context.Context, companyID string) error

	// ListByKind returns up to limit decrypted tokens of one kind. limit <= 0
	// pages through all of them.
	ListByKind(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Token, error)
}

// Cipher is the encryption the repository applies to secrets.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(data string) (string, error)
}

type tokenRepository struct {
	store    docstore.Store
	cipher   Cipher
	logger   zerolog.Logger
	now      func() time.Time
	pageSize int
}

func NewTokenRepository(store docstore.Store, cipher Cipher, logger zerolog.Logger) TokenRepository {
	return &tokenRepository{
		store:    store,
		cipher:   cipher,
		logger:   logger,
		pageSize: ListPageSize,
		now:      time.Now,
	}
}

func docID(companyID, storedLocationID string) string {
	return companyID + "_" + storedLocationID
}

func (r *tokenRepository) Upsert(ctx context.Context, p domain.Patch) error {
	if p.CompanyID == "" || !p.Kind.Valid() {
		return fmt.Errorf("upsert token: companyId and userType are required: %w", apperrors.ErrInvalidArgument)
	}
	if p.Kind == domain.KindLocation && p.LocationID == "" {
		return fmt.Errorf("upsert token: locationId is required for Location tokens: %w", apperrors.ErrInvalidArgument)
	}

	locationID := domain.StoredLocationID(p.Kind, p.LocationID)
	id := docID(p.CompanyID, locationID)

	fields, err := r.encodePatch(p)
	if err != nil {
		return err
	}
	now := r.now()
	fields["companyId"] = p.CompanyID
	fields["locationId"] = locationID
	fields["userType"] = string(p.Kind)
	fields["encrypted"] = true
	fields["updatedAt"] = now

	existing, err := r.store.Get(ctx, tokensCollection, id)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", id, err)
	}
	if existing == nil {
		fields["createdAt"] = now
		if err := r.store.Set(ctx, tokensCollection, id, fields); err != nil {
			return fmt.Errorf("create token %s: %w", id, err)
		}
		r.logger.Debug().Str("company_id", p.CompanyID).Str("location_id", locationID).Msg("token created")
		return nil
	}

	if err := r.store.Merge(ctx, tokensCollection, id, fields); err != nil {
		return fmt.Errorf("update token %s: %w", id, err)
	}
	r.logger.Debug().Str("company_id", p.CompanyID).Str("location_id", locationID).Msg("token updated")
	return nil
}

func (r *tokenRepository) encodePatch(p domain.Patch) (docstore.Doc, error) {
	fields := docstore.Doc{}
	if p.AccessToken != nil {
		enc, err := r.encrypt(*p.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt access token: %w", err)
		}
		fields["access_token"] = enc
	}
	if p.RefreshToken != nil {
		enc, err := r.encrypt(*p.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
		fields["refresh_token"] = enc
	}
	if p.TokenType != nil {
		fields["token_type"] = *p.TokenType
	}
	if p.ExpiresIn != nil {
		fields["expires_in"] = *p.ExpiresIn
	}
	if p.Scope != nil {
		fields["scope"] = *p.Scope
	}
	if p.UserID != nil {
		fields["userId"] = *p.UserID
	}
	if p.PlanID != nil {
		fields["planId"] = *p.PlanID
	}
	if p.ApprovedLocations != nil {
		fields["approvedLocations"] = append([]string(nil), p.ApprovedLocations...)
	}
	return fields, nil
}

func (r *tokenRepository) encrypt(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return r.cipher.Encrypt(s)
}

func (r *tokenRepository) decrypt(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return r.cipher.Decrypt(s)
}

func (r *tokenRepository) Get(ctx context.Context, companyID string, kind domain.Kind, locationID string) (*domain.Token, error) {
	if companyID == "" || !kind.Valid() {
		return nil, fmt.Errorf("get token: companyId and userType are required: %w", apperrors.ErrInvalidArgument)
	}
	if kind == domain.KindLocation && locationID == "" {
		return nil, fmt.Errorf("get token: locationId is required for Location tokens: %w", apperrors.ErrInvalidArgument)
	}

	id := docID(companyID, domain.StoredLocationID(kind, locationID))
	doc, err := r.store.Get(ctx, tokensCollection, id)
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", id, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s token for company %s location %s: %w", kind, companyID, locationID, apperrors.ErrNotFound)
	}
	return r.decode(doc)
}

func (r *tokenRepository) Remove(ctx context.Context, companyID string, kind domain.Kind, locationID string) error {
	if !kind.Valid() {
		return fmt.Errorf("remove token: unknown userType %q: %w", kind, apperrors.ErrInvalidArgument)
	}
	if kind == domain.KindCompany && companyID == "" {
		return fmt.Errorf("remove token: companyId is required: %w", apperrors.ErrInvalidArgument)
	}
	if kind == domain.KindLocation && locationID == "" {
		return fmt.Errorf("remove token: locationId is required: %w", apperrors.ErrInvalidArgument)
	}

	filters := []docstore.Filter{
		docstore.Eq("userType", string(kind)),
		docstore.Eq("locationId", domain.StoredLocationID(kind, locationID)),
	}
	if companyID != "" {
		filters = append(filters, docstore.Eq("companyId", companyID))
	}
	return r.deleteMatching(ctx, filters)
}

func (r *tokenRepository) RemoveByCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return fmt.Errorf("remove company tokens: %w", apperrors.ErrInvalidArgument)
	}
	return r.deleteMatching(ctx, []docstore.Filter{docstore.Eq("companyId", companyID)})
}

func (r *tokenRepository) deleteMatching(ctx context.Context, filters []docstore.Filter) error {
	snaps, err := r.store.Query(ctx, tokensCollection, filters, 0)
	if err != nil {
		return fmt.Errorf("find tokens: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}
	if len(snaps) > 1 {
		r.logger.Warn().Int("matches", len(snaps)).Msg("multiple token records matched, deleting all")
	}

	w := docstore.NewBatchWriter(r.store)
	for _, s := range snaps {
		if err := w.Delete(ctx, tokensCollection, s.ID); err != nil {
			return err
		}
	}
	return w.Flush(ctx)
}

func (r *tokenRepository) ListByKind(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Token, error) {
	filters := []docstore.Filter{docstore.Eq("userType", string(kind))}

	var tokens []*domain.Token
	after := ""
	for {
		size := r.pageSize
		if limit > 0 && limit-len(tokens) < size {
			size = limit - len(tokens)
		}
		snaps, err := r.store.QueryPage(ctx, tokensCollection, filters, after, size)
		if err != nil {
			return nil, fmt.Errorf("list %s tokens: %w", kind, err)
		}

		for _, s := range snaps {
			t, err := r.decode(s.Data)
			if err != nil {
				r.logger.Error().Err(err).Str("token_id", s.ID).Msg("skipping undecryptable token")
				continue
			}
			tokens = append(tokens, t)
		}

		if len(snaps) < size || (limit > 0 && len(tokens) >= limit) {
			return tokens, nil
		}
		after = snaps[len(snaps)-1].ID
	}
}

func (r *tokenRepository) decode(d docstore.Doc) (*domain.Token, error) {
	access, err := r.decrypt(docstore.String(d, "access_token"))
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := r.decrypt(docstore.String(d, "refresh_token"))
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	t := &domain.Token{
		AccessToken:       access,
		RefreshToken:      refresh,
		TokenType:         docstore.String(d, "token_type"),
		ExpiresIn:         docstore.Int64(d, "expires_in"),
		Scope:             docstore.String(d, "scope"),
		Kind:              domain.Kind(docstore.String(d, "userType")),
		CompanyID:         docstore.String(d, "companyId"),
		UserID:            docstore.String(d, "userId"),
		PlanID:            docstore.String(d, "planId"),
		ApprovedLocations: docstore.Strings(d, "approvedLocations"),
		CreatedAt:         docstore.Time(d, "createdAt"),
		UpdatedAt:         docstore.Time(d, "updatedAt"),
	}
	if loc := docstore.String(d, "locationId"); loc != domain.NoLocationID {
		t.LocationID = loc
	}
	return t, nil
}
