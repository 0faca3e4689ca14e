package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ghl-backend/pkg/anythingllm"
	"ghl-backend/pkg/apperrors"

	"github.com/rs/zerolog"
)

const defaultPrompt = "default"

// WorkspaceUsecase mirrors a location and its users into the AI-workspace provider.
// The location becomes a provider account and every platform user gets a workspace.
type WorkspaceUsecase interface {
	// Provision is idempotent. Existing accounts and workspaces are reused.
	Provision(ctx context.Context, locationID string, userIDs []string) (*Provisioned, error)

	// Cleanup deletes the provider account of a location and the workspaces of
	// its users. It keeps going after failures and returns them joined.
	Cleanup(ctx context.Context, locationID string, userIDs []string) error
}

// Provider is the subset of the AnythingLLM admin API used here.
type Provider interface {
	FindUserByUsername(ctx context.Context, username string) (*anythingllm.User, error)
	CreateUser(ctx context.Context, username, password string) (*anythingllm.User, error)
	DeleteUser(ctx context.Context, id int) error
	ListWorkspaces(ctx context.Context) ([]anythingllm.Workspace, error)
	CreateWorkspace(ctx context.Context, s anythingllm.WorkspaceSettings) (*anythingllm.Workspace, error)
	AssignUsers(ctx context.Context, slug string, userIDs []int) error
	DeleteWorkspace(ctx context.Context, slug string) error
}

// PasswordDeriver yields a stable secret per location.
type PasswordDeriver interface {
	DerivePassword(label string) (string, error)
}

type Provisioned struct {
	AccountID  int
	Workspaces []string
}

type workspaceUsecase struct {
	provider  Provider
	passwords PasswordDeriver
	logger    zerolog.Logger
}

func NewWorkspaceUsecase(provider Provider, passwords PasswordDeriver, logger zerolog.Logger) WorkspaceUsecase {
	return &workspaceUsecase{provider: provider, passwords: passwords, logger: logger}
}

func accountName(locationID string) string {
	return strings.ToLower(locationID)
}

func workspaceSlug(userID string) string {
	return strings.ToLower(userID)
}

func (u *workspaceUsecase) Provision(ctx context.Context, locationID string, userIDs []string) (*Provisioned, error) {
	if locationID == "" {
		return nil, fmt.Errorf("provision workspaces: %w", apperrors.ErrInvalidArgument)
	}

	account, err := u.ensureAccount(ctx, locationID)
	if err != nil {
		return nil, err
	}

	existing, err := u.provider.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, ws := range existing {
		known[strings.ToLower(ws.Slug)] = true
	}

	result := &Provisioned{AccountID: account.ID}
	var errs []error
	for _, userID := range userIDs {
		slug := workspaceSlug(userID)
		if !known[slug] {
			ws, err := u.provider.CreateWorkspace(ctx, anythingllm.WorkspaceSettings{
				Name:                 slug,
				Prompt:               defaultPrompt,
				QueryRefusalResponse: defaultPrompt,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("workspace for user %s: %w", userID, err))
				continue
			}
			slug = ws.Slug
			known[slug] = true
		}
		if err := u.provider.AssignUsers(ctx, slug, []int{account.ID}); err != nil {
			errs = append(errs, fmt.Errorf("assign workspace %s: %w", slug, err))
			continue
		}
		result.Workspaces = append(result.Workspaces, slug)
	}

	u.logger.Info().
		Str("location_id", locationID).
		Int("account_id", account.ID).
		Int("workspaces", len(result.Workspaces)).
		Int("failed", len(errs)).
		Msg("workspaces provisioned")
	return result, errors.Join(errs...)
}

func (u *workspaceUsecase) ensureAccount(ctx context.Context, locationID string) (*anythingllm.User, error) {
	name := accountName(locationID)
	account, err := u.provider.FindUserByUsername(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find provider account %s: %w", name, err)
	}
	if account != nil {
		return account, nil
	}

	password, err := u.passwords.DerivePassword(locationID)
	if err != nil {
		return nil, err
	}
	account, err = u.provider.CreateUser(ctx, name, password)
	if err != nil {
		return nil, fmt.Errorf("create provider account %s: %w", name, err)
	}
	return account, nil
}

func (u *workspaceUsecase) Cleanup(ctx context.Context, locationID string, userIDs []string) error {
	var errs []error

	account, err := u.provider.FindUserByUsername(ctx, accountName(locationID))
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("find provider account: %w", err))
	case account != nil:
		if err := u.provider.DeleteUser(ctx, account.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete provider account %d: %w", account.ID, err))
		}
	}

	for _, userID := range userIDs {
		if err := u.provider.DeleteWorkspace(ctx, workspaceSlug(userID)); err != nil {
			errs = append(errs, fmt.Errorf("delete workspace %s: %w", workspaceSlug(userID), err))
		}
	}

	if len(errs) > 0 {
		u.logger.Warn().Str("location_id", locationID).Int("failures", len(errs)).Msg("provider cleanup incomplete")
	}
	return errors.Join(errs...)
}
