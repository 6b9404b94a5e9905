package identity

import (
	"context"
	"errors"
	"time"

	"github.com/edusuite/presence/core"
)

var (
	// ErrNotIssued means no active identity token matches; the caller
	// must issue one before opening sessions or marking attendance.
	ErrNotIssued = errors.New("identity not issued")

	// nowFunc is mockable for tests.
	nowFunc = time.Now
)

type (
	Repository interface {
		// SaveIdentity persists ident as the active identity for its
		// (principal, role), deactivating any previous token in the
		// same write.
		SaveIdentity(ctx context.Context, ident Identity) (Identity, error)
		// GetActiveIdentityByToken resolves token only if it is the
		// current active token of its owner; ErrNotIssued otherwise.
		GetActiveIdentityByToken(ctx context.Context, token string) (Identity, error)
		DeactivateIdentity(ctx context.Context, principalID string, role Role) error
	}

	Service struct {
		repo Repository
		log  core.Logger
	}
)

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Issue mints a fresh token for the principal, superseding any previous
// one. Rotation only affects future uses of the old token; a session
// already opened under it stays valid.
func (svc *Service) Issue(ctx context.Context, principalID string, role Role) (Identity, error) {
	if !role.Valid() {
		return Identity{}, ErrNotIssued
	}
	token, err := generateToken()
	if err != nil {
		return Identity{}, err
	}
	ident := Identity{
		PrincipalID: principalID,
		Role:        role,
		Token:       token,
		IssuedAt:    nowFunc().UTC(),
		Active:      true,
	}
	return svc.repo.SaveIdentity(ctx, ident)
}

// Resolve returns the owning identity only when token is currently
// active.
func (svc *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNotIssued
	}
	return svc.repo.GetActiveIdentityByToken(ctx, token)
}

// Revoke force-deactivates the principal's current token without
// issuing a replacement. Used by the admin CLI.
func (svc *Service) Revoke(ctx context.Context, principalID string, role Role) error {
	return svc.repo.DeactivateIdentity(ctx, principalID, role)
}
