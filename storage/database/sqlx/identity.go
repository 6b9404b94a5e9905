package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edusuite/presence/core/identity"
)

type identityRepository struct {
	db *sqlx.DB
}

var _ identity.Repository = (*identityRepository)(nil)

func NewIdentityRepository(db *sqlx.DB) *identityRepository {
	return &identityRepository{db: db}
}

func (repo *identityRepository) SaveIdentity(ctx context.Context, ident identity.Identity) (identity.Identity, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	// deactivate the superseded token; single-writer per principal
	_, err = tx.ExecContext(ctx,
		`UPDATE identity SET active = FALSE WHERE principal_id = $1 AND role = $2 AND active`,
		ident.PrincipalID, ident.Role,
	)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "deactivating previous token")
	}

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO identity (principal_id, role, token, issued_at, active)
		 VALUES (:principal_id, :role, :token, :issued_at, :active)`,
		ident,
	)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "inserting identity")
	}

	if err = tx.Commit(); err != nil {
		return identity.Identity{}, errors.Wrap(err, "committing identity")
	}
	return ident, nil
}

func (repo *identityRepository) GetActiveIdentityByToken(ctx context.Context, token string) (identity.Identity, error) {
	var ident identity.Identity
	err := repo.db.GetContext(ctx, &ident,
		`SELECT principal_id, role, token, issued_at, active FROM identity WHERE token = $1 AND active`,
		token,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return identity.Identity{}, identity.ErrNotIssued
		}
		return identity.Identity{}, errors.Wrap(err, "getting identity by token")
	}
	return ident, nil
}

func (repo *identityRepository) DeactivateIdentity(ctx context.Context, principalID string, role identity.Role) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE identity SET active = FALSE WHERE principal_id = $1 AND role = $2 AND active`,
		principalID, role,
	)
	return errors.Wrap(err, "deactivating identity")
}
