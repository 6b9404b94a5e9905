package inmemdb

import (
	"context"

	"github.com/edusuite/presence/core/identity"
)

type identityRepository struct {
	db *identityTable
}

func NewIdentityRepository(db *DB) identity.Repository {
	return &identityRepository{db: db.identity}
}

func (repo *identityRepository) SaveIdentity(_ context.Context, ident identity.Identity) (identity.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, row := range repo.db.rows {
		if row.PrincipalID == ident.PrincipalID && row.Role == ident.Role && row.Active {
			repo.db.rows[i].Active = false
		}
	}
	repo.db.rows = append(repo.db.rows, ident)
	return ident, nil
}

func (repo *identityRepository) GetActiveIdentityByToken(_ context.Context, token string) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.db.rows {
		if row.Token == token && row.Active {
			return row, nil
		}
	}
	return identity.Identity{}, identity.ErrNotIssued
}

func (repo *identityRepository) DeactivateIdentity(_ context.Context, principalID string, role identity.Role) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, row := range repo.db.rows {
		if row.PrincipalID == principalID && row.Role == role && row.Active {
			repo.db.rows[i].Active = false
		}
	}
	return nil
}
