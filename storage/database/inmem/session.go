package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/edusuite/presence/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.ClassSession) (session.ClassSession, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := sess
	repo.db.rows[sess.ID] = &stored
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string) (session.ClassSession, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.rows[id]; ok {
		return *sess, nil
	}
	return session.ClassSession{}, session.ErrNotFound
}

func (repo *sessionRepository) GetSessionByToken(_ context.Context, token string) (session.ClassSession, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.rows {
		if sess.Token == token {
			return *sess, nil
		}
	}
	return session.ClassSession{}, session.ErrNotFound
}

func (repo *sessionRepository) EndSession(_ context.Context, id string, endedAt time.Time) (session.ClassSession, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.rows[id]
	if !ok {
		return session.ClassSession{}, session.ErrNotFound
	}
	// ended rows are immutable
	if !sess.EndedAt.Valid {
		sess.EndedAt = null.TimeFrom(endedAt)
		sess.Active = false
	}
	return *sess, nil
}

func (repo *sessionRepository) DeactivateLapsed(_ context.Context, cutoff time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, sess := range repo.db.rows {
		if sess.Active && !sess.EndedAt.Valid && !sess.OpenAt(cutoff) {
			sess.Active = false
			n++
		}
	}
	return n, nil
}
