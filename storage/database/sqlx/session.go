package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edusuite/presence/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

// sessionRow maps the class_session table; the anchor columns are
// nullable and folded into session.GeoAnchor.
type sessionRow struct {
	ID            string       `db:"id"`
	PresenterID   string       `db:"presenter_id"`
	Subject       string       `db:"subject"`
	Label         string       `db:"label"`
	Token         string       `db:"token"`
	AnchorLat     null.Float64 `db:"anchor_lat"`
	AnchorLon     null.Float64 `db:"anchor_lon"`
	WindowSeconds int          `db:"window_seconds"`
	StartedAt     time.Time    `db:"started_at"`
	EndedAt       null.Time    `db:"ended_at"`
	Active        bool         `db:"active"`
}

func (row sessionRow) toSession() session.ClassSession {
	sess := session.ClassSession{
		ID:            row.ID,
		PresenterID:   row.PresenterID,
		Subject:       row.Subject,
		Label:         row.Label,
		Token:         row.Token,
		WindowSeconds: row.WindowSeconds,
		StartedAt:     row.StartedAt.UTC(),
		EndedAt:       row.EndedAt,
		Active:        row.Active,
	}
	if row.AnchorLat.Valid && row.AnchorLon.Valid {
		sess.Anchor = &session.GeoAnchor{Lat: row.AnchorLat.Float64, Lon: row.AnchorLon.Float64}
	}
	return sess
}

func newSessionRow(sess session.ClassSession) sessionRow {
	row := sessionRow{
		ID:            sess.ID,
		PresenterID:   sess.PresenterID,
		Subject:       sess.Subject,
		Label:         sess.Label,
		Token:         sess.Token,
		WindowSeconds: sess.WindowSeconds,
		StartedAt:     sess.StartedAt,
		EndedAt:       sess.EndedAt,
		Active:        sess.Active,
	}
	if sess.Anchor != nil {
		row.AnchorLat = null.Float64From(sess.Anchor.Lat)
		row.AnchorLon = null.Float64From(sess.Anchor.Lon)
	}
	return row
}

const sessionColumns = `id, presenter_id, subject, label, token, anchor_lat, anchor_lon, window_seconds, started_at, ended_at, active`

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.ClassSession) (session.ClassSession, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO class_session (`+sessionColumns+`)
		 VALUES (:id, :presenter_id, :subject, :label, :token, :anchor_lat, :anchor_lon, :window_seconds, :started_at, :ended_at, :active)`,
		newSessionRow(sess),
	)
	if err != nil {
		return session.ClassSession{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.ClassSession, error) {
	return repo.get(ctx, `SELECT `+sessionColumns+` FROM class_session WHERE id = $1`, id)
}

func (repo *sessionRepository) GetSessionByToken(ctx context.Context, token string) (session.ClassSession, error) {
	return repo.get(ctx, `SELECT `+sessionColumns+` FROM class_session WHERE token = $1`, token)
}

func (repo *sessionRepository) get(ctx context.Context, query, arg string) (session.ClassSession, error) {
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return session.ClassSession{}, session.ErrNotFound
		}
		return session.ClassSession{}, errors.Wrap(err, "getting session")
	}
	return row.toSession(), nil
}

// EndSession only touches rows not yet ended; the ended row is
// immutable, a second close reads back the stored state.
func (repo *sessionRepository) EndSession(ctx context.Context, id string, endedAt time.Time) (session.ClassSession, error) {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE class_session SET ended_at = $2, active = FALSE WHERE id = $1 AND ended_at IS NULL`,
		id, endedAt,
	)
	if err != nil {
		return session.ClassSession{}, errors.Wrap(err, "ending session")
	}
	return repo.GetSessionByID(ctx, id)
}

func (repo *sessionRepository) DeactivateLapsed(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE class_session SET active = FALSE
		 WHERE active AND ended_at IS NULL
		   AND started_at + make_interval(secs => window_seconds) < $1`,
		cutoff,
	)
	if err != nil {
		return 0, errors.Wrap(err, "deactivating lapsed sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting lapsed sessions")
	}
	return int(n), nil
}
