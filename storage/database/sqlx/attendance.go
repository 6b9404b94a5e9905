package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/edusuite/presence/core/attendance"
)

// uniqueViolation is the Postgres error code raised when the
// (session_id, attendee_id) primary key is hit by a concurrent or
// repeated insert.
const uniqueViolation = "23505"

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// InsertRecord performs the single constrained write at the heart of
// the protocol. The duplicate case is the constraint violation itself;
// there is no prior existence check to race against.
func (repo *attendanceRepository) InsertRecord(ctx context.Context, rec attendance.Record) (attendance.InsertOutcome, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO attendance_record (session_id, attendee_id, marked_at, geo_valid, device_info, source_addr)
		 VALUES (:session_id, :attendee_id, :marked_at, :geo_valid, :device_info, :source_addr)`,
		rec,
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return attendance.AlreadyExists, nil
		}
		return 0, errors.Wrap(err, "inserting attendance record")
	}
	return attendance.Inserted, nil
}

func (repo *attendanceRepository) QueryRecordsBySession(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	recs := make([]attendance.Record, 0)
	err := repo.db.SelectContext(ctx, &recs,
		`SELECT session_id, attendee_id, marked_at, geo_valid, device_info, source_addr
		 FROM attendance_record WHERE session_id = $1 ORDER BY marked_at`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return recs, nil
}

func (repo *attendanceRepository) CountRecordsForSession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM attendance_record WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "counting attendance records")
	}
	return count, nil
}
