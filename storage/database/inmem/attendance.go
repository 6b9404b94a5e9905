package inmemdb

import (
	"context"
	"sort"

	"github.com/edusuite/presence/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

// InsertRecord holds the table lock across the existence check and the
// write, the in-memory equivalent of the SQL uniqueness constraint.
func (repo *attendanceRepository) InsertRecord(_ context.Context, rec attendance.Record) (attendance.InsertOutcome, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := recordKey{sessionID: rec.SessionID, attendeeID: rec.AttendeeID}
	if _, ok := repo.db.rows[key]; ok {
		return attendance.AlreadyExists, nil
	}
	repo.db.rows[key] = rec
	return attendance.Inserted, nil
}

func (repo *attendanceRepository) QueryRecordsBySession(_ context.Context, sessionID string) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]attendance.Record, 0)
	for key, rec := range repo.db.rows {
		if key.sessionID == sessionID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].MarkedAt.Before(recs[j].MarkedAt) })
	return recs, nil
}

func (repo *attendanceRepository) CountRecordsForSession(_ context.Context, sessionID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for key := range repo.db.rows {
		if key.sessionID == sessionID {
			count++
		}
	}
	return count, nil
}
