package inmemdb

import (
	"sync"

	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

// DB is an in-memory stand-in for the relational store, used in tests
// and local dev. Each table enforces the same uniqueness constraints
// the SQL schema does, under its own lock.
type (
	DB struct {
		identity   *identityTable
		session    *sessionTable
		attendance *attendanceTable
	}

	identityTable struct {
		rows  []identity.Identity
		mutex sync.RWMutex
	}

	sessionTable struct {
		rows  map[string]*session.ClassSession // id -> session
		mutex sync.RWMutex
	}

	attendanceTable struct {
		rows  map[recordKey]attendance.Record
		mutex sync.RWMutex
	}

	recordKey struct {
		sessionID  string
		attendeeID string
	}
)

func Open() (*DB, error) {
	db := &DB{
		identity:   &identityTable{},
		session:    &sessionTable{rows: make(map[string]*session.ClassSession)},
		attendance: &attendanceTable{rows: make(map[recordKey]attendance.Record)},
	}
	return db, nil
}
