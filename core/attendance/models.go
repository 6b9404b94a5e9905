package attendance

import (
	"time"

	"github.com/edusuite/presence/core"
)

// Record is the append-only fact that an attendee was present in a
// session. At most one exists per (SessionID, AttendeeID); it is never
// updated or deleted.
type Record struct {
	SessionID  string    `json:"session_id" db:"session_id"`
	AttendeeID string    `json:"attendee_id" db:"attendee_id"`
	MarkedAt   time.Time `json:"marked_at" db:"marked_at"` // UTC
	GeoValid   bool      `json:"geo_valid" db:"geo_valid"`
	DeviceInfo string    `json:"device_info" db:"device_info"`
	SourceAddr string    `json:"source_addr" db:"source_addr"`
}

// InsertOutcome tags the result of the constrained record insert. The
// duplicate case is detected by the storage layer's uniqueness
// constraint, never by a prior read.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

// Scan is the payload submitted by an attendee device after decoding a
// session code. Coordinates are optional: a device that cannot acquire
// a fix in time submits without them.
type Scan struct {
	SessionToken  string   `json:"session_token" validate:"required"`
	IdentityToken string   `json:"identity_token" validate:"required"`
	Lat           *float64 `json:"lat" validate:"omitempty,latitude,required_with=Lon"`
	Lon           *float64 `json:"lon" validate:"omitempty,longitude,required_with=Lat"`
	DeviceInfo    string   `json:"device_info"`
	SourceAddr    string   `json:"-"`
}

func (s *Scan) Validate() error {
	s.SessionToken = core.CleanString(s.SessionToken)
	s.IdentityToken = core.CleanString(s.IdentityToken)
	s.DeviceInfo = core.CleanString(s.DeviceInfo)
	return core.Validate.Struct(s)
}

// Result is the caller-facing outcome of an accepted scan. GeoValid =
// false is a soft warning, not a rejection.
type Result struct {
	Accepted bool   `json:"accepted"`
	GeoValid bool   `json:"geo_valid"`
	Record   Record `json:"record"`
}

// Stats is the report projection over a session's records.
type Stats struct {
	SessionID  string  `json:"session_id"`
	Total      int     `json:"total"`
	GeoFlagged int     `json:"geo_flagged"`
	GeoRate    float64 `json:"geo_rate"`
}
