package session

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/edusuite/presence/core"
)

// GeoAnchor is the presenter's recorded position at open time, used as
// a soft proximity reference for attendance scans.
type GeoAnchor struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ClassSession is one attendance window owned by a presenter.
// Lifecycle: CREATED -> ACTIVE -> ENDED; ENDED is terminal and the row
// is immutable once EndedAt is set.
type ClassSession struct {
	ID            string     `json:"id" db:"id"`
	PresenterID   string     `json:"presenter_id" db:"presenter_id"`
	Subject       string     `json:"subject" db:"subject"`
	Label         string     `json:"label" db:"label"`
	Token         string     `json:"-" db:"token"`
	Anchor        *GeoAnchor `json:"geo_anchor,omitempty"`
	WindowSeconds int        `json:"window_seconds" db:"window_seconds"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"` // UTC
	EndedAt       null.Time  `json:"ended_at,omitempty" db:"ended_at"`
	Active        bool       `json:"active" db:"active"`
}

// OpenAt reports whether attendance may still be marked at t. Window
// expiry is derived, never stored: a lapsed session is not open even
// while Active is nominally true.
func (s ClassSession) OpenAt(t time.Time) bool {
	if !s.Active || s.EndedAt.Valid {
		return false
	}
	deadline := s.StartedAt.Add(time.Duration(s.WindowSeconds) * time.Second)
	return !t.After(deadline)
}

// NewSession contains the information needed to open a ClassSession.
type NewSession struct {
	Subject       string   `json:"subject" validate:"required"`
	Label         string   `json:"label" validate:"required"`
	Lat           *float64 `json:"lat" validate:"omitempty,latitude,required_with=Lon"`
	Lon           *float64 `json:"lon" validate:"omitempty,longitude,required_with=Lat"`
	WindowSeconds int      `json:"window_seconds" validate:"omitempty,min=30,max=86400"`
}

func (ns *NewSession) Validate() error {
	ns.Subject = core.CleanString(ns.Subject)
	ns.Label = core.CleanString(ns.Label)
	return core.Validate.Struct(ns)
}

func (ns *NewSession) anchor() *GeoAnchor {
	if ns.Lat == nil || ns.Lon == nil {
		return nil
	}
	return &GeoAnchor{Lat: *ns.Lat, Lon: *ns.Lon}
}
