package identity

import "time"

// Role scopes an identity token to the side of the protocol it may
// drive: presenters open sessions, attendees mark themselves present.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleAttendee  Role = "attendee"
)

func (r Role) Valid() bool {
	return r == RolePresenter || r == RoleAttendee
}

// Identity binds a principal's device to an opaque bearer token.
// Exactly one token per (principal, role) is active at a time; reissuing
// deactivates the previous one.
type Identity struct {
	PrincipalID string    `json:"principal_id" db:"principal_id"`
	Role        Role      `json:"role" db:"role"`
	Token       string    `json:"token" db:"token"`
	IssuedAt    time.Time `json:"issued_at" db:"issued_at"` // UTC
	Active      bool      `json:"active" db:"active"`
}
