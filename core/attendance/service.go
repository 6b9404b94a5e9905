package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

var (
	// ErrDuplicate means this attendee is already marked for this
	// session; "you're already marked", not a hard failure.
	ErrDuplicate = errors.New("attendance already marked")

	// nowFunc is mockable for tests.
	nowFunc = time.Now
)

type (
	Repository interface {
		// InsertRecord creates the record under the (session, attendee)
		// uniqueness constraint. The check and the insert are a single
		// atomic operation; AlreadyExists is reported via the
		// constraint, never via a separate read.
		InsertRecord(ctx context.Context, rec Record) (InsertOutcome, error)
		QueryRecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
		CountRecordsForSession(ctx context.Context, sessionID string) (int, error)
	}

	// IdentityResolver and SessionResolver are the slices of their
	// services the validator consumes.
	IdentityResolver interface {
		Resolve(ctx context.Context, token string) (identity.Identity, error)
	}

	SessionResolver interface {
		ResolveOpen(ctx context.Context, token string) (session.ClassSession, error)
	}

	Service struct {
		repo     Repository
		ids      IdentityResolver
		sessions SessionResolver
		bus      *event.Bus
		conf     *core.Config
		log      core.Logger
	}
)

func NewService(
	repo Repository,
	ids IdentityResolver,
	sessions SessionResolver,
	bus *event.Bus,
	conf *core.Config,
	log core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		ids:      ids,
		sessions: sessions,
		bus:      bus,
		conf:     conf,
		log:      log,
	}
}

// SetSessionResolver breaks the construction cycle with the session
// service, which consumes this service as its RecordCounter. Must be
// called before Mark.
func (svc *Service) SetSessionResolver(sessions SessionResolver) {
	svc.sessions = sessions
}

// Mark validates a scan and records the attendee's presence exactly
// once. Each failure mode is distinct: identity.ErrNotIssued,
// session.ErrNotFound, session.ErrWindowExpired, ErrDuplicate. Anything
// else is an infrastructure failure, surfaced opaquely so the caller
// does not conclude the attendance was definitively rejected.
func (svc *Service) Mark(ctx context.Context, scan Scan) (Result, error) {
	ident, err := svc.ids.Resolve(ctx, scan.IdentityToken)
	if err != nil {
		return Result{}, err
	}
	if ident.Role != identity.RoleAttendee {
		return Result{}, identity.ErrNotIssued
	}

	sess, err := svc.sessions.ResolveOpen(ctx, scan.SessionToken)
	if err != nil {
		return Result{}, err
	}

	rec := Record{
		SessionID:  sess.ID,
		AttendeeID: ident.PrincipalID,
		MarkedAt:   nowFunc().UTC(),
		GeoValid:   svc.geoValid(sess, scan),
		DeviceInfo: scan.DeviceInfo,
		SourceAddr: scan.SourceAddr,
	}

	outcome, err := svc.repo.InsertRecord(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if outcome == AlreadyExists {
		return Result{}, ErrDuplicate
	}

	// best-effort; never fails the marking
	payload := map[string]interface{}{
		"session_id":  rec.SessionID,
		"attendee_id": rec.AttendeeID,
		"marked_at":   rec.MarkedAt,
		"geo_valid":   rec.GeoValid,
	}
	svc.bus.Publish(event.SessionTopic(sess.ID), event.TypeAttendanceMarked, payload)
	svc.bus.Publish(event.PresenterTopic(sess.PresenterID), event.TypeAttendanceMarked, payload)

	return Result{Accepted: true, GeoValid: rec.GeoValid, Record: rec}, nil
}

// geoValid applies the advisory proximity check. It degrades open:
// missing coordinates on either side mean valid. A failed check flags
// the record for later review but never blocks the attendance.
func (svc *Service) geoValid(sess session.ClassSession, scan Scan) bool {
	if sess.Anchor == nil || scan.Lat == nil || scan.Lon == nil {
		return true
	}
	dist := haversineDistance(sess.Anchor.Lat, sess.Anchor.Lon, *scan.Lat, *scan.Lon)
	return dist <= svc.conf.Attendance.GeofenceRadius
}

// Records lists a session's records, a read-only projection for the
// reporting surface.
func (svc *Service) Records(ctx context.Context, sessionID string) ([]Record, error) {
	return svc.repo.QueryRecordsBySession(ctx, sessionID)
}

// CountRecordsForSession satisfies session.RecordCounter.
func (svc *Service) CountRecordsForSession(ctx context.Context, sessionID string) (int, error) {
	return svc.repo.CountRecordsForSession(ctx, sessionID)
}

// SessionStats aggregates a session's records for dashboards.
func (svc *Service) SessionStats(ctx context.Context, sessionID string) (Stats, error) {
	recs, err := svc.repo.QueryRecordsBySession(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{SessionID: sessionID, Total: len(recs), GeoRate: 1}
	for _, rec := range recs {
		if !rec.GeoValid {
			stats.GeoFlagged++
		}
	}
	if stats.Total > 0 {
		stats.GeoRate = float64(stats.Total-stats.GeoFlagged) / float64(stats.Total)
	}
	return stats, nil
}
