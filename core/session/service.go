package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
)

var (
	// ErrNotFound means the session token or id is unknown; the remedy
	// is a re-scan, the token may be stale or mistyped.
	ErrNotFound = errors.New("session not found")
	// ErrWindowExpired means the session is known but no longer open;
	// the remedy is asking the presenter to reopen.
	ErrWindowExpired = errors.New("attendance window expired")
	// ErrNotOwner is returned when a presenter tries to close a session
	// they do not own.
	ErrNotOwner = errors.New("session owned by another presenter")

	// NowFunc is mockable for tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess ClassSession) (ClassSession, error)
		GetSessionByID(ctx context.Context, id string) (ClassSession, error)
		// GetSessionByToken resolves any known session, open or not;
		// ErrNotFound when the token is unknown.
		GetSessionByToken(ctx context.Context, token string) (ClassSession, error)
		// EndSession sets endedAt/active exactly once; if the session
		// already ended it returns the stored row unchanged.
		EndSession(ctx context.Context, id string, endedAt time.Time) (ClassSession, error)
		// DeactivateLapsed flips active on sessions whose window lapsed
		// before cutoff. Observability only; OpenAt never relies on it.
		DeactivateLapsed(ctx context.Context, cutoff time.Time) (int, error)
	}

	// IdentityResolver is the slice of the identity service the session
	// manager needs.
	IdentityResolver interface {
		Resolve(ctx context.Context, token string) (identity.Identity, error)
	}

	// RecordCounter provides the marked-attendee count for the close
	// summary email.
	RecordCounter interface {
		CountRecordsForSession(ctx context.Context, sessionID string) (int, error)
	}

	// PresenterDirectory resolves a presenter's email address. The user
	// store behind it is an external collaborator.
	PresenterDirectory interface {
		PresenterEmail(ctx context.Context, presenterID string) (mail.Address, error)
	}

	Service struct {
		repo      Repository
		ids       IdentityResolver
		bus       *event.Bus
		mailSvc   core.EmailService
		counter   RecordCounter
		directory PresenterDirectory
		conf      *core.Config
		log       core.Logger
	}
)

func NewService(
	repo Repository,
	ids IdentityResolver,
	bus *event.Bus,
	mailSvc core.EmailService,
	counter RecordCounter,
	directory PresenterDirectory,
	conf *core.Config,
	log core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		ids:       ids,
		bus:       bus,
		mailSvc:   mailSvc,
		counter:   counter,
		directory: directory,
		conf:      conf,
		log:       log,
	}
}

// Open creates and activates a session for the presenter owning
// presenterToken. The minted session token is the bearer value encoded
// as the scannable code.
func (svc *Service) Open(ctx context.Context, presenterToken string, ns NewSession) (ClassSession, error) {
	ident, err := svc.ids.Resolve(ctx, presenterToken)
	if err != nil {
		return ClassSession{}, err
	}
	if ident.Role != identity.RolePresenter {
		return ClassSession{}, identity.ErrNotIssued
	}

	token, err := generateSessionToken()
	if err != nil {
		return ClassSession{}, err
	}

	window := ns.WindowSeconds
	if window == 0 {
		window = int(svc.conf.Attendance.DefaultWindow / time.Second)
	}

	sess := ClassSession{
		ID:            uuid.New().String(),
		PresenterID:   ident.PrincipalID,
		Subject:       ns.Subject,
		Label:         ns.Label,
		Token:         token,
		Anchor:        ns.anchor(),
		WindowSeconds: window,
		StartedAt:     NowFunc().UTC(),
		Active:        true,
	}
	sess, err = svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return ClassSession{}, err
	}

	svc.publish(sess, event.TypeSessionStarted)
	return sess, nil
}

// Close ends the session. Only the owning presenter may close; closing
// an already ended session is a no-op, not an error.
func (svc *Service) Close(ctx context.Context, sessionID, presenterID string) (ClassSession, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return ClassSession{}, err
	}
	if sess.PresenterID != presenterID {
		return ClassSession{}, ErrNotOwner
	}
	if sess.EndedAt.Valid {
		return sess, nil
	}

	sess, err = svc.repo.EndSession(ctx, sessionID, NowFunc().UTC())
	if err != nil {
		return ClassSession{}, err
	}

	svc.publish(sess, event.TypeSessionEnded)
	svc.sendSummary(ctx, sess)
	return sess, nil
}

// ResolveOpen resolves a session token only while the session is open:
// active, not ended and within its window. The two failure modes are
// distinct because the caller-facing remedy differs.
func (svc *Service) ResolveOpen(ctx context.Context, token string) (ClassSession, error) {
	if token == "" {
		return ClassSession{}, ErrNotFound
	}
	sess, err := svc.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return ClassSession{}, err
	}
	if !sess.OpenAt(NowFunc().UTC()) {
		return ClassSession{}, ErrWindowExpired
	}
	return sess, nil
}

func (svc *Service) Get(ctx context.Context, id string) (ClassSession, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

// SweepLapsed flips active on sessions whose window lapsed without an
// explicit close. Purely for dashboard tidiness.
func (svc *Service) SweepLapsed(ctx context.Context) (int, error) {
	return svc.repo.DeactivateLapsed(ctx, NowFunc().UTC())
}

func (svc *Service) publish(sess ClassSession, typ string) {
	payload := map[string]interface{}{
		"session_id": sess.ID,
		"subject":    sess.Subject,
		"label":      sess.Label,
	}
	svc.bus.Publish(event.SessionTopic(sess.ID), typ, payload)
	svc.bus.Publish(event.PresenterTopic(sess.PresenterID), typ, payload)
}

func (svc *Service) sendSummary(ctx context.Context, sess ClassSession) {
	if svc.mailSvc == nil || svc.counter == nil || svc.directory == nil {
		return
	}
	count, err := svc.counter.CountRecordsForSession(ctx, sess.ID)
	if err != nil {
		svc.log.Error(fmt.Sprintf("counting records for summary: %v", err), pkgerrors.Wrap(err, "counting records"))
		return
	}
	to, err := svc.directory.PresenterEmail(ctx, sess.PresenterID)
	if err != nil {
		svc.log.Error(fmt.Sprintf("resolving presenter email: %v", err), pkgerrors.Wrap(err, "resolving presenter email"))
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{to},
		Subject: fmt.Sprintf("Attendance summary: %s (%s)", sess.Subject, sess.Label),
		Body: fmt.Sprintf(
			"Session %s closed at %s.\n%d attendee(s) marked present.\n",
			sess.ID, sess.EndedAt.Time.Format(time.RFC1123), count,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", pkgerrors.Wrap(err, "generating session token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
