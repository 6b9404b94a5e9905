package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

func Test_sessionApi_sessionOpen(t *testing.T) {
	ta := initApp(t)
	path := "/v1/sessions"

	presenterJWT := getToken(t, "pres-01", string(identity.RolePresenter))
	attendeeJWT := getToken(t, "att-01", string(identity.RoleAttendee))
	ident := ta.issueIdentity(t, "pres-01", identity.RolePresenter)

	lat, lon := 12.9716, 77.5946
	body := marchallObj(t, OpenSessionRequest{
		IdentityToken: ident.Token,
		NewSession: session.NewSession{
			Subject:       "Distributed Systems",
			Label:         "Lecture 12",
			Lat:           &lat,
			Lon:           &lon,
			WindowSeconds: 600,
		},
	})

	tests := []httpTest{
		{
			name:     "no auth",
			method:   http.MethodPost,
			path:     path,
			body:     body,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "attendee cannot open",
			method:   http.MethodPost,
			path:     path,
			body:     body,
			token:    attendeeJWT,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:   "unissued identity token",
			method: http.MethodPost,
			path:   path,
			body: marchallObj(t, OpenSessionRequest{
				IdentityToken: "bogus-token",
				NewSession:    session.NewSession{Subject: "S", Label: "L"},
			}),
			token:    presenterJWT,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errBody{Error: identity.ErrNotIssued.Error(), Code: "identity_not_issued"}),
		},
		{
			name:   "missing fields",
			method: http.MethodPost,
			path:   path,
			body: marchallObj(t, OpenSessionRequest{
				IdentityToken: ident.Token,
			}),
			token:    presenterJWT,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"subject": "this field is required",
				"label":   "this field is required",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			ta.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("open", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, presenterJWT, body)
		ta.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res OpenSessionResponse
		decodeBody(t, rec, &res)
		assert.Len(t, res.SessionToken, 43)
		assert.NotEmpty(t, res.Session.ID)
		assert.Equal(t, "pres-01", res.Session.PresenterID)
		assert.Equal(t, "Distributed Systems", res.Session.Subject)
		assert.Equal(t, 600, res.Session.WindowSeconds)
		assert.True(t, res.Session.Active)
		require.NotNil(t, res.Session.Anchor)
		assert.Equal(t, lat, res.Session.Anchor.Lat)

		// the token never leaks through the session object itself
		assert.Empty(t, res.Session.Token)
	})
}

func Test_sessionApi_sessionRetrieve(t *testing.T) {
	ta := initApp(t)

	attendeeJWT := getToken(t, "att-01", string(identity.RoleAttendee))
	ident := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	sess := ta.openSession(t, ident.Token, session.NewSession{Subject: "Algebra", Label: "Tutorial 3"})

	t.Run("found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID, attendeeJWT)
		ta.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var detail SessionDetail
		decodeBody(t, rec, &detail)
		assert.Equal(t, sess.ID, detail.ID)
		assert.True(t, detail.Open)
		assert.False(t, detail.EndedAt.Valid)
	})

	t.Run("not found", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errBody{Error: session.ErrNotFound.Error(), Code: "session_not_found"}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/nope", attendeeJWT)
		ta.serve(req, rec)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_sessionApi_sessionClose(t *testing.T) {
	ta := initApp(t)

	ownerJWT := getToken(t, "pres-01", string(identity.RolePresenter))
	otherJWT := getToken(t, "pres-02", string(identity.RolePresenter))
	ident := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	sess := ta.openSession(t, ident.Token, session.NewSession{Subject: "Algebra", Label: "Tutorial 3"})
	path := "/v1/sessions/" + sess.ID

	t.Run("not owner", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errBody{Error: session.ErrNotOwner.Error(), Code: "not_owner"}),
		}
		req, rec := newAuthRequest(http.MethodDelete, path, otherJWT)
		ta.serve(req, rec)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("close", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, ownerJWT)
		ta.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var closed session.ClassSession
		decodeBody(t, rec, &closed)
		require.True(t, closed.EndedAt.Valid)
		assert.False(t, closed.Active)

		// closing again is a no-op returning the same terminal state
		req, rec = newAuthRequest(http.MethodDelete, path, ownerJWT)
		ta.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var again session.ClassSession
		decodeBody(t, rec, &again)
		assert.True(t, again.EndedAt.Valid)
		assert.True(t, closed.EndedAt.Time.Equal(again.EndedAt.Time))
	})
}

func Test_sessionApi_reporting(t *testing.T) {
	ta := initApp(t)

	presenterJWT := getToken(t, "pres-01", string(identity.RolePresenter))
	attendeeJWT := getToken(t, "att-01", string(identity.RoleAttendee))

	presIdent := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	sess := ta.openSession(t, presIdent.Token, session.NewSession{Subject: "Networks", Label: "Lab 1"})

	for _, attendeeID := range []string{"att-01", "att-02"} {
		ident := ta.issueIdentity(t, attendeeID, identity.RoleAttendee)
		_, err := ta.attSvc.Mark(context.Background(), attendance.Scan{
			SessionToken:  sess.Token,
			IdentityToken: ident.Token,
		})
		require.NoError(t, err)
	}

	t.Run("records", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/records", presenterJWT)
		ta.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var recs []attendance.Record
		decodeBody(t, rec, &recs)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, sess.ID, r.SessionID)
			assert.True(t, r.GeoValid)
		}
	})

	t.Run("records are presenter-only", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/records", attendeeJWT)
		ta.serve(req, rec)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/stats", presenterJWT)
		ta.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats attendance.Stats
		decodeBody(t, rec, &stats)
		assert.Equal(t, sess.ID, stats.SessionID)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 0, stats.GeoFlagged)
		assert.Equal(t, 1.0, stats.GeoRate)
	})
}
