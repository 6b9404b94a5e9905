package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

func Test_attendanceApi_attendanceScan(t *testing.T) {
	ta := initApp(t)
	path := "/v1/attendance/scan"

	presenterJWT := getToken(t, "pres-01", string(identity.RolePresenter))
	attendeeJWT := getToken(t, "att-01", string(identity.RoleAttendee))

	presIdent := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	attIdent := ta.issueIdentity(t, "att-01", identity.RoleAttendee)
	sess := ta.openSession(t, presIdent.Token, session.NewSession{Subject: "Networks", Label: "Lab 1"})

	scanBody := func(sessionToken, identityToken string) []byte {
		return marchallObj(t, attendance.Scan{SessionToken: sessionToken, IdentityToken: identityToken})
	}

	tests := []httpTest{
		{
			name:     "no auth",
			method:   http.MethodPost,
			path:     path,
			body:     scanBody(sess.Token, attIdent.Token),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "presenter cannot scan",
			method:   http.MethodPost,
			path:     path,
			body:     scanBody(sess.Token, presIdent.Token),
			token:    presenterJWT,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing identity token",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, attendance.Scan{SessionToken: sess.Token}),
			token:    attendeeJWT,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"identity_token": "this field is required"}),
		},
		{
			name:     "unknown session token",
			method:   http.MethodPost,
			path:     path,
			body:     scanBody("bogus", attIdent.Token),
			token:    attendeeJWT,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errBody{Error: session.ErrNotFound.Error(), Code: "session_not_found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			ta.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("scan", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, attendeeJWT, scanBody(sess.Token, attIdent.Token))
		req.Header.Set("User-Agent", "presence-app/1.2 (android)")
		ta.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res attendance.Result
		decodeBody(t, rec, &res)
		assert.True(t, res.Accepted)
		assert.True(t, res.GeoValid)
		assert.Equal(t, sess.ID, res.Record.SessionID)
		assert.Equal(t, "att-01", res.Record.AttendeeID)
		assert.Equal(t, "presence-app/1.2 (android)", res.Record.DeviceInfo)
		assert.NotEmpty(t, res.Record.SourceAddr)
	})

	t.Run("duplicate scan", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, errBody{Error: attendance.ErrDuplicate.Error(), Code: "duplicate_attendance"}),
		}
		req, rec := newAuthRequest(http.MethodPost, path, attendeeJWT, scanBody(sess.Token, attIdent.Token))
		ta.serve(req, rec)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_attendanceApi_attendanceScan_geofence(t *testing.T) {
	ta := initApp(t)
	path := "/v1/attendance/scan"

	// meters per degree of latitude
	const degLat = 111194.93
	anchorLat, anchorLon := 12.9716, 77.5946

	presIdent := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	sess := ta.openSession(t, presIdent.Token, session.NewSession{
		Subject: "Networks",
		Label:   "Lab 1",
		Lat:     &anchorLat,
		Lon:     &anchorLon,
	})

	farLat := anchorLat + 150/degLat
	attendeeJWT := getToken(t, "att-02", string(identity.RoleAttendee))
	ident := ta.issueIdentity(t, "att-02", identity.RoleAttendee)

	req, rec := newAuthRequest(http.MethodPost, path, attendeeJWT, marchallObj(t, attendance.Scan{
		SessionToken:  sess.Token,
		IdentityToken: ident.Token,
		Lat:           &farLat,
		Lon:           &anchorLon,
	}))
	ta.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// out of range is flagged, never rejected
	var res attendance.Result
	decodeBody(t, rec, &res)
	assert.True(t, res.Accepted)
	assert.False(t, res.GeoValid)
}

func Test_attendanceApi_attendanceScan_windowExpired(t *testing.T) {
	ta := initApp(t)
	path := "/v1/attendance/scan"

	presIdent := ta.issueIdentity(t, "pres-01", identity.RolePresenter)
	sess := ta.openSession(t, presIdent.Token, session.NewSession{
		Subject:       "Networks",
		Label:         "Lab 1",
		WindowSeconds: 30,
	})

	defer func() { session.NowFunc = time.Now }()
	session.NowFunc = func() time.Time { return sess.StartedAt.Add(31 * time.Second) }

	attendeeJWT := getToken(t, "att-03", string(identity.RoleAttendee))
	ident := ta.issueIdentity(t, "att-03", identity.RoleAttendee)

	tt := httpTest{
		wantCode: http.StatusGone,
		wantData: marchallObj(t, errBody{Error: session.ErrWindowExpired.Error(), Code: "window_expired"}),
	}
	req, rec := newAuthRequest(http.MethodPost, path, attendeeJWT, marchallObj(t, attendance.Scan{
		SessionToken:  sess.Token,
		IdentityToken: ident.Token,
	}))
	ta.serve(req, rec)
	checkCodeAndData(t, tt, rec)
}
