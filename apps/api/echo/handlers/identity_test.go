package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core/identity"
)

func Test_identityApi_identityIssue(t *testing.T) {
	ta := initApp(t)
	path := "/v1/identity"

	tests := []httpTest{
		{
			name:     "no auth",
			method:   http.MethodPost,
			path:     path,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "unknown role",
			method:   http.MethodPost,
			path:     path,
			token:    getToken(t, "u1", helpers.RoleAdmin),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			ta.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("issue", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, "att-01", string(identity.RoleAttendee)))
		ta.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var ident identity.Identity
		decodeBody(t, rec, &ident)
		assert.Equal(t, "att-01", ident.PrincipalID)
		assert.Equal(t, identity.RoleAttendee, ident.Role)
		assert.Len(t, ident.Token, 43)
		assert.True(t, ident.Active)
		assert.False(t, ident.IssuedAt.IsZero())

		got, err := ta.identSvc.Resolve(context.Background(), ident.Token)
		require.NoError(t, err)
		assert.Equal(t, ident.Token, got.Token)
	})

	t.Run("reissue rotates", func(t *testing.T) {
		token := getToken(t, "pres-01", string(identity.RolePresenter))

		req, rec := newAuthRequest(http.MethodPost, path, token)
		ta.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var first identity.Identity
		decodeBody(t, rec, &first)

		req, rec = newAuthRequest(http.MethodPost, path, token)
		ta.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var second identity.Identity
		decodeBody(t, rec, &second)

		assert.NotEqual(t, first.Token, second.Token)

		// the superseded token no longer resolves
		_, err := ta.identSvc.Resolve(context.Background(), first.Token)
		assert.Equal(t, identity.ErrNotIssued, err)
		got, err := ta.identSvc.Resolve(context.Background(), second.Token)
		require.NoError(t, err)
		assert.Equal(t, "pres-01", got.PrincipalID)
	})
}
