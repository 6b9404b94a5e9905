package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core/identity"
)

type identityApi struct {
	service *identity.Service
}

func RegisterIdentityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *identity.Service) {
	api := identityApi{service: svc}

	ig := g.Group("/identity", jwt)
	ig.POST("", api.identityIssue)
}

// identityIssue mints (or rotates) the identity token for the verified
// principal. Repeated calls simply rotate; sessions already opened
// under a superseded presenter token remain valid.
func (api *identityApi) identityIssue(ctx echo.Context) error {
	principal, err := helpers.GetContextPrincipal(ctx)
	if err != nil {
		return err
	}

	role := identity.Role(principal.Role)
	if !role.Valid() {
		return helpers.ForbiddenHttpErr
	}

	ident, err := api.service.Issue(ctx.Request().Context(), principal.ID, role)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ident)
}
