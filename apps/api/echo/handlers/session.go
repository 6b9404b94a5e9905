package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/session"
)

type sessionApi struct {
	service    *session.Service
	attendance *attendance.Service
}

func RegisterSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *session.Service, attSvc *attendance.Service) {
	api := sessionApi{service: svc, attendance: attSvc}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.sessionOpen, helpers.PresenterMiddleware())
	sg.GET("/:id", api.sessionRetrieve)
	sg.DELETE("/:id", api.sessionClose, helpers.PresenterMiddleware())

	// reporting projections
	sg.GET("/:id/records", api.sessionRecords, helpers.PresenterMiddleware())
	sg.GET("/:id/stats", api.sessionStats, helpers.PresenterMiddleware())
}

type (
	// OpenSessionRequest carries the presenter's identity token plus
	// the new session payload.
	OpenSessionRequest struct {
		IdentityToken string `json:"identity_token" validate:"required"`
		session.NewSession
	}

	// OpenSessionResponse is the only place the session token is
	// handed out; the presenter encodes it as the scannable code.
	OpenSessionResponse struct {
		Session      session.ClassSession `json:"session"`
		SessionToken string               `json:"session_token"`
	}

	// SessionDetail adds the derived open flag to the stored row.
	SessionDetail struct {
		session.ClassSession
		Open bool `json:"open"`
	}
)

func (r *OpenSessionRequest) Validate() error {
	r.IdentityToken = core.CleanString(r.IdentityToken)
	if err := core.Validate.Struct(r); err != nil {
		return err
	}
	return r.NewSession.Validate()
}

func (api *sessionApi) sessionOpen(ctx echo.Context) error {
	data := new(OpenSessionRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.service.Open(ctx.Request().Context(), data.IdentityToken, data.NewSession)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, OpenSessionResponse{Session: sess, SessionToken: sess.Token})
}

func (api *sessionApi) sessionRetrieve(ctx echo.Context) error {
	sess, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionDetail{ClassSession: sess, Open: sess.OpenAt(time.Now().UTC())})
}

func (api *sessionApi) sessionClose(ctx echo.Context) error {
	principal, err := helpers.GetContextPrincipal(ctx)
	if err != nil {
		return err
	}

	sess, err := api.service.Close(ctx.Request().Context(), ctx.Param("id"), principal.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) sessionRecords(ctx echo.Context) error {
	recs, err := api.attendance.Records(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *sessionApi) sessionStats(ctx echo.Context) error {
	stats, err := api.attendance.SessionStats(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}
