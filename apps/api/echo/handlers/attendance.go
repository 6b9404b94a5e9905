package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core/attendance"
)

type attendanceApi struct {
	service *attendance.Service
}

func RegisterAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{service: svc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/scan", api.attendanceScan, helpers.AttendeeMiddleware())
}

// attendanceScan is the attendee-facing scan surface: a decoded session
// token plus the device's identity token and optional coordinates.
// geo_valid = false in an accepted response is a soft warning the UI
// renders distinctly from a hard failure.
func (api *attendanceApi) attendanceScan(ctx echo.Context) error {
	data := new(attendance.Scan)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.DeviceInfo == "" {
		data.DeviceInfo = ctx.Request().UserAgent()
	}
	data.SourceAddr = ctx.RealIP()
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.service.Mark(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}
