package helpers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

var (
	UnauthorizedHttpErr = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	ForbiddenHttpErr    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	NotFoundHttpErr     = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorBody is the response shape for expected, caller-facing outcomes.
// Code lets clients branch without parsing the message.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// expectedOutcome maps the attendance taxonomy to HTTP. These are
// ordinary protocol outcomes, rendered directly; only unknown errors
// fall through to the opaque 500 path so the caller can tell "rejected"
// apart from "not attempted".
func expectedOutcome(err error) (int, *errorBody) {
	switch err {
	case identity.ErrNotIssued:
		return http.StatusForbidden, &errorBody{Error: err.Error(), Code: "identity_not_issued"}
	case session.ErrNotFound:
		return http.StatusNotFound, &errorBody{Error: err.Error(), Code: "session_not_found"}
	case session.ErrWindowExpired:
		return http.StatusGone, &errorBody{Error: err.Error(), Code: "window_expired"}
	case session.ErrNotOwner:
		return http.StatusForbidden, &errorBody{Error: err.Error(), Code: "not_owner"}
	case attendance.ErrDuplicate:
		return http.StatusConflict, &errorBody{Error: err.Error(), Code: "duplicate_attendance"}
	}
	return 0, nil
}

// NewAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called to gracefully stop the Server whenever a core shutdown error is caught.
func NewAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if c, body := expectedOutcome(errors.Cause(err)); c != 0 {
			code = c
			message = body
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = errorBody{Error: "missing or malformed jwt"}
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				if m, ok := origErr.Message.(string); ok {
					message = errorBody{Error: m}
				} else {
					message = origErr.Message
				}
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = errorBody{Error: origErr.Error()}
				}
				code = http.StatusBadRequest
			default: // any other error is an opaque server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = errorBody{Error: msg, Code: "storage_unavailable"}

				var principal core.Principal
				if p, pErr := GetContextPrincipal(ctx); pErr == nil {
					principal = p
				}
				logger.Error(msg, errors.Wrap(err, msg), principal)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = errorBody{Error: err.Error()}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
