package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/edusuite/presence/apps/api/echo/handlers"
	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		IdentitySvc   *identity.Service
		SessionSvc    *session.Service
		AttendanceSvc *attendance.Service
		Bus           *event.Bus
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = helpers.NewAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := helpers.ConfigureAuth(conf)

	handlers.RegisterIdentityAPI(v1, jwt, s.deps.IdentitySvc)
	handlers.RegisterSessionAPI(v1, jwt, s.deps.SessionSvc, s.deps.AttendanceSvc)
	handlers.RegisterAttendanceAPI(v1, jwt, s.deps.AttendanceSvc)
	handlers.RegisterEventsAPI(v1, jwt, s.deps.Bus, s.deps.Logger)
}

func (s *Server) Start() {
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         s.deps.Conf.Server.APIAddress,
		Handler:      s.app,
		ReadTimeout:  s.deps.Conf.Server.ReadTimeout,
		WriteTimeout: s.deps.Conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(server); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors surfaces a fatal listener error.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal fires on SIGINT/SIGTERM or a SignalShutdown call.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown requests a graceful stop from within the app (e.g. on
// an unrecoverable storage error).
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Presence API!")
}
