package main

import (
	"context"
	"expvar"
	"fmt"
	stdlog "log"
	"net/http"
	_ "net/http/pprof"
	"net/mail"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/edusuite/presence/apps/api/echo"
	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
	emailsvc "github.com/edusuite/presence/services/email"
	logsvc "github.com/edusuite/presence/services/logger"
	"github.com/edusuite/presence/storage/database"
	sqlxrepos "github.com/edusuite/presence/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		stdlog.New(os.Stdout, "API : ", stdlog.LstdFlags|stdlog.Lmicroseconds|stdlog.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	bus := event.NewBus(logger)
	identRepo := sqlxrepos.NewIdentityRepository(db)
	sessRepo := sqlxrepos.NewSessionRepository(db)
	attRepo := sqlxrepos.NewAttendanceRepository(db)

	identSvc := identity.NewService(identRepo, logger)
	attSvc := attendance.NewService(attRepo, identSvc, nil, bus, conf, logger)
	sessSvc := session.NewService(sessRepo, identSvc, bus, mailSvc, attSvc, staticDirectory{conf: conf}, conf, logger)
	attSvc.SetSessionResolver(sessSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := newTranslator()
	core.InitValidators(core.Validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Expired-Session Sweep (observability only)

	sweepStop := make(chan struct{})
	if conf.Attendance.SweepInterval > 0 {
		go sweepLoop(sessSvc, conf.Attendance.SweepInterval, sweepStop, logger)
	}
	defer close(sweepStop)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		IdentitySvc:   identSvc,
		SessionSvc:    sessSvc,
		AttendanceSvc: attSvc,
		Bus:           bus,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func sweepLoop(svc *session.Service, interval time.Duration, stop <-chan struct{}, logger core.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := svc.SweepLapsed(context.Background()); err != nil {
				logger.Error(fmt.Sprintf("sweeping lapsed sessions: %v", err), err)
			} else if n > 0 {
				logger.Debug(fmt.Sprintf("swept %d lapsed session(s)", n))
			}
		case <-stop:
			return
		}
	}
}

// staticDirectory derives presenter addresses from config; the real
// user store is outside this service.
type staticDirectory struct {
	conf *core.Config
}

func (d staticDirectory) PresenterEmail(_ context.Context, presenterID string) (mail.Address, error) {
	return mail.Address{Address: presenterID + "@" + d.conf.Server.Host}, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
