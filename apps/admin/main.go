package main

import (
	stdlog "log"
	"os"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/identity"
	logsvc "github.com/edusuite/presence/services/logger"
	"github.com/edusuite/presence/storage/database"
	sqlxrepos "github.com/edusuite/presence/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		stdlog.New(os.Stdout, "ADMIN : ", stdlog.LstdFlags|stdlog.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		stdlog.Fatalf("opening database: %v", err)
	}
	defer func() { _ = db.Close() }()

	cli := &commandLine{
		conf:     conf,
		db:       db,
		identSvc: identity.NewService(sqlxrepos.NewIdentityRepository(db), logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdlog.Fatal(err)
		}
		os.Exit(1)
	}
}
