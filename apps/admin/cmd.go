package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	identSvc *identity.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  revoke -principal ID -role presenter|attendee - deactivate a principal's identity token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	revokeCmd := flag.NewFlagSet("revoke", flag.ExitOnError)
	revokePrincipal := revokeCmd.String("principal", "", "The principal whose identity token to deactivate.")
	revokeRole := revokeCmd.String("role", string(identity.RoleAttendee), "The role scope of the token: presenter or attendee.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "revoke":
		if err := revokeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokePrincipal == "" || !identity.Role(*revokeRole).Valid() {
			revokeCmd.Usage()
			return errHelp
		}
		return cli.revoke(*revokePrincipal, identity.Role(*revokeRole))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate() error {
	if err := database.Migrate(cli.db); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func (cli *commandLine) revoke(principalID string, role identity.Role) error {
	if err := cli.identSvc.Revoke(context.Background(), principalID, role); err != nil {
		return err
	}
	fmt.Printf("identity token revoked for %s (%s)\n", principalID, role)
	return nil
}
