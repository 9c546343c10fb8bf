package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"golang.org/x/term"

	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/user"
	accountsvc "github.com/trezcool/notex/services/account"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errNoSQLDB = errors.New("migrations need the postgres engine")
)

type commandLine struct {
	db       *sql.DB // nil with the memory engine
	accounts *accountsvc.Service
	users    user.ServiceInterface
	courses  course.ServiceInterface
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run goose migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  seed                   - load the default courses")
	fmt.Println("  adduser -email EMAIL [-name NAME] - create a user or reset their password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's display name, for new users.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed()
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if err = vala.BeginValidation().Validate(
			vala.StringNotEmpty(*addUserEmail, "email"),
			vala.StringNotEmpty(string(pwd), "password"),
		).Check(); err != nil {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}
