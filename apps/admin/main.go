package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/user"
	accountsvc "github.com/trezcool/notex/services/account"
	emailsvc "github.com/trezcool/notex/services/email"
	logsvc "github.com/trezcool/notex/services/logger"
	"github.com/trezcool/notex/storage/database"
	inmemdb "github.com/trezcool/notex/storage/database/inmem"
	sqlxdb "github.com/trezcool/notex/storage/database/sqlx"
	filestore "github.com/trezcool/notex/storage/files"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up stores
	var db *sql.DB
	var store core.DocumentStore
	if conf.Database.Engine == "memory" {
		store = inmemdb.NewDB()
	} else {
		var err error
		if err = database.CreateIfNotExist(conf); err != nil {
			logger.Fatal("setting up database", err)
		}
		if db, err = database.Open(conf); err != nil {
			logger.Fatal("opening database", err)
		}
		store = sqlxdb.NewStore(db)
	}

	objects, err := filestore.NewFilesystemStorage(conf.Storage.Root, conf.Storage.BaseURL)
	if err != nil {
		logger.Fatal("setting up file storage", err)
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	accounts := accountsvc.NewService(store)
	courses := course.NewService(store, validate, logger)
	mailSvc := emailsvc.NewConsoleService(conf, logger)

	// start CLI
	cli := commandLine{
		db:       db,
		accounts: accounts,
		users:    user.NewService(store, objects, accounts, courses, mailSvc, logger),
		courses:  courses,
		validate: validate,
	}
	err = cli.run(os.Args)
	if db != nil {
		_ = db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
