package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/notex/apps/api/echo"
	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/file"
	"github.com/trezcool/notex/core/user"
	accountsvc "github.com/trezcool/notex/services/account"
	emailsvc "github.com/trezcool/notex/services/email"
	logsvc "github.com/trezcool/notex/services/logger"
	metricsvc "github.com/trezcool/notex/services/metrics"
	"github.com/trezcool/notex/storage/database"
	inmemdb "github.com/trezcool/notex/storage/database/inmem"
	sqlxdb "github.com/trezcool/notex/storage/database/sqlx"
	filestore "github.com/trezcool/notex/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up stores
	store, closeStore, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	objects, err := filestore.NewFilesystemStorage(conf.Storage.Root, conf.Storage.BaseURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	accounts := accountsvc.NewService(store)
	courseSvc := course.NewService(store, validate, logger)
	usrSvc := user.NewService(store, objects, accounts, courseSvc, mailSvc, logger)
	fileSvc := file.NewService(store, objects, accounts, courseSvc, logger, conf.Upload.MaxConcurrent)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if conf.Database.Engine == "memory" {
		// nothing survives a restart: load the reference courses
		if n, err := courseSvc.Seed(context.Background(), course.DefaultCourses...); err != nil {
			logger.Fatal(fmt.Sprintf("seeding courses: %v", err), err)
		} else {
			logger.Info(fmt.Sprintf("seeded %d courses", n))
		}
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint of the API server.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	metrics := metricsvc.NewCollector("notex")
	http.DefaultServeMux.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Accounts:    accounts,
			UserSvc:     usrSvc,
			CourseSvc:   courseSvc,
			FileSvc:     fileSvc,
			Metrics:     metrics,
			ObjectsRoot: objects.Root(),
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

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

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpStore opens the document store selected by conf.Database.Engine.
func setUpStore(conf *core.Config) (core.DocumentStore, func() error, error) {
	if conf.Database.Engine == "memory" {
		return inmemdb.NewDB(), func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlxdb.NewStore(db), db.Close, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
