package testutil

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/file"
	"github.com/trezcool/notex/core/user"
	accountsvc "github.com/trezcool/notex/services/account"
	emailsvc "github.com/trezcool/notex/services/email"
	logsvc "github.com/trezcool/notex/services/logger"
	inmemdb "github.com/trezcool/notex/storage/database/inmem"
	filestore "github.com/trezcool/notex/storage/files"
)

// App bundles the services wired on top of an in-memory store and a temporary file storage.
type App struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Objects    *filestore.FilesystemStorage
	Logger     *logsvc.RollbarLogger
	MailSvc    core.EmailService
	Accounts   *accountsvc.Service
	Users      *user.Service
	Courses    *course.Service
	Files      *file.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

func NewConfig(t *testing.T) *core.Config {
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	conf.Database.Engine = "memory"
	conf.Storage.Root = t.TempDir()
	conf.Storage.BaseURL = "http://localhost:8000/objects"
	return conf
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewApp(t *testing.T) *App {
	conf := NewConfig(t)
	validate, translator := NewValidator()
	logger := logsvc.NewDiscardLogger()

	objects, err := filestore.NewFilesystemStorage(conf.Storage.Root, conf.Storage.BaseURL)
	if err != nil {
		t.Fatalf("NewFilesystemStorage() failed: %v", err)
	}

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ResetSentMessages()

	accounts := accountsvc.NewService(db)
	courses := course.NewService(db, validate, logger)
	return &App{
		Conf:       conf,
		DB:         db,
		Objects:    objects,
		Logger:     logger,
		MailSvc:    mailSvc,
		Accounts:   accounts,
		Users:      user.NewService(db, objects, accounts, courses, mailSvc, logger),
		Courses:    courses,
		Files:      file.NewService(db, objects, accounts, courses, logger, conf.Upload.MaxConcurrent),
		Validate:   validate,
		Translator: translator,
	}
}

// SeedCourses loads course.DefaultCourses.
func SeedCourses(t *testing.T, app *App) []course.Course {
	if _, err := app.Courses.Seed(context.Background(), course.DefaultCourses...); err != nil {
		t.Fatalf("SeedCourses() failed: %v", err)
	}
	courses, err := app.Courses.List(context.Background())
	if err != nil {
		t.Fatalf("SeedCourses() failed: %v", err)
	}
	return courses
}

// CreateUser signs up an account and writes its profile.
func CreateUser(t *testing.T, app *App, name, email, pwd string) user.User {
	uid, err := app.Accounts.SignUp(context.Background(), email, pwd)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := app.Users.CreateProfile(context.Background(), uid, name, email)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// AuthContext returns a context acting as uid.
func AuthContext(uid string) context.Context {
	return core.ContextWithPrincipal(context.Background(), uid)
}
