package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/file"
	"github.com/trezcool/notex/core/user"
	metricsvc "github.com/trezcool/notex/services/metrics"
)

type (
	// AccountService checks and creates credentials.
	AccountService interface {
		SignUp(ctx context.Context, email, pwd string) (string, error)
		Authenticate(ctx context.Context, email, pwd string) (string, error)
	}

	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Accounts    AccountService
		UserSvc     user.ServiceInterface
		CourseSvc   course.ServiceInterface
		FileSvc     file.ServiceInterface
		Metrics     *metricsvc.Collector // scraped from the debug host, not served here
		ObjectsRoot string // served under /objects when set
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Server struct {
		app      *echo.Echo
		deps     ServerDeps
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
	}
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	auth := authMiddleware(conf)
	if s.deps.ObjectsRoot != "" {
		registerObjectAPI(s.app.Group("/objects"), auth, s.deps.ObjectsRoot)
	}

	v1 := s.app.Group("/v1")
	registerAccountAPI(v1, auth, s.deps.Accounts, s.deps.UserSvc, conf, s.deps.Validate)
	registerUserAPI(v1, auth, s.deps.UserSvc, s.deps.Metrics, conf, s.deps.Validate)
	registerCourseAPI(v1, auth, s.deps.CourseSvc, s.deps.FileSvc, s.deps.Metrics, conf)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.app.Close() }

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
