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

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/results"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	ServerDeps struct {
		Address        string
		DisableReqLogs bool

		Logger     core.Logger
		UserSvc    user.ServiceInterface
		SchoolSvc  *school.Service
		Registry   *assignment.Registry
		ResultsSvc *results.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     *ServerDeps
		app      *echo.Echo
		errChan  chan error
		shutChan chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps *ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errChan:  make(chan error, 1),
		shutChan: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutChan, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc)
	registerExamAPI(v1, jwt, s.deps.UserSvc, s.deps.ResultsSvc)
	registerAssignmentAPI(v1, jwt, s.deps.UserSvc, s.deps.Registry)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Address); err != nil && err != http.ErrServerClosed {
		s.errChan <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errChan
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutChan
}

func (s *server) signalShutdown() {
	s.shutChan <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Shule API!")
}
