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

	"github.com/planbord/backend/core"
	"github.com/planbord/backend/core/msgraph"
	"github.com/planbord/backend/core/notify"
	"github.com/planbord/backend/core/offline"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Coordinator    *offline.Coordinator
		Graph          *msgraph.Client
		NotifySvc      *notify.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
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
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	debug := s.deps.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.deps.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, func() { s.shutdown <- syscall.SIGTERM })
	s.app.Validator = &appValidator{validate: s.deps.Validate}
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	registerSystemAPI(v1, s.deps.Coordinator)
	registerMicrosoftAPI(s.app, v1, s.deps.Graph)
	registerNotificationAPI(v1, s.deps.NotifySvc)
}

func (s *server) Start() {
	s.errs <- s.app.Start(s.deps.Conf.Server.Address())
}

func (s *server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *server) Close() error                       { return s.app.Close() }

func (s *server) Errors() <-chan error             { return s.errs }
func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Planning Bord API!")
}

type appValidator struct {
	validate *validator.Validate
}

func (v *appValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
