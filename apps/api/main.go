package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/planbord/backend/apps/api/echo"
	"github.com/planbord/backend/core"
	"github.com/planbord/backend/core/inventory"
	"github.com/planbord/backend/core/msgraph"
	"github.com/planbord/backend/core/notify"
	"github.com/planbord/backend/core/offline"
	emailsvc "github.com/planbord/backend/services/email"
	logsvc "github.com/planbord/backend/services/logger"
	"github.com/planbord/backend/storage/database"
	inmemdb "github.com/planbord/backend/storage/database/inmem"
	tokenstore "github.com/planbord/backend/storage/tokens"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
		logger.Enable(!conf.Debug)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	// token storage: system keyring, in-memory as a last resort
	store, err := tokenstore.NewKeyringStore()
	if err != nil {
		logger.Warn(fmt.Sprintf("system keyring unavailable, tokens will not survive restarts: %v", err), err)
		store = msgraph.NewInMemStore()
	}

	// product source for the bulk sync pass and restock checks
	var products inventory.Repository
	if conf.Database.Host != "" {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		if err := database.Ping(db); err != nil {
			logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
		}
		products = database.NewProductRepository(db)
	} else {
		products = inmemdb.NewProductRepository()
	}

	// fallback mail provider, used when Graph mail is unavailable
	var mailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	} else if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	}

	graph := msgraph.NewClient(conf, store, logger)
	sender := msgraph.NewSender(graph, logger)
	coord := offline.NewCoordinator(conf, products, sender, logger)
	notifySvc := notify.NewService(conf, coord, sender, mailSvc, products, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	ctx := context.Background()
	if graph.IsConfigured() {
		graph.Initialize(ctx)
	}
	coord.Initialize(ctx)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

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
			Coordinator: coord,
			Graph:       graph,
			NotifySvc:   notifySvc,
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
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
