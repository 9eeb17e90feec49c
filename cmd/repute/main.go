package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/teknolab/repute/internal/config"
	"github.com/teknolab/repute/internal/infrastructure/providers"
	"github.com/teknolab/repute/internal/infrastructure/repository"
	"github.com/teknolab/repute/internal/observability"
	"github.com/teknolab/repute/internal/present/rest"
	"github.com/teknolab/repute/internal/service"
	"github.com/teknolab/repute/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	ctx := context.Background()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := observability.SetupTraceProvider(ctx, conf.Server.TraceEndpoint, "repute")
		if err != nil {
			slog.Error("failed to setup trace provider", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				slog.Error("failed to shutdown trace provider", slog.String("error", err.Error()))
			}
		}()
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := providers.NewRedis(conf.Server)
	mc := providers.NewMemcache(conf.Server)

	catalog, err := usecase.NewCatalog(conf.ActionKinds())
	if err != nil {
		slog.Error("invalid action catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	caps := conf.Caps()
	ledgerRepo := repository.NewLedgerRepository(db, mc, caps)
	reputationRepo := repository.NewReputationRepository(db, mc, caps.Base)
	permissionRepo := repository.NewPermissionRepository(db)

	var signal *service.SignalService
	var publisher usecase.EventPublisher
	if rdb != nil {
		signal = service.NewSignalService(rdb)
		publisher = signal
	}

	ledger := usecase.NewLedgerUsecase(catalog, ledgerRepo, publisher, caps)
	reputation := usecase.NewReputationUsecase(reputationRepo, publisher)
	permission := usecase.NewPermissionUsecase(permissionRepo, reputation)

	for _, rule := range conf.PermissionRules() {
		if err := permission.Upsert(ctx, rule); err != nil {
			slog.Error("failed to seed permission rule", slog.String("name", rule.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	dispatcher := usecase.NewDispatcher(ledger)
	for _, rule := range conf.Dispatch {
		if err := dispatcher.Register(rule.ContentType, rule.Action, usecase.RuleHandler{}); err != nil {
			slog.Error("invalid dispatch rule", slog.String("contentType", rule.ContentType), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("repute"))
	}

	handler := rest.NewHandler(ledger, reputation, permission, dispatcher, signal)
	handler.RegisterRoutes(e)

	slog.Info("starting server", slog.String("listen", conf.Server.Listen))
	e.Logger.Fatal(e.Start(conf.Server.Listen))
}
