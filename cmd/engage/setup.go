package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/engage"
	"github.com/sandevgo/engage/internal/bus"
	"github.com/sandevgo/engage/internal/config"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/internal/netio"
	"github.com/sandevgo/engage/internal/simulator"
	"github.com/sandevgo/engage/internal/storage/sqlite"
	"github.com/sandevgo/engage/pkg/log"
	"github.com/sandevgo/engage/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	if appCfg.AppID == "" {
		logger.Fatal().Msg("ENGAGE_APP_ID is required")
	}

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	// 3. Event bus
	hub := bus.NewHub(ctx)
	services = append(services, srv.NewCleanup(func() error {
		hub.Close()
		return nil
	}))

	// 4. Extension
	ui := simulator.NewConsoleUI(ctx)
	ext := engage.New(engage.Options{
		Device:   appCfg,
		Bus:      hub,
		Store:    sqlite.NewCacheRepo(db),
		Network:  netio.NewClient(),
		UI:       ui,
		AssetTTL: appCfg.GetAssetTTL(),
	})
	ext.Start(ctx)

	// Outbound traffic has no edge behind it in the simulator; log it so the
	// operator can see what the SDK would send.
	hub.Subscribe(core.EventTypeEdge, core.EventSourceRequestContent, func(ev core.Event) {
		logger.Info().Any("personalization", ev.Data["personalization"]).Msg("outbound proposition fetch")
	})
	hub.Subscribe(core.EventTypeMessaging, core.EventSourceTracking, func(ev core.Event) {
		logger.Info().
			Any("eventType", ev.Data["eventType"]).
			Any("interactName", ev.Data["interactName"]).
			Msg("outbound tracking event")
	})

	// 5. HTTP simulator surface
	services = append(services, simulator.NewServer(ctx, appCfg.HTTPAddr, ext, hub, ui))

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
