package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"timelens/internal/domain"
	"timelens/internal/flags"
	httpapi "timelens/internal/http"
	"timelens/internal/http/handlers"
	"timelens/internal/infra"
	"timelens/internal/infra/geoip"
	"timelens/internal/middleware"
	"timelens/internal/orchestrator"
	"timelens/internal/pipeline"
	"timelens/internal/preset"
	"timelens/internal/providers/replicate"
	"timelens/internal/providers/stability"
	"timelens/internal/quota"
	"timelens/internal/repo"
	"timelens/internal/source"
	"timelens/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	resetLoc, err := cfg.ResetLocation()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid reset timezone")
	}

	catalog, err := preset.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load preset catalog")
	}
	resolver := preset.NewResolver(catalog)

	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	// An empty DATABASE_URL runs the service in development mode: in-memory
	// quota records and a filesystem result archive.
	ctx := context.Background()
	var (
		quotaStore quota.Store
		saver      pipeline.Saver
	)
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory quota store and filesystem archive")
		quotaStore = quota.NewMemoryStore(cfg.GlobalCapacity)
		archive, err := storage.NewArchive(cfg.ArchivePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize result archive")
		}
		saver = archive
	} else {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		quotaStore = quota.NewPostgresStore(dbpool)
		saver = repo.NewResultRepository(dbpool)
	}

	abuse := quota.NewAbuseDetector(cfg.MaxUsersPerDevice, cfg.MaxRequestsPerIP, geoResolver)
	engine := quota.NewEngine(quota.Config{
		CostPerGeneration: cfg.GenerationCost,
		DailyLimit:        cfg.DailyLimit,
		WeeklyLimit:       cfg.WeeklyLimit,
		Cooldown:          cfg.Cooldown,
		ResetLocation:     resetLoc,
	}, quotaStore, abuse, &logger)

	sweeper, err := quota.NewSweeper(quotaStore, abuse, cfg.SweepSchedule, resetLoc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule quota sweep")
	}
	sweeper.Start()
	defer sweeper.Stop()

	flagStore, err := flags.NewStore(flags.EnvSource())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load feature flags")
	}

	replicateClient := replicate.NewClient(replicate.Options{
		APIToken: cfg.ReplicateAPIToken,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   &logger,
	})
	stabilityClient := stability.NewClient(stability.Options{
		APIKey:  cfg.StabilityAPIKey,
		BaseURL: cfg.StabilityBaseURL,
		Logger:  &logger,
	})
	newBackend := pipeline.NewReplicateBackend(replicateClient, cfg.ReplicateDefaultModel)
	legacyBackend := pipeline.NewStabilityBackend(stabilityClient, cfg.StabilityEngine)

	router, err := pipeline.NewRouter(flagStore, routesFor(newBackend, legacyBackend), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline router")
	}

	poller := pipeline.NewPoller(pipeline.PollerConfig{
		InitialDelay: cfg.PollInitialDelay,
		MaxDelay:     cfg.PollMaxDelay,
		Multiplier:   cfg.PollMultiplier,
		WallClock:    cfg.PollWallClock,
	}, &logger)
	hook := pipeline.NewHook(saver, &logger)

	slot := orchestrator.NewSlot()
	gate := source.NewGate()
	registry := orchestrator.NewRegistry()
	runner := orchestrator.NewRunner(slot, gate, resolver, router, poller, hook, engine, registry, &logger, orchestrator.Config{
		MaxPollAttempts: cfg.PollMaxAttempts,
		GenerationCost:  cfg.GenerationCost,
	})

	app := &handlers.App{
		Slot:     slot,
		Gate:     gate,
		Runner:   runner,
		Registry: registry,
		Engine:   engine,
		Flags:    flagStore,
		Logger:   &logger,
	}

	var lookup middleware.CountryLookup
	if geoResolver != nil {
		lookup = geoResolver.CountryCode
	}
	handler := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, handler)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// routesFor wires every capability through the same backend pair. Capability
// routing stays per-family in the flag store; separate adapters per family
// can be introduced here without touching the router.
func routesFor(newBackend, legacyBackend pipeline.Backend) map[domain.Capability]pipeline.Route {
	routes := make(map[domain.Capability]pipeline.Route, len(domain.Capabilities()))
	for _, capability := range domain.Capabilities() {
		routes[capability] = pipeline.Route{New: newBackend, Legacy: legacyBackend}
	}
	return routes
}
