package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpfaria/vinecast/internal/alerts"
	httpapi "github.com/rpfaria/vinecast/internal/api/http"
	"github.com/rpfaria/vinecast/internal/api/ws"
	"github.com/rpfaria/vinecast/internal/bus"
	"github.com/rpfaria/vinecast/internal/collector"
	"github.com/rpfaria/vinecast/internal/config"
	"github.com/rpfaria/vinecast/internal/logger"
	"github.com/rpfaria/vinecast/internal/store"
	"github.com/rpfaria/vinecast/internal/vineyard"
	"github.com/rpfaria/vinecast/internal/weather"
	"github.com/rpfaria/vinecast/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel)
	mainLog := logger.WithComponent("main")

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey)
	if !provider.Configured() {
		mainLog.Warn().Msg("OPENWEATHER_API_KEY not set; collection cycles will fail")
	}

	// Repositories: Postgres when a DSN is configured, in-memory otherwise.
	var (
		readings  weather.Repository
		alertRepo alerts.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			mainLog.Fatal().Err(err).Msg("failed to open database")
		}
		readings = store.NewPostgresReadings(db)
		alertRepo = store.NewPostgresAlerts(db)
		mainLog.Info().Msg("using postgres repositories")
	} else {
		readings = store.NewMemoryReadings(cfg.StoreMaxHistory, cfg.StoreMaxAge)
		alertRepo = store.NewMemoryAlerts()
		mainLog.Info().Msg("using in-memory repositories")
	}

	manager := alerts.NewManager(alertRepo, cfg.AlertRetention, nil)
	engine := vineyard.NewEngine(cfg.Thresholds)
	hub := bus.New(cfg.Locations, readings)

	coll := collector.New(collector.Deps{
		Provider:     provider,
		Readings:     readings,
		Engine:       engine,
		Alerts:       manager,
		Hub:          hub,
		Locations:    cfg.Locations,
		Interval:     cfg.CollectionInterval,
		FetchTimeout: cfg.FetchTimeout,
		RetryBackoff: cfg.RetryBackoff,
		Workers:      cfg.CollectionWorkers,
	})
	if err := coll.Start(); err != nil {
		mainLog.Fatal().Err(err).Msg("failed to start collector")
	}
	defer coll.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "vinecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response; internal failure text is never
			// echoed to clients.
			code := fiber.StatusInternalServerError
			message := "internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": message,
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "vinecast",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Readings:  readings,
		Alerts:    manager,
		Collector: coll,
		Provider:  provider,
		Locations: cfg.Locations,
	})

	app.Use("/ws", ws.Upgrade)
	app.Get("/ws", ws.Handler(hub))

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			mainLog.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	mainLog.Info().Str("port", port).Msg("vinecast started")

	// Wait for termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	hub.BroadcastSystemMessage("service shutting down", "info")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("error during shutdown")
	}
}
