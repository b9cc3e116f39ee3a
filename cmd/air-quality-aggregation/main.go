package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality/providers"
	httpapi "github.com/yuhsiangw/air-quality-aggregation/internal/api/http"
	"github.com/yuhsiangw/air-quality-aggregation/internal/config"
	"github.com/yuhsiangw/air-quality-aggregation/internal/jobs"
	"github.com/yuhsiangw/air-quality-aggregation/internal/scheduler"
	"github.com/yuhsiangw/air-quality-aggregation/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// In-memory snapshot store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Providers with resilience (backoff + circuit breaker).
	provs := []airquality.Provider{
		providers.NewWeatherLinkProvider(httpClient,
			cfg.WeatherLinkAPIKey, cfg.WeatherLinkAPISecret, cfg.WeatherLinkStationID,
			cfg.Timezone, cfg.DayRequestDelay),
		providers.NewMoenvProvider(httpClient,
			cfg.MoenvAPIToken, cfg.Timezone, cfg.PageRequestDelay),
	}

	// Core service orchestrating providers, aggregation and reports.
	service := airquality.NewService(memStore, provs, cfg.Report, cfg.Timezone, cfg.MaxQueryDays)

	// Scheduler that periodically refreshes the current snapshot.
	sched := scheduler.New(cfg.FetchInterval, cfg.HTTPTimeout, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Background runner for long historical queries.
	runner := jobs.NewRunner(time.Hour)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "air-quality-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "air-quality-aggregation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, runner, cfg.Timezone)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
