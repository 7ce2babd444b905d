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
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	httpapi "github.com/JuanD1P/AGRO-SABANA/internal/api/http"
	"github.com/JuanD1P/AGRO-SABANA/internal/climate"
	"github.com/JuanD1P/AGRO-SABANA/internal/config"
	"github.com/JuanD1P/AGRO-SABANA/internal/fetch"
	"github.com/JuanD1P/AGRO-SABANA/internal/market"
	"github.com/JuanD1P/AGRO-SABANA/internal/products"
	"github.com/JuanD1P/AGRO-SABANA/internal/recommend"
	"github.com/JuanD1P/AGRO-SABANA/internal/scheduler"
	"github.com/JuanD1P/AGRO-SABANA/pkg/metrics"
)

func main() {
	// Load configuration (godotenv runs inside Load).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	collector := metrics.NewCollector("agrosabana")

	// Shared resilient client for all Open-Meteo calls.
	client := fetch.NewClient(fetch.Config{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: fetch.BackoffConfig{
			MaxAttempts:     cfg.FetchMaxAttempts,
			InitialInterval: cfg.BackoffInitial,
			MaxInterval:     cfg.BackoffMax,
		},
		Metrics: collector,
	})

	climateSvc := climate.NewService(climate.ServiceConfig{Client: client})

	var geocoder climate.Resolver
	if cfg.GeocoderAPIKey != "" {
		geocoder = climate.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.GeocoderHint)
	} else {
		geocoder = climate.NewOpenMeteoGeocoder(client)
	}

	// Market tables are optional: without them the market factor degrades.
	table, err := market.Load(cfg.MarketRankingFile, cfg.MarketMonthlyFile)
	if err != nil {
		log.Printf("WARN: market data unavailable, ranking without market factor: %v", err)
		table = nil
	}

	var source products.Source
	switch {
	case cfg.DatabaseURL != "":
		db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		source = products.NewPostgresSource(db)
	case cfg.ProductsFile != "":
		mem, err := products.LoadMemorySource(cfg.ProductsFile)
		if err != nil {
			log.Fatalf("failed to load products file: %v", err)
		}
		source = mem
	default:
		log.Fatal("no product source configured: set DATABASE_URL or PRODUCTS_FILE")
	}

	recommender := recommend.NewService(recommend.Config{
		Products:         source,
		Climate:          climateSvc,
		Geocoder:         geocoder,
		Market:           table,
		Metrics:          collector,
		ReferenceYear:    cfg.ReferenceYear,
		Concurrency:      cfg.FetchConcurrency,
		PopularityWeight: cfg.PopularityWeight,
		DefaultTopN:      cfg.TopN,
	})

	// Scheduler that keeps the climate cache warm for popular municipalities.
	sched := scheduler.New(cfg.PrewarmMunicipalities, cfg.PrewarmInterval, recommender)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "agrosabana",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
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
			"service": "agrosabana",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Services{
		Recommender: recommender,
		Products:    source,
		Climate:     climateSvc,
		Geocoder:    geocoder,
		Metrics:     collector,
	})

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
