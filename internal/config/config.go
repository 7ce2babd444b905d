package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	// DatabaseURL selects the Postgres product source. When empty, products
	// are loaded from ProductsFile instead.
	DatabaseURL  string
	ProductsFile string

	// Market data files.
	MarketRankingFile string
	MarketMonthlyFile string

	// Google geocoding key. When empty the Open-Meteo geocoder is used.
	GeocoderAPIKey string
	GeocoderHint   string

	// Ranking parameters.
	ReferenceYear    int
	TopN             int
	PopularityWeight float64

	// Outbound fetch behaviour.
	FetchConcurrency int
	FetchMaxAttempts int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	HTTPTimeout      time.Duration

	// Cache prewarm scheduler.
	PrewarmMunicipalities []string
	PrewarmInterval       time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ProductsFile = getenvDefault("PRODUCTS_FILE", "data/productos.json")

	cfg.MarketRankingFile = getenvDefault("MARKET_RANKING_FILE", "data/Puntuacion.json")
	cfg.MarketMonthlyFile = getenvDefault("MARKET_MONTHLY_FILE", "data/DatosMensuales.json")

	cfg.GeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.GeocoderHint = getenvDefault("GEOCODER_COUNTRY", "Colombia")

	cfg.ReferenceYear = getenvInt("REFERENCE_YEAR", 2024)
	cfg.TopN = getenvInt("TOP_N", 3)

	weightStr := getenvDefault("POPULARITY_WEIGHT", "0.4")
	weight, err := strconv.ParseFloat(weightStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid POPULARITY_WEIGHT: %w", err)
	}
	cfg.PopularityWeight = weight

	cfg.FetchConcurrency = getenvInt("FETCH_CONCURRENCY", 3)
	cfg.FetchMaxAttempts = getenvInt("FETCH_MAX_ATTEMPTS", 3)

	cfg.BackoffInitial, err = getenvDuration("FETCH_BACKOFF_INITIAL", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.BackoffMax, err = getenvDuration("FETCH_BACKOFF_MAX", 4*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PREWARM_MUNICIPALITIES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.PrewarmMunicipalities = append(cfg.PrewarmMunicipalities, name)
			}
		}
	}
	cfg.PrewarmInterval, err = getenvDuration("PREWARM_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
