package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Output document names written under ProcessedDataDir.
const (
	AppsCleanFile      = "apps_metadata_clean.json"
	ReviewsCleanFile   = "apps_reviews_clean.json"
	AppsHistoryFile    = "apps_metadata_scd2.json"
	AppsMetricsFile    = "apps_with_metrics.json"
	AppsMetricsCSVFile = "apps_with_metrics.csv"
	DimAppsFile        = "dim_apps.json"
	DimCategoriesFile  = "dim_categories.json"
	DimDevelopersFile  = "dim_developers.json"
	DimDateFile        = "dim_date.json"
	FactReviewsFile    = "fact_reviews.json"
	QualityReportFile  = "quality_report.json"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at process start and handed to every component that needs it.
type Config struct {
	RawDataDir       string
	ProcessedDataDir string

	AppsRawFile    string
	ReviewsRawFile string

	SupplementalAppsCSV    string
	SupplementalReviewsCSV string

	LogLevel string

	WarehouseDriver  string
	SQLitePath       string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SearchQuery        string
	PlayLang           string
	PlayCountry        string
	MaxApps            int
	MaxReviewsPerApp   int
	MaxConcurrency     int
	RateLimitMs        int
	MaxRetries         int
	BreakerMaxFailures int
	ChromeBin          string
	Headless           bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	rawDir := getEnv("RAW_DATA_DIR", filepath.Join("DATA", "raw"))

	return &Config{
		RawDataDir:       rawDir,
		ProcessedDataDir: getEnv("PROCESSED_DATA_DIR", filepath.Join("DATA", "processed")),

		AppsRawFile:    getEnv("APPS_RAW_FILE", filepath.Join(rawDir, "apps_metadata.json")),
		ReviewsRawFile: getEnv("REVIEWS_RAW_FILE", filepath.Join(rawDir, "apps_reviews.json")),

		SupplementalAppsCSV:    getEnv("SUPPLEMENTAL_APPS_CSV", ""),
		SupplementalReviewsCSV: getEnv("SUPPLEMENTAL_REVIEWS_CSV", ""),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		WarehouseDriver:  strings.ToLower(getEnv("WAREHOUSE_DRIVER", "")),
		SQLitePath:       getEnv("SQLITE_PATH", filepath.Join("DATA", "warehouse.db")),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "etl"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "etl123"),
		PostgresDB:       getEnv("POSTGRES_DB", "playstore"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SearchQuery:        getEnv("SEARCH_QUERY", "AI note taking"),
		PlayLang:           getEnv("PLAY_LANG", "en"),
		PlayCountry:        getEnv("PLAY_COUNTRY", "us"),
		MaxApps:            getEnvInt("MAX_APPS", 50),
		MaxReviewsPerApp:   getEnvInt("MAX_REVIEWS_PER_APP", 5000),
		MaxConcurrency:     getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:        getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		BreakerMaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
		ChromeBin:          getEnv("CHROME_BIN", ""),
		Headless:           getEnvBool("HEADLESS", true),
	}
}

// ProcessedPath joins name onto the processed output directory.
func (c *Config) ProcessedPath(name string) string {
	return filepath.Join(c.ProcessedDataDir, name)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
