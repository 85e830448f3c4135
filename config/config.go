package config

import (
	"os"
	"strconv"
	"time"

	"jdevries/prijswachter/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// HTTP API configuration
	HTTPAddr string

	// SQLite configuration
	DBPath string

	// Redis configuration (price change events)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (scraper rate-limit guard)
	MemcacheAddr string

	// Scraper configuration
	ScrapeInterval time.Duration

	// URLs for the different site scrapers
	AHBrandsURL          string
	AHCategoriesURL      string
	AldiURL              string
	SupermarktscannerURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	scrapeInterval, _ := strconv.Atoi(getEnv("SCRAPE_INTERVAL_SECONDS", "3600"))

	return Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DBPath:               getEnv("DB_PATH", "prijswachter.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "pricechanges"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ScrapeInterval:       time.Duration(scrapeInterval) * time.Second,
		AHBrandsURL:          getEnv("AH_BRANDS_URL", "https://www.ah.nl/merken"),
		AHCategoriesURL:      getEnv("AH_CATEGORIES_URL", "https://www.ah.nl/producten"),
		AldiURL:              getEnv("ALDI_URL", "https://www.aldi.nl/producten.html"),
		SupermarktscannerURL: getEnv("SUPERMARKTSCANNER_URL", "https://www.supermarktscanner.nl/aanbiedingen"),
		Environment:          getEnv("PRIJSWACHTER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the services cannot work with
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.NewConfiguration("DB_PATH must not be empty", nil)
	}
	if c.HTTPAddr == "" {
		return errors.NewConfiguration("HTTP_ADDR must not be empty", nil)
	}
	if c.ScrapeInterval < time.Second {
		return errors.NewConfiguration("SCRAPE_INTERVAL_SECONDS must be at least 1", nil)
	}
	if c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.RedisStreamMaxLength < 1 {
		return errors.NewConfiguration("REDIS_STREAM_MAX_LENGTH must be at least 1", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
