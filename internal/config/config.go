// Package config provides configuration management for the OpenAEDMap server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// Upstream defaults. Each can be overridden through the environment,
// which the tests and self-hosted mirrors rely on.
const (
	DefaultOverpassURL    = "https://overpass-api.de/api/interpreter"
	DefaultReplicationURL = "https://planet.openstreetmap.org/replication/minute/"
	DefaultCountriesURL   = "https://raw.githubusercontent.com/Zaczero/osm-countries-geojson/main/geojson/osm-countries-0-01.geojson.zst"
)

// Tile zoom bounds and cache classes. The tile endpoint rejects requests
// outside [TileMinZ, TileMaxZ]; tiles at or below TileCountriesMaxZ render
// country polygons instead of individual defibrillators.
const (
	TileMinZ          = 3
	TileMaxZ          = 16
	TileCountriesMaxZ = 5

	MVTExtent = 4096

	DefaultCacheMaxAge = time.Minute
	DefaultCacheStale  = 5 * time.Minute

	TileCountriesCacheMaxAge = 4 * time.Hour
	TileCountriesCacheStale  = 7 * 24 * time.Hour
	TileAEDsCacheStale       = 3 * 24 * time.Hour
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Environment Environment
	DataDir     string // working directory for worker lock/state files
	RedisURL    string // empty disables the shared response cache

	OverpassURL    string
	ReplicationURL string
	CountriesURL   string

	// CountryUpdateDelay is the pause between country ingest runs.
	CountryUpdateDelay time.Duration
	// AEDUpdateDelay is the pause between AED ingest runs.
	AEDUpdateDelay time.Duration
	// AEDRebuildThreshold is the state age past which the AED ingestor
	// abandons diffs and rebuilds from an Overpass snapshot.
	AEDRebuildThreshold time.Duration
	// PlanetDiffTimeout bounds one whole multi-file diff window.
	PlanetDiffTimeout time.Duration

	RateLimitRequests int64
	RateLimitPeriod   string
	AllowedOrigins    []string
}

// Load reads server configuration from environment variables.
func Load() Config {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	countryDelayDays := getEnvFloat("COUNTRY_UPDATE_DELAY", 1)
	if countryDelayDays <= 0 {
		countryDelayDays = 1
	}

	rateLimitRequests := getEnvInt64("RATE_LIMIT_REQUESTS", 100)
	if rateLimitRequests <= 0 {
		rateLimitRequests = 100
	}

	var origins []string
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	return Config{
		Environment:         env,
		DataDir:             getEnv("DATA_DIR", "data"),
		RedisURL:            os.Getenv("REDIS_URL"),
		OverpassURL:         getEnv("OVERPASS_API_URL", DefaultOverpassURL),
		ReplicationURL:      normalizeBaseURL(getEnv("REPLICATION_URL", DefaultReplicationURL)),
		CountriesURL:        getEnv("COUNTRIES_GEOJSON_URL", DefaultCountriesURL),
		CountryUpdateDelay:  time.Duration(countryDelayDays * 24 * float64(time.Hour)),
		AEDUpdateDelay:      getEnvDuration("AED_UPDATE_DELAY", 30*time.Second),
		AEDRebuildThreshold: getEnvDuration("AED_REBUILD_THRESHOLD", time.Hour),
		PlanetDiffTimeout:   getEnvDuration("PLANET_DIFF_TIMEOUT", 5*time.Minute),
		RateLimitRequests:   rateLimitRequests,
		RateLimitPeriod:     getEnv("RATE_LIMIT_PERIOD", "1m"),
		AllowedOrigins:      origins,
	}
}

// normalizeBaseURL guarantees a trailing slash so sequence paths can be
// appended directly.
func normalizeBaseURL(u string) string {
	if !strings.HasSuffix(u, "/") {
		return u + "/"
	}
	return u
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt64 reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration from an environment variable, returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// getEnvFloat reads a float from an environment variable, returning the default if unset or invalid.
func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
