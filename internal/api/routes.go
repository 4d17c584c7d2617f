// Package api provides the read-only HTTP surface of the OpenAEDMap
// server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/api/handlers"
	"github.com/openaedmap/openaedmap-go/internal/api/middleware"
	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/metrics"
)

// Config holds configuration for the API router.
type Config struct {
	// AllowedOrigins for CORS. Empty allows all origins; the API is a
	// public read-only surface.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m").
	RateLimitPeriod string
	// Version information for the version endpoint and X-Version header.
	Version   string
	Commit    string
	BuildDate string
	// DataDir is reported by the health detail endpoint.
	DataDir string
}

// Deps are the services the endpoints read from.
type Deps struct {
	Countries handlers.CountryService
	AEDs      handlers.AEDService
	DB        handlers.DatabaseHealthChecker
	Timezone  handlers.TimezoneFinder
	// Redis enables the shared response cache when set.
	Redis *redis.Client
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a Router with the given dependencies.
func NewRouter(cfg Config, deps Deps, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	r.Engine.Use(middleware.VersionHeader(cfg.Version))

	healthHandler := handlers.NewHealthHandler(deps.DB, cfg.DataDir, logger)
	healthHandler.RegisterRoutes(r.Engine)

	r.Engine.GET("/metrics", metrics.Handler())

	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.DefaultCacheControl(config.DefaultCacheMaxAge, config.DefaultCacheStale))
	if deps.Redis != nil {
		apiV1.Use(middleware.ResponseCache(deps.Redis, logger))
	}

	handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, logger).RegisterRoutes(apiV1)
	handlers.NewCountriesHandler(deps.Countries, deps.AEDs, logger).RegisterRoutes(apiV1)
	handlers.NewNodeHandler(deps.AEDs, deps.Timezone, logger).RegisterRoutes(apiV1)
	handlers.NewTileHandler(deps.Countries, deps.AEDs, logger).RegisterRoutes(apiV1)

	return r, nil
}
