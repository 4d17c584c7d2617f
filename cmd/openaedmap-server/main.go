// Command openaedmap-server runs the OpenAEDMap backend: the OSM ingest
// workers and the read-only HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/ringsaturn/tzf"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openaedmap/openaedmap-go/internal/aed"
	"github.com/openaedmap/openaedmap-go/internal/api"
	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/country"
	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/maintenance"
	"github.com/openaedmap/openaedmap-go/internal/osm"
	"github.com/openaedmap/openaedmap-go/internal/worker"
)

// Build information, injected at link time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "openaedmap-server",
		Short:        "OpenAEDMap backend server",
		Long:         "Ingests defibrillator nodes from OpenStreetMap and serves them as vector tiles and GeoJSON.",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest workers and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "openaedmap-server %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

func serve(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Environment).With().Str("version", version).Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.New(ctx, db.DefaultConfig(dbURL), logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	coordinator := worker.New(cfg.DataDir, logger)
	if err := coordinator.Init(ctx); err != nil {
		return fmt.Errorf("worker election: %w", err)
	}
	defer coordinator.Close()

	if coordinator.IsPrimary() {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	aedService := aed.NewService(database)
	countryService := country.NewService(database)

	osmClient := osm.NewClient(osm.Config{
		OverpassURL:    cfg.OverpassURL,
		ReplicationURL: cfg.ReplicationURL,
		CountriesURL:   cfg.CountriesURL,
		Version:        version,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	if coordinator.IsPrimary() {
		reassign := func(ctx context.Context) error {
			if err := database.AssignCountryCodesAll(ctx); err != nil {
				return err
			}
			aedService.InvalidateCounts()
			return nil
		}

		countryTask := country.NewIngestor(database, osmClient, cfg.CountryUpdateDelay, reassign, logger).Task()
		aedTask := aed.NewIngestor(database, osmClient, cfg.AEDUpdateDelay, cfg.AEDRebuildThreshold, cfg.PlanetDiffTimeout, aedService.InvalidateCounts, logger).Task()

		// The running state opens the gate for secondary workers once both
		// pipelines have data.
		var pending sync.WaitGroup
		pending.Add(2)
		go func() {
			pending.Wait()
			if err := coordinator.SetState(worker.StateRunning); err != nil {
				logger.Error().Err(err).Msg("publish running state")
			}
		}()

		g.Go(func() error { return countryTask.Loop(gctx, logger, pending.Done) })
		g.Go(func() error { return aedTask.Loop(gctx, logger, pending.Done) })

		stats := maintenance.NewStatsScheduler(database, logger)
		if err := stats.Start(); err != nil {
			return fmt.Errorf("start stats scheduler: %w", err)
		}
		defer func() { <-stats.Stop().Done() }()
	} else {
		logger.Info().Msg("secondary worker, waiting for primary")
		if err := coordinator.WaitForState(ctx, worker.StateRunning); err != nil {
			return fmt.Errorf("wait for primary: %w", err)
		}
	}

	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return fmt.Errorf("initialize timezone finder: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
	}

	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := api.NewRouter(api.Config{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		Version:           version,
		Commit:            commit,
		BuildDate:         buildDate,
		DataDir:           cfg.DataDir,
	}, api.Deps{
		Countries: countryService,
		AEDs:      aedService,
		DB:        database,
		Timezone:  finder,
		Redis:     redisClient,
	}, logger)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g.Go(func() error {
		logger.Info().
			Str("addr", addr).
			Bool("primary", coordinator.IsPrimary()).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

// newLogger builds the process logger. Production emits JSON; everything
// else gets the console writer.
func newLogger(env config.Environment) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var w io.Writer = os.Stdout
	if env != config.EnvProduction {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).With().Timestamp().Logger()
}
