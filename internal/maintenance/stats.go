// Package maintenance runs periodic database upkeep on the primary
// worker.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StatsStore defines the interface for planner statistics upkeep.
type StatsStore interface {
	Analyze(ctx context.Context, tables ...string) error
}

// StatsScheduler refreshes planner statistics for the spatial tables on a
// daily schedule. The ingest pipelines analyze after their own bulk
// writes; this covers long diff-only stretches where row distribution
// drifts without a rebuild.
type StatsScheduler struct {
	store   StatsStore
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
}

// NewStatsScheduler creates a statistics upkeep scheduler.
func NewStatsScheduler(store StatsStore, logger zerolog.Logger) *StatsScheduler {
	return &StatsScheduler{
		store:  store,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// Start begins the daily schedule at 3:00 AM UTC.
func (s *StatsScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("stats scheduler already running")
	}

	_, err := s.cron.AddFunc("0 3 * * *", s.runAnalyze)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Msg("stats scheduler started (daily at 03:00 UTC)")
	return nil
}

// Stop stops the scheduler gracefully.
func (s *StatsScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping stats scheduler")
	return s.cron.Stop()
}

// runAnalyze refreshes statistics for the spatial tables.
func (s *StatsScheduler) runAnalyze() {
	ctx := context.Background()

	if err := s.store.Analyze(ctx, "aed", "country"); err != nil {
		s.logger.Error().Err(err).Msg("statistics refresh failed")
		return
	}

	s.logger.Info().Msg("statistics refresh completed")
}

// RunNow triggers an immediate refresh (useful for testing).
func (s *StatsScheduler) RunNow() {
	s.runAnalyze()
}
