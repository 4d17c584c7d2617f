// Package scheduler runs the long-lived ingest tasks with exponential
// backoff retry.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/metrics"
)

// maxBackoff caps the retry sleep interval.
const maxBackoff = 4 * time.Hour

// RetryExponential runs fn until it succeeds, sleeping between attempts
// starting at start and doubling each time. A non-zero timeout bounds the
// whole retry span; when the next sleep would exceed it, the original
// error propagates. Zero retries forever. Context cancellation always wins.
func RetryExponential(ctx context.Context, logger zerolog.Logger, name string, timeout, start time.Duration, fn func(context.Context) error) error {
	began := time.Now()
	sleep := start

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		if timeout > 0 && time.Since(began)+sleep > timeout {
			return err
		}

		logger.Warn().Err(err).Str("task", name).Dur("retry_in", sleep).Msg("task attempt failed")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleep):
		}

		sleep *= 2
		if sleep > maxBackoff {
			sleep = maxBackoff
		}
	}
}

// Task is a long-lived background job that updates the database and then
// sleeps a fixed delay between iterations.
type Task struct {
	Name string
	// Delay is the pause between successful iterations.
	Delay time.Duration
	// RetryStart seeds the backoff for failed iterations.
	RetryStart time.Duration
	// Fresh reports whether the persisted state is already recent, which
	// lets the worker announce readiness before the first iteration.
	Fresh func(ctx context.Context) (bool, error)
	// Run performs one update iteration.
	Run func(ctx context.Context) error
}

// Loop runs the task until the context is cancelled. The started callback
// fires exactly once: immediately when the state is already fresh,
// otherwise after the first successful iteration.
func (t *Task) Loop(ctx context.Context, logger zerolog.Logger, started func()) error {
	log := logger.With().Str("task", t.Name).Logger()

	announced := false
	announce := func() {
		if !announced {
			announced = true
			if started != nil {
				started()
			}
		}
	}

	if t.Fresh != nil {
		fresh, err := t.Fresh(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("freshness check failed")
		} else if fresh {
			announce()
		}
	}

	retryStart := t.RetryStart
	if retryStart <= 0 {
		retryStart = time.Second
	}

	run := func(ctx context.Context) error {
		timer := prometheus.NewTimer(metrics.IngestDuration.WithLabelValues(t.Name))
		err := t.Run(ctx)
		timer.ObserveDuration()

		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.IngestRuns.WithLabelValues(t.Name, outcome).Inc()
		return err
	}

	for {
		// retry forever; only cancellation breaks the loop
		if err := RetryExponential(ctx, log, t.Name, 0, retryStart, run); err != nil {
			return err
		}
		announce()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.Delay):
		}
	}
}
