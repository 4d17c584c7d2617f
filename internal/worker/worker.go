// Package worker elects a single primary ingest process per deployment
// through an advisory file lock. Secondary workers serve reads only and
// wait for the primary's state gate before accepting traffic.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// State is the primary's lifecycle phase, persisted next to the lock file.
type State string

const (
	// StateStartup is written by the freshly elected primary before its
	// first ingest cycle completes.
	StateStartup State = "startup"
	// StateRunning opens the gate for secondary workers.
	StateRunning State = "running"
)

const pollInterval = 100 * time.Millisecond

// ErrNotPrimary is returned when a secondary attempts a primary-only action.
var ErrNotPrimary = errors.New("not the primary worker")

// Coordinator owns the election files inside the data directory.
type Coordinator struct {
	lockPath  string
	pidPath   string
	statePath string
	lockFD    int
	primary   bool
	logger    zerolog.Logger
}

// New creates a coordinator rooted at dataDir. Call Init to run the
// election.
func New(dataDir string, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		lockPath:  filepath.Join(dataDir, "worker.lock"),
		pidPath:   filepath.Join(dataDir, "worker.pid"),
		statePath: filepath.Join(dataDir, "worker.state"),
		lockFD:    -1,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// IsPrimary reports whether this process won the election.
func (c *Coordinator) IsPrimary() bool {
	return c.primary
}

// Init attempts a non-blocking exclusive lock. The winner becomes primary
// and publishes its PID with the startup state; losers wait until a live
// primary has published both files. The kernel releases the lock if the
// primary dies, so the next process restart can take over.
func (c *Coordinator) Init(ctx context.Context) error {
	fd, err := unix.Open(c.lockPath, unix.O_RDONLY|unix.O_CREAT|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", c.lockPath, err)
	}

	err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		c.lockFD = fd
		c.primary = true

		if err := os.WriteFile(c.statePath, []byte(StateStartup), 0o644); err != nil {
			return fmt.Errorf("write state file: %w", err)
		}
		if err := os.WriteFile(c.pidPath, []byte(fmt.Sprint(os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}

		c.logger.Info().Int("pid", os.Getpid()).Msg("elected primary worker")
		return nil

	case errors.Is(err, unix.EWOULDBLOCK):
		_ = unix.Close(fd)
		c.primary = false
		c.logger.Info().Msg("primary lock held elsewhere, running as secondary")
		return c.waitForPrimary(ctx)

	default:
		_ = unix.Close(fd)
		return fmt.Errorf("flock %s: %w", c.lockPath, err)
	}
}

// waitForPrimary polls until the primary has published a live PID and the
// state file exists.
func (c *Coordinator) waitForPrimary(ctx context.Context) error {
	for {
		pid, err := os.ReadFile(c.pidPath)
		if err == nil && len(pid) > 0 {
			if _, err := os.Stat(c.statePath); err == nil && processAlive(string(pid)) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func processAlive(pid string) bool {
	info, err := os.Stat("/proc/" + strings.TrimSpace(pid))
	return err == nil && info.IsDir()
}

// SetState publishes a new lifecycle phase. Primary only.
func (c *Coordinator) SetState(state State) error {
	if !c.primary {
		return ErrNotPrimary
	}
	if err := os.WriteFile(c.statePath, []byte(state), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	c.logger.Info().Str("state", string(state)).Msg("worker state changed")
	return nil
}

// GetState reads the published lifecycle phase.
func (c *Coordinator) GetState() (State, error) {
	data, err := os.ReadFile(c.statePath)
	if err != nil {
		return "", fmt.Errorf("read state file: %w", err)
	}
	return State(strings.TrimSpace(string(data))), nil
}

// WaitForState blocks until the published state matches.
func (c *Coordinator) WaitForState(ctx context.Context, state State) error {
	for {
		current, err := c.GetState()
		if err == nil && current == state {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Close releases the election lock.
func (c *Coordinator) Close() {
	if c.lockFD >= 0 {
		_ = unix.Close(c.lockFD)
		c.lockFD = -1
	}
}
