package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsStore struct {
	calls [][]string
	err   error
}

func (f *fakeStatsStore) Analyze(_ context.Context, tables ...string) error {
	f.calls = append(f.calls, tables)
	return f.err
}

func TestStatsSchedulerRunNow(t *testing.T) {
	store := &fakeStatsStore{}
	s := NewStatsScheduler(store, zerolog.Nop())

	s.RunNow()

	require.Len(t, store.calls, 1)
	assert.Equal(t, []string{"aed", "country"}, store.calls[0])
}

func TestStatsSchedulerRunNowError(t *testing.T) {
	store := &fakeStatsStore{err: errors.New("db down")}
	s := NewStatsScheduler(store, zerolog.Nop())

	// errors are logged, not propagated
	s.RunNow()
	require.Len(t, store.calls, 1)
}

func TestStatsSchedulerFiresAtThreeUTC(t *testing.T) {
	store := &fakeStatsStore{}
	s := NewStatsScheduler(store, zerolog.Nop())

	require.NoError(t, s.Start())
	defer func() { <-s.Stop().Done() }()

	entries := s.cron.Entries()
	require.Len(t, entries, 1)

	// the next fire time must be 03:00 in UTC, regardless of the
	// process-local timezone
	next := entries[0].Next.UTC()
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, time.UTC, s.cron.Location())
}

func TestStatsSchedulerStartStop(t *testing.T) {
	store := &fakeStatsStore{}
	s := NewStatsScheduler(store, zerolog.Nop())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	<-s.Stop().Done()
}
