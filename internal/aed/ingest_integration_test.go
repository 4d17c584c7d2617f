//go:build integration

package aed

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/models"
	"github.com/openaedmap/openaedmap-go/internal/osm"
	"github.com/openaedmap/openaedmap-go/internal/tile"
)

var testDB *db.DB

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgis/postgis:16-3.4-alpine",
		postgres.WithDatabase("openaedmap_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	cfg := db.DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	testDB, err = db.New(ctx, cfg, zerolog.New(zerolog.NewConsoleWriter()))
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		testDB.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), "TRUNCATE aed, country, state")
	require.NoError(t, err)
	return testDB
}

// stubFetcher serves scripted snapshot and diff payloads.
type stubFetcher struct {
	elements   []osm.OverpassElement
	snapshotTS float64

	actions []osm.NodeAction
	diffTS  float64
}

func (f *stubFetcher) QueryOverpass(context.Context, string, time.Duration, bool) ([]osm.OverpassElement, float64, error) {
	return f.elements, f.snapshotTS, nil
}

func (f *stubFetcher) GetPlanetDiffs(context.Context, float64) ([]osm.NodeAction, float64, error) {
	return f.actions, f.diffTS, nil
}

func insertTestCountry(t *testing.T, database *db.DB) {
	t.Helper()
	err := database.ExecTx(context.Background(), func(tx pgx.Tx) error {
		return database.ReplaceAllCountriesTx(context.Background(), tx, []models.Country{{
			Code:  "PL",
			Names: map[string]string{"default": "Poland"},
			Geometry: orb.Polygon{orb.Ring{
				{14, 49}, {24, 49}, {24, 55}, {14, 55}, {14, 49},
			}},
			LabelPosition: orb.Point{19, 52},
		}})
	})
	require.NoError(t, err)
}

func defibElement(id, version int64, lon, lat float64) osm.OverpassElement {
	return osm.OverpassElement{
		Type: "node", ID: id, Version: version, Lon: lon, Lat: lat,
		Tags: map[string]string{"emergency": "defibrillator", "access": "yes"},
	}
}

// TestSnapshotThenDiffThenTile walks the whole pipeline: an Overpass
// snapshot load, a replication diff on top of it, and a tile rendered from
// the result.
func TestSnapshotThenDiffThenTile(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	insertTestCountry(t, database)

	now := float64(time.Now().Unix())
	fetcher := &stubFetcher{
		elements: []osm.OverpassElement{
			defibElement(1, 1, 21.0, 52.2),
			defibElement(2, 1, 21.01, 52.21),
		},
		snapshotTS: now - 60,
	}

	service := NewService(database)
	ingestor := NewIngestor(database, fetcher, 30*time.Second, time.Hour, 5*time.Minute, service.InvalidateCounts, zerolog.Nop())

	// fresh database: the first run must rebuild from the snapshot
	require.NoError(t, ingestor.Update(ctx))

	state, err := database.GetState(ctx, "aed")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, now-60, state.UpdateTimestamp)
	assert.Equal(t, models.AEDStateVersion, state.Version)

	count, err := service.CountByCountryCode(ctx, "PL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// diff window: node 1 modified, node 2 deleted, node 3 created
	modified := osm.Node{
		ID: 1, Version: 2, Lon: 21.0, Lat: 52.2,
		Tags: map[string]string{"emergency": "defibrillator", "access": "private"},
	}
	created := osm.Node{
		ID: 3, Version: 1, Lon: 21.02, Lat: 52.22,
		Tags: map[string]string{"emergency": "defibrillator"},
	}
	fetcher.actions = []osm.NodeAction{
		{Type: osm.ActionModify, Node: modified},
		{Type: osm.ActionDelete, Node: osm.Node{ID: 2, Version: 2}},
		{Type: osm.ActionCreate, Node: created},
	}
	fetcher.diffTS = now - 30

	require.NoError(t, ingestor.Update(ctx))

	_, err = service.GetByID(ctx, 2)
	assert.ErrorIs(t, err, db.ErrNotFound)

	aed1, err := service.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "private", aed1.Access())
	assert.Equal(t, []string{"PL"}, aed1.CountryCodes)

	aed3, err := service.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"PL"}, aed3.CountryCodes)

	// the count cache was invalidated by the diff run
	count, err = service.CountByCountryCode(ctx, "PL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	state, err = database.GetState(ctx, "aed")
	require.NoError(t, err)
	assert.Equal(t, now-30, state.UpdateTimestamp)

	// render the tile covering Warsaw at z=13
	z, x, y := uint32(13), uint32(4573), uint32(2698)
	bbox := tile.ToBBox(z, x, y).Extend(0.5)
	results, err := service.GetIntersectingBBox(ctx, bbox, tile.GroupEps(z))
	require.NoError(t, err)
	require.NotEmpty(t, results)

	data, err := tile.EncodeAEDTile(z, x, y, results)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

// TestDiffNoOpWhenStreamCurrent covers the idle path: upstream timestamp
// not newer than the stored one leaves the store untouched.
func TestDiffNoOpWhenStreamCurrent(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	now := float64(time.Now().Unix())
	// recent state within the rebuild threshold but past the update delay
	require.NoError(t, database.SetState(ctx, "aed", models.IngestState{
		UpdateTimestamp: now - 120,
		Version:         models.AEDStateVersion,
	}))

	fetcher := &stubFetcher{diffTS: now - 120}
	ingestor := NewIngestor(database, fetcher, 30*time.Second, time.Hour, 5*time.Minute, nil, zerolog.Nop())

	require.NoError(t, ingestor.Update(ctx))

	state, err := database.GetState(ctx, "aed")
	require.NoError(t, err)
	assert.Equal(t, now-120, state.UpdateTimestamp)

	aeds, err := database.GetAllAEDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, aeds)
}

// TestStaleSchemaVersionForcesRebuild covers the version gate: an old
// schema version triggers a snapshot even when the timestamp is recent.
func TestStaleSchemaVersionForcesRebuild(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	now := float64(time.Now().Unix())
	require.NoError(t, database.SetState(ctx, "aed", models.IngestState{
		UpdateTimestamp: now - 10,
		Version:         models.AEDStateVersion - 1,
	}))

	fetcher := &stubFetcher{
		elements:   []osm.OverpassElement{defibElement(5, 1, 10, 50)},
		snapshotTS: now,
	}
	ingestor := NewIngestor(database, fetcher, 30*time.Second, time.Hour, 5*time.Minute, nil, zerolog.Nop())

	require.NoError(t, ingestor.Update(ctx))

	aeds, err := database.GetAllAEDs(ctx)
	require.NoError(t, err)
	require.Len(t, aeds, 1)
	assert.EqualValues(t, 5, aeds[0].ID)

	state, err := database.GetState(ctx, "aed")
	require.NoError(t, err)
	assert.Equal(t, models.AEDStateVersion, state.Version)
}
