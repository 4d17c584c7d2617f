package aed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/models"
	"github.com/openaedmap/openaedmap-go/internal/osm"
	"github.com/openaedmap/openaedmap-go/internal/scheduler"
)

const stateKey = "aed"

// smallReassignLimit bounds the per-id country code reassignment; larger
// batches fall back to the bulk statement, which the planner handles
// better than a huge id list.
const smallReassignLimit = 200

// Fetcher is the upstream surface the ingestor needs.
type Fetcher interface {
	QueryOverpass(ctx context.Context, query string, timeout time.Duration, mustReturn bool) ([]osm.OverpassElement, float64, error)
	GetPlanetDiffs(ctx context.Context, lastUpdate float64) ([]osm.NodeAction, float64, error)
}

// Ingestor keeps the AED table following the OSM minute replication
// stream, rebuilding from an Overpass snapshot when it falls too far
// behind.
type Ingestor struct {
	db               *db.DB
	fetcher          Fetcher
	updateDelay      time.Duration
	rebuildThreshold time.Duration
	diffTimeout      time.Duration
	// invalidate drops derived caches after every write batch.
	invalidate func()
	logger     zerolog.Logger
}

// NewIngestor wires an AED ingestor. The invalidate callback runs after
// every write batch; nil disables it.
func NewIngestor(database *db.DB, fetcher Fetcher, updateDelay, rebuildThreshold, diffTimeout time.Duration, invalidate func(), logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		db:               database,
		fetcher:          fetcher,
		updateDelay:      updateDelay,
		rebuildThreshold: rebuildThreshold,
		diffTimeout:      diffTimeout,
		invalidate:       invalidate,
		logger:           logger.With().Str("component", "aed-ingest").Logger(),
	}
}

// Task adapts the ingestor to the scheduler loop contract.
func (i *Ingestor) Task() *scheduler.Task {
	return &scheduler.Task{
		Name:       "aed-update",
		Delay:      i.updateDelay,
		RetryStart: 4 * time.Second,
		Fresh:      i.fresh,
		Run:        i.Update,
	}
}

func (i *Ingestor) fresh(ctx context.Context) (bool, error) {
	_, storedTS, err := i.shouldUpdate(ctx)
	if err != nil {
		return false, err
	}
	return storedTS > 0, nil
}

// shouldUpdate checks the persisted state. Missing state or an older
// schema version forces a rebuild with a zero stored timestamp.
func (i *Ingestor) shouldUpdate(ctx context.Context) (bool, float64, error) {
	state, err := i.db.GetState(ctx, stateKey)
	if err != nil {
		return false, 0, err
	}
	if state == nil || state.Version < models.AEDStateVersion {
		return true, 0, nil
	}

	age := time.Since(time.Unix(int64(state.UpdateTimestamp), 0))
	if age > i.updateDelay {
		return true, state.UpdateTimestamp, nil
	}
	return false, state.UpdateTimestamp, nil
}

// Update runs one iteration: a full Overpass rebuild when the stored
// state is too old to catch up via diffs, otherwise a replication diff
// window.
func (i *Ingestor) Update(ctx context.Context) error {
	required, storedTS, err := i.shouldUpdate(ctx)
	if err != nil {
		return err
	}
	if !required {
		return nil
	}

	if time.Since(time.Unix(int64(storedTS), 0)) > i.rebuildThreshold {
		return i.updateSnapshot(ctx)
	}
	return i.updateDiffs(ctx, storedTS)
}

// updateSnapshot rebuilds the whole table from a bulk Overpass query.
func (i *Ingestor) updateSnapshot(ctx context.Context) error {
	i.logger.Info().Msg("updating aed database (overpass)")

	elements, dataTS, err := i.fetcher.QueryOverpass(ctx, osm.DefibrillatorQuery, osm.SnapshotTimeout, true)
	if err != nil {
		return err
	}

	aeds := make([]models.AED, 0, len(elements))
	for _, element := range elements {
		if !models.IsDefibrillator(element.Tags) {
			return fmt.Errorf("%w: unexpected non-defibrillator node %d", osm.ErrMalformedSnapshot, element.ID)
		}
		aeds = append(aeds, models.AED{
			ID:       element.ID,
			Version:  element.Version,
			Tags:     element.Tags,
			Position: orb.Point{element.Lon, element.Lat},
		})
	}

	err = i.db.ExecTx(ctx, func(tx pgx.Tx) error {
		if err := i.db.ReplaceAllAEDsTx(ctx, tx, aeds); err != nil {
			return err
		}
		return i.db.SetStateTx(ctx, tx, stateKey, models.IngestState{
			UpdateTimestamp: dataTS,
			Version:         models.AEDStateVersion,
		})
	})
	if err != nil {
		return err
	}

	if len(aeds) > 0 {
		i.logger.Info().Msg("updating country codes")
		if err := i.db.AssignCountryCodesAll(ctx); err != nil {
			return err
		}
		if err := i.db.Analyze(ctx, "aed"); err != nil {
			return err
		}
	}

	if i.invalidate != nil {
		i.invalidate()
	}

	i.logger.Info().Int("aeds", len(aeds)).Msg("aed update finished")
	return nil
}

// updateDiffs applies the replication window since lastUpdate.
func (i *Ingestor) updateDiffs(ctx context.Context, lastUpdate float64) error {
	i.logger.Info().Msg("updating aed database (diff)")

	diffCtx := ctx
	if i.diffTimeout > 0 {
		var cancel context.CancelFunc
		diffCtx, cancel = context.WithTimeout(ctx, i.diffTimeout)
		defer cancel()
	}

	actions, dataTS, err := i.fetcher.GetPlanetDiffs(diffCtx, lastUpdate)
	if err != nil {
		return err
	}
	if dataTS <= lastUpdate {
		i.logger.Info().Msg("replication stream up to date, nothing to update")
		return nil
	}

	upserts, removeIDs := planDiff(actions)

	err = i.db.ExecTx(ctx, func(tx pgx.Tx) error {
		if err := i.db.UpsertAEDsTx(ctx, tx, upserts); err != nil {
			return err
		}
		if err := i.db.DeleteAEDsTx(ctx, tx, removeIDs); err != nil {
			return err
		}
		return i.db.SetStateTx(ctx, tx, stateKey, models.IngestState{
			UpdateTimestamp: dataTS,
			Version:         models.AEDStateVersion,
		})
	})
	if err != nil {
		return err
	}

	if len(upserts) > 0 {
		i.logger.Info().Msg("updating country codes")
		if err := i.reassignCodes(ctx, upserts); err != nil {
			return err
		}
	}

	if i.invalidate != nil {
		i.invalidate()
	}

	i.logger.Info().
		Int("upserted", len(upserts)).
		Int("removed", len(removeIDs)).
		Msg("aed update finished")
	return nil
}

func (i *Ingestor) reassignCodes(ctx context.Context, upserts []models.AED) error {
	if len(upserts) > smallReassignLimit {
		return i.db.AssignCountryCodesAll(ctx)
	}

	ids := make([]int64, len(upserts))
	for n, aed := range upserts {
		ids[n] = aed.ID
	}
	return i.db.AssignCountryCodes(ctx, ids)
}

// planDiff reduces a diff window to one upsert per surviving node and the
// removal set. A node is removed when its action is a delete or when a
// modification drops the defibrillator marker; removals win over earlier
// upserts of the same id because deletes run after upserts.
func planDiff(actions []osm.NodeAction) ([]models.AED, []int64) {
	upserts := make(map[int64]models.AED)
	removed := make(map[int64]struct{})

	for _, action := range actions {
		node := action.Node
		switch action.Type {
		case osm.ActionCreate, osm.ActionModify:
			if !models.IsDefibrillator(node.Tags) {
				removed[node.ID] = struct{}{}
				continue
			}
			aed := models.AED{
				ID:       node.ID,
				Version:  node.Version,
				Tags:     node.Tags,
				Position: orb.Point{node.Lon, node.Lat},
			}
			if prev, ok := upserts[aed.ID]; !ok || prev.Version <= aed.Version {
				upserts[aed.ID] = aed
			}
		case osm.ActionDelete:
			removed[node.ID] = struct{}{}
		}
	}

	aeds := make([]models.AED, 0, len(upserts))
	for _, aed := range upserts {
		aeds = append(aeds, aed)
	}
	sort.Slice(aeds, func(a, b int) bool { return aeds[a].ID < aeds[b].ID })

	ids := make([]int64, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	return aeds, ids
}
