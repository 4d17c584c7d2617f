package country

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/models"
	"github.com/openaedmap/openaedmap-go/internal/osm"
	"github.com/openaedmap/openaedmap-go/internal/scheduler"
)

const stateKey = "country"

// minCountries guards against truncated upstream feeds. The planet has
// well over this many country-level boundaries.
const minCountries = 210

// Fetcher downloads the country polygon feed.
type Fetcher interface {
	FetchCountries(ctx context.Context) ([]osm.OSMCountry, error)
}

// Ingestor periodically refreshes the country table from the upstream
// feed.
type Ingestor struct {
	db      *db.DB
	fetcher Fetcher
	delay   time.Duration
	// reassign recomputes AED country codes after the polygons change.
	reassign func(ctx context.Context) error
	logger   zerolog.Logger
}

// NewIngestor wires a country ingestor. The reassign callback runs after
// every successful refresh; nil disables it.
func NewIngestor(database *db.DB, fetcher Fetcher, delay time.Duration, reassign func(ctx context.Context) error, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		db:       database,
		fetcher:  fetcher,
		delay:    delay,
		reassign: reassign,
		logger:   logger.With().Str("component", "country-ingest").Logger(),
	}
}

// Task adapts the ingestor to the scheduler loop contract.
func (i *Ingestor) Task() *scheduler.Task {
	return &scheduler.Task{
		Name:       "country-update",
		Delay:      i.delay,
		RetryStart: 4 * time.Second,
		Fresh:      i.fresh,
		Run:        i.Update,
	}
}

// fresh reports whether any prior refresh is on record, which lets the
// worker announce readiness before the first iteration completes.
func (i *Ingestor) fresh(ctx context.Context) (bool, error) {
	_, storedTS, err := i.shouldUpdate(ctx)
	if err != nil {
		return false, err
	}
	return storedTS > 0, nil
}

// shouldUpdate checks the persisted state. Missing state or an older
// schema version forces a refresh with a zero stored timestamp.
func (i *Ingestor) shouldUpdate(ctx context.Context) (bool, float64, error) {
	state, err := i.db.GetState(ctx, stateKey)
	if err != nil {
		return false, 0, err
	}
	if state == nil || state.Version < models.CountryStateVersion {
		return true, 0, nil
	}

	age := time.Since(time.Unix(int64(state.UpdateTimestamp), 0))
	if age > i.delay {
		return true, state.UpdateTimestamp, nil
	}
	return false, state.UpdateTimestamp, nil
}

// Update runs one refresh: fetch the feed, verify it moved forward and
// looks sane, replace the table atomically, then recompute AED country
// codes and refresh planner statistics.
func (i *Ingestor) Update(ctx context.Context) error {
	required, storedTS, err := i.shouldUpdate(ctx)
	if err != nil {
		return err
	}
	if !required {
		return nil
	}

	i.logger.Info().Msg("updating country database")

	features, err := i.fetcher.FetchCountries(ctx)
	if err != nil {
		return err
	}
	if len(features) == 0 || features[0].Timestamp <= storedTS {
		i.logger.Info().Msg("country feed not newer than stored state, nothing to update")
		return nil
	}
	if len(features) < minCountries {
		return fmt.Errorf("%w: only %d countries in feed", osm.ErrSuspiciousFeed, len(features))
	}

	dataTS := features[0].Timestamp
	countries := buildCountries(features)

	err = i.db.ExecTx(ctx, func(tx pgx.Tx) error {
		if err := i.db.ReplaceAllCountriesTx(ctx, tx, countries); err != nil {
			return err
		}
		return i.db.SetStateTx(ctx, tx, stateKey, models.IngestState{
			UpdateTimestamp: dataTS,
			Version:         models.CountryStateVersion,
		})
	})
	if err != nil {
		return err
	}

	if i.reassign != nil {
		i.logger.Info().Msg("updating country codes")
		if err := i.reassign(ctx); err != nil {
			return err
		}
	}

	if err := i.db.Analyze(ctx, "aed", "country"); err != nil {
		return err
	}

	i.logger.Info().Int("countries", len(countries)).Msg("country update finished")
	return nil
}

// buildCountries converts feed features into storable rows, assigning
// codes and localized names.
func buildCountries(features []osm.OSMCountry) []models.Country {
	assigner := NewCodeAssigner()

	countries := make([]models.Country, 0, len(features))
	for _, feature := range features {
		countries = append(countries, models.Country{
			Code:          assigner.Assign(feature.Tags),
			Names:         namesFromTags(feature.Tags),
			Geometry:      feature.Geometry,
			LabelPosition: feature.RepresentativePoint,
		})
	}
	return countries
}

// namesFromTags builds the localized names map. The default entry is the
// first of name:en, int_name, name; every name:XX tag is kept under its
// upper-cased language code.
func namesFromTags(tags map[string]string) map[string]string {
	names := make(map[string]string)

	for _, key := range [...]string{"name:en", "int_name", "name"} {
		if name := tags[key]; name != "" {
			names["default"] = name
			break
		}
	}

	for key, value := range tags {
		if lang, ok := strings.CutPrefix(key, "name:"); ok {
			names[strings.ToUpper(lang)] = value
		}
	}

	return names
}
