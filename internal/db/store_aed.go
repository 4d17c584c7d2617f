package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

const aedColumns = "id, version, tags, ST_AsBinary(position), country_codes"

func scanAED(row pgx.Row) (*models.AED, error) {
	var aed models.AED
	var position []byte

	if err := row.Scan(&aed.ID, &aed.Version, &aed.Tags, &position, &aed.CountryCodes); err != nil {
		return nil, err
	}

	point, err := unmarshalWKBPoint(position)
	if err != nil {
		return nil, err
	}
	aed.Position = point
	return &aed, nil
}

func collectAEDs(rows pgx.Rows) ([]models.AED, error) {
	defer rows.Close()

	var aeds []models.AED
	for rows.Next() {
		aed, err := scanAED(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aed: %w", err)
		}
		aeds = append(aeds, *aed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aeds: %w", err)
	}
	return aeds, nil
}

// GetAEDByID returns a single AED, or ErrNotFound.
func (db *DB) GetAEDByID(ctx context.Context, id int64) (*models.AED, error) {
	row := db.Pool.QueryRow(ctx, "SELECT "+aedColumns+" FROM aed WHERE id = $1", id)

	aed, err := scanAED(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get aed %d: %w", id, err)
	}
	return aed, nil
}

// GetAllAEDs returns every AED in the store.
func (db *DB) GetAllAEDs(ctx context.Context) ([]models.AED, error) {
	rows, err := db.Pool.Query(ctx, "SELECT "+aedColumns+" FROM aed")
	if err != nil {
		return nil, fmt.Errorf("list aeds: %w", err)
	}
	return collectAEDs(rows)
}

// GetAEDsByCountryCode returns the AEDs assigned to one country.
func (db *DB) GetAEDsByCountryCode(ctx context.Context, countryCode string) ([]models.AED, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+aedColumns+" FROM aed WHERE country_codes @> ARRAY[$1]::text[]",
		countryCode,
	)
	if err != nil {
		return nil, fmt.Errorf("list aeds by country %s: %w", countryCode, err)
	}
	return collectAEDs(rows)
}

// GetAEDsIntersecting returns the AEDs whose position intersects the given
// geometry.
func (db *DB) GetAEDsIntersecting(ctx context.Context, geometry orb.Geometry) ([]models.AED, error) {
	geomWKB, err := marshalWKB(geometry)
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx,
		"SELECT "+aedColumns+" FROM aed WHERE ST_Intersects(position, ST_GeomFromWKB($1, 4326))",
		geomWKB,
	)
	if err != nil {
		return nil, fmt.Errorf("list intersecting aeds: %w", err)
	}
	return collectAEDs(rows)
}

// CountAEDsByCountryCode counts the AEDs assigned to one country.
func (db *DB) CountAEDsByCountryCode(ctx context.Context, countryCode string) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM aed WHERE country_codes @> ARRAY[$1]::text[]",
		countryCode,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count aeds by country %s: %w", countryCode, err)
	}
	return count, nil
}

const upsertAEDSQL = `
	INSERT INTO aed (id, version, tags, position, country_codes)
	VALUES ($1, $2, $3, ST_GeomFromWKB($4, 4326), NULL)
	ON CONFLICT (id) DO UPDATE SET
		version = EXCLUDED.version,
		tags = EXCLUDED.tags,
		position = EXCLUDED.position,
		country_codes = NULL
`

// UpsertAEDsTx bulk-upserts AEDs inside a transaction. Upserted rows lose
// their country codes until the next reassignment.
func (db *DB) UpsertAEDsTx(ctx context.Context, tx pgx.Tx, aeds []models.AED) error {
	if len(aeds) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, aed := range aeds {
		posWKB, err := marshalWKB(aed.Position)
		if err != nil {
			return err
		}
		batch.Queue(upsertAEDSQL, aed.ID, aed.Version, aed.Tags, posWKB)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d aeds: %w", len(aeds), err)
	}
	return nil
}

// DeleteAEDsTx removes AEDs by id inside a transaction.
func (db *DB) DeleteAEDsTx(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, "DELETE FROM aed WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("delete %d aeds: %w", len(ids), err)
	}
	return nil
}

// ReplaceAllAEDsTx truncates the AED table and inserts the snapshot rows
// inside a transaction.
func (db *DB) ReplaceAllAEDsTx(ctx context.Context, tx pgx.Tx, aeds []models.AED) error {
	if _, err := tx.Exec(ctx, "TRUNCATE aed"); err != nil {
		return fmt.Errorf("truncate aed: %w", err)
	}
	return db.UpsertAEDsTx(ctx, tx, aeds)
}

const assignCountryCodesSQL = `
	UPDATE aed SET country_codes = COALESCE(
		(SELECT array_agg(country.code) FROM country
		 WHERE ST_Intersects(country.geometry, aed.position)),
		'{}'
	)
`

// AssignCountryCodes recomputes country_codes for the given AEDs from the
// country polygons. AEDs over open water end up with an empty set.
func (db *DB) AssignCountryCodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := db.Pool.Exec(ctx, assignCountryCodesSQL+" WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("assign country codes to %d aeds: %w", len(ids), err)
	}
	return nil
}

// AssignCountryCodesAll recomputes country_codes for every AED. Used after
// snapshot loads and country table refreshes.
func (db *DB) AssignCountryCodesAll(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, assignCountryCodesSQL); err != nil {
		return fmt.Errorf("assign country codes: %w", err)
	}
	return nil
}
